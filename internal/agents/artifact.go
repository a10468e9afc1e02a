package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/artifact"
	"github.com/atelier-ai/atelier/internal/stream"
)

// ArtifactAgent generates and edits one kind of versioned artifact.
// Instances are constructed per request, bound to the request's output sink,
// chat, and user, and discarded when the orchestration run completes.
type ArtifactAgent struct {
	stateMachine

	cfg     *agentcfg.AgentConfig
	kind    artifact.Kind
	g       *genkit.Genkit
	store   artifact.Store
	sink    *stream.Sink
	limiter *rate.Limiter
	chatID  uuid.UUID
	userID  uuid.UUID
	logger  *slog.Logger
}

// NewArtifactAgent creates an agent for kind, bound to sink/chat/user.
// A nil logger falls back to slog.Default().
func NewArtifactAgent(
	cfg *agentcfg.AgentConfig,
	kind artifact.Kind,
	g *genkit.Genkit,
	store artifact.Store,
	sink *stream.Sink,
	chatID, userID uuid.UUID,
	logger *slog.Logger,
) *ArtifactAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactAgent{
		cfg:     cfg,
		kind:    kind,
		g:       g,
		store:   store,
		sink:    sink,
		limiter: LimiterFromConfig(cfg.RateLimit),
		chatID:  chatID,
		userID:  userID,
		logger:  logger.With("agent", cfg.AgentType),
	}
}

// LimiterFromConfig derives a token-bucket limiter from the strictest
// configured window. All-zero config means unlimited (nil limiter).
func LimiterFromConfig(rl agentcfg.RateLimit) *rate.Limiter {
	perSecond := func(events int, seconds float64) rate.Limit {
		if events <= 0 {
			return rate.Inf
		}
		return rate.Limit(float64(events) / seconds)
	}

	limit := perSecond(rl.PerMinute, 60)
	if l := perSecond(rl.PerHour, 3600); l < limit {
		limit = l
	}
	if l := perSecond(rl.PerDay, 86400); l < limit {
		limit = l
	}
	if limit == rate.Inf {
		return nil
	}

	burst := rl.PerMinute
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// Execute runs one operation to completion.
//
// The returned error is non-nil only for context cancellation; every other
// failure becomes an error-status Result so the model loop keeps running.
func (a *ArtifactAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	a.setState(StateIdle)

	if !req.Operation.Valid() {
		return errorResult("unknown operation %q", req.Operation), nil
	}
	if (req.Operation == OpFix || req.Operation == OpExplain) && a.kind != artifact.KindCode {
		return errorResult("%s: %q is only available for code artifacts",
			ErrUnsupportedOperation, req.Operation), nil
	}

	if req.Operation == OpRevert {
		return a.revert(ctx, req)
	}

	// Rate limits guard model calls; revert never generates and is exempt.
	if a.limiter != nil && !a.limiter.Allow() {
		return errorResult("%s agent: %s, try again later", a.cfg.AgentType, ErrRateLimited), nil
	}

	if req.Operation == OpCreate {
		return a.createArtifact(ctx, req)
	}
	return a.editArtifact(ctx, req)
}

func (a *ArtifactAgent) createArtifact(ctx context.Context, req Request) (*Result, error) {
	content, res, err := a.generate(ctx, createPrompt(req.Instruction))
	if res != nil || err != nil {
		return res, err
	}
	return a.persist(ctx, uuid.New(), content, "created")
}

func (a *ArtifactAgent) editArtifact(ctx context.Context, req Request) (*Result, error) {
	artifactID, err := uuid.Parse(req.ArtifactID)
	if err != nil {
		return errorResult("invalid artifact id %q", req.ArtifactID), nil
	}

	latest, err := a.store.Latest(ctx, artifactID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Editing an artifact with no versions is a data-integrity error,
		// never an implicit create.
		return errorResult("artifact %s: %v", artifactID, err), nil
	}

	content, res, err := a.generate(ctx, editPrompt(req, latest.Content))
	if res != nil || err != nil {
		return res, err
	}
	return a.persist(ctx, artifactID, content, req.Operation.PastTense())
}

// revert copies an earlier version's content into a new version without a
// model call. The new version's parent is the current latest, not the
// target: history records "reverted to match version K", not "is version K".
func (a *ArtifactAgent) revert(ctx context.Context, req Request) (*Result, error) {
	artifactID, err := uuid.Parse(req.ArtifactID)
	if err != nil {
		return errorResult("invalid artifact id %q", req.ArtifactID), nil
	}

	target, err := a.store.Version(ctx, artifactID, req.TargetVersion)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return errorResult("artifact %s version %d: %v", artifactID, req.TargetVersion, err), nil
	}

	// No generation step, but consumers still observe a transition: the
	// restored content goes out as a single delta.
	a.setState(StateStreaming)
	if err := a.sink.Delta(ctx, string(a.kind), target.Content); err != nil {
		a.setState(StateFailed)
		return nil, err
	}

	return a.persist(ctx, artifactID, target.Content,
		fmt.Sprintf("reverted to version %d of", req.TargetVersion))
}

// generate runs the model call, streaming deltas to the sink as they arrive.
// On failure it returns either a non-nil Result (model error, loop continues)
// or a non-nil error (cancellation).
func (a *ArtifactAgent) generate(ctx context.Context, prompt string) (string, *Result, error) {
	a.setState(StateGenerating)

	streaming := false
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.cfg.ModelID),
		ai.WithSystem(a.cfg.SystemPrompt),
		ai.WithPrompt(prompt),
		ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			if !streaming {
				a.setState(StateStreaming)
				streaming = true
			}
			return a.sink.Delta(cbCtx, string(a.kind), chunk.Text())
		}),
	)
	if err != nil {
		a.setState(StateFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		a.logger.Warn("model generation failed", "model", a.cfg.ModelID, "error", err)
		return "", errorResult("%s agent: %s: %v", a.cfg.AgentType, ErrGeneration, err), nil
	}
	return resp.Text(), nil, nil
}

// persist writes the finished content as the next version, retrying the
// write once. A failed save is reported as a persistence failure, distinct
// from generation: the streamed content was already shown, so the result
// must never claim success.
func (a *ArtifactAgent) persist(ctx context.Context, artifactID uuid.UUID, content, action string) (*Result, error) {
	// Once cancellation is observed the save must not start at all;
	// a half-written version is worse than a lost one.
	if err := ctx.Err(); err != nil {
		a.setState(StateFailed)
		return nil, err
	}
	a.setState(StatePersisting)

	saveReq := artifact.SaveRequest{
		ArtifactID: artifactID,
		Kind:       a.kind,
		Content:    content,
		ChatID:     a.chatID,
		UserID:     a.userID,
	}
	v, err := a.store.Save(ctx, saveReq)
	if err != nil && ctx.Err() == nil {
		a.logger.Warn("version save failed, retrying once",
			"artifact_id", artifactID, "error", err)
		v, err = a.store.Save(ctx, saveReq)
	}
	if err != nil {
		a.setState(StateFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return errorResult("%s: the %s content was generated but could not be saved: %v",
			ErrPersistence, a.kind, err), nil
	}

	a.setState(StateDone)
	a.logger.Info("artifact version written",
		"artifact_id", v.ArtifactID, "version", v.VersionNumber, "kind", a.kind)
	return okResult(v.ArtifactID.String(), v.VersionNumber, string(a.kind),
		fmt.Sprintf("%s the %s artifact, now at version %d", action, a.kind, v.VersionNumber)), nil
}

func createPrompt(instruction string) string {
	return fmt.Sprintf("Create new content for the following request.\n\nRequest: %s", instruction)
}

func editPrompt(req Request, current string) string {
	instruction := req.Instruction
	switch req.Operation {
	case OpFix:
		instruction = fmt.Sprintf(
			"The code below failed with the following error or problem:\n%s\n\nFix the code and return the complete corrected version.",
			req.Instruction)
	case OpExplain:
		instruction = fmt.Sprintf(
			"Add clear explanatory comments to the code below so a reader understands how it works. Keep the behavior unchanged.\nAdditional focus: %s",
			req.Instruction)
	}
	return fmt.Sprintf(
		"Current content:\n---\n%s\n---\n\nInstruction: %s\n\nReturn the complete new content, not a fragment or a diff.",
		current, instruction)
}
