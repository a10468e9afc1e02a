package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/security"
	"github.com/atelier-ai/atelier/internal/stream"
)

// URLChecker validates outbound URLs before agents fetch them.
// Satisfied by *security.URLValidator.
type URLChecker interface {
	Validate(rawURL string) error
}

var _ URLChecker = (*security.URLValidator)(nil)

const (
	defaultSearchResults = 3
	maxSearchResults     = 5
	// maxExtractChars bounds how much of one extracted article enters the
	// summarization prompt.
	maxExtractChars = 4000
	fetchTimeout    = 15 * time.Second
)

// SearchRequest is the input of a search tool invocation.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// SearchAgent answers research queries: it runs the query against a SearXNG
// instance, fetches the top result pages, extracts their readable text, and
// has the model summarize the findings with source URLs.
type SearchAgent struct {
	cfg      *agentcfg.AgentConfig
	g        *genkit.Genkit
	sink     *stream.Sink
	checker  URLChecker
	client   *http.Client
	searxURL string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewSearchAgent creates a SearchAgent. searxURL is the base URL of a
// SearXNG instance. A nil client or checker gets hardened defaults; a nil
// logger falls back to slog.Default().
func NewSearchAgent(
	cfg *agentcfg.AgentConfig,
	g *genkit.Genkit,
	sink *stream.Sink,
	searxURL string,
	checker URLChecker,
	client *http.Client,
	logger *slog.Logger,
) *SearchAgent {
	if checker == nil {
		checker = security.NewURLValidator()
	}
	if client == nil {
		client = security.NewURLValidator().Client(fetchTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchAgent{
		cfg:      cfg,
		g:        g,
		sink:     sink,
		checker:  checker,
		client:   client,
		searxURL: strings.TrimRight(searxURL, "/"),
		limiter:  LimiterFromConfig(cfg.RateLimit),
		logger:   logger.With("agent", cfg.AgentType),
	}
}

// searxResult is one entry of a SearXNG JSON response.
type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Execute runs one search. Failures become error-status Results; the
// returned error is non-nil only for context cancellation.
func (a *SearchAgent) Execute(ctx context.Context, req SearchRequest) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return errorResult("search query must not be empty"), nil
	}
	if a.limiter != nil && !a.limiter.Allow() {
		return errorResult("search agent: %s, try again later", ErrRateLimited), nil
	}

	results, err := a.search(ctx, req.Query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Warn("search backend query failed", "query", req.Query, "error", err)
		return errorResult("search failed: %v", err), nil
	}
	if len(results) == 0 {
		return &Result{Status: StatusOK, Summary: "no search results found"}, nil
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultSearchResults
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	if len(results) > limit {
		results = results[:limit]
	}

	// Fetch result pages concurrently; extraction order in the digest
	// still follows result ranking.
	texts := make([]string, len(results))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, r := range results {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			text, err := a.readPage(r.URL)
			if err != nil {
				a.logger.Debug("skipping unreadable result", "url", r.URL, "error", err)
				text = r.Content
			}
			texts[i] = text
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var digest strings.Builder
	for i, r := range results {
		fmt.Fprintf(&digest, "Source: %s\nTitle: %s\n%s\n\n", r.URL, r.Title, texts[i])
	}

	summary, res, err := a.summarize(ctx, req.Query, digest.String())
	if res != nil || err != nil {
		return res, err
	}
	return &Result{Status: StatusOK, Summary: summary}, nil
}

// search queries the SearXNG JSON API.
func (a *SearchAgent) search(ctx context.Context, query string) ([]searxResult, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", a.searxURL, url.QueryEscape(query))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned %s", resp.Status)
	}

	var decoded struct {
		Results []searxResult `json:"results"`
	}
	body := io.LimitReader(resp.Body, security.MaxResponseSize)
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.Results, nil
}

// readPage fetches one result page and extracts its readable text.
func (a *SearchAgent) readPage(pageURL string) (string, error) {
	if err := a.checker.Validate(pageURL); err != nil {
		return "", err
	}

	c := colly.NewCollector(colly.MaxBodySize(int(security.MaxResponseSize)))
	c.SetRequestTimeout(fetchTimeout)
	if a.client.Transport != nil {
		c.WithTransport(a.client.Transport)
	}

	var body []byte
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fetchErr
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	return truncateUTF8(strings.TrimSpace(article.TextContent), maxExtractChars), nil
}

// truncateUTF8 shortens s to at most limit bytes, backing up so the cut
// never splits a multi-byte rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// summarize has the model condense the digest, streaming the answer.
func (a *SearchAgent) summarize(ctx context.Context, query, digest string) (string, *Result, error) {
	prompt := fmt.Sprintf(
		"Query: %s\n\nRetrieved pages:\n\n%s\nSummarize what these pages say about the query, citing source URLs.",
		query, digest)

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.cfg.ModelID),
		ai.WithSystem(a.cfg.SystemPrompt),
		ai.WithPrompt(prompt),
		ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			return a.sink.Delta(cbCtx, string(agentcfg.AgentSearch), chunk.Text())
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		a.logger.Warn("search summarization failed", "error", err)
		return "", errorResult("search agent: %s: %v", ErrGeneration, err), nil
	}
	return resp.Text(), nil, nil
}
