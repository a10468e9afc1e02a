package agents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/security"
)

// maxBrowseChars bounds how much fetched content one Result may carry back
// into the model's context.
const maxBrowseChars = 8000

// BrowseRequest is the input of a repobrowse tool invocation.
type BrowseRequest struct {
	URL string `json:"url"`
}

// RepoBrowseAgent fetches pages and raw files from public repository hosts
// so the model can read external code. HTML pages are reduced to their text
// and code blocks; raw files pass through truncated. No model call, no
// store writes.
type RepoBrowseAgent struct {
	cfg     *agentcfg.AgentConfig
	checker URLChecker
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRepoBrowseAgent creates a RepoBrowseAgent. A nil client or checker
// gets hardened defaults; a nil logger falls back to slog.Default().
func NewRepoBrowseAgent(
	cfg *agentcfg.AgentConfig,
	checker URLChecker,
	client *http.Client,
	logger *slog.Logger,
) *RepoBrowseAgent {
	if checker == nil {
		checker = security.NewURLValidator()
	}
	if client == nil {
		client = security.NewURLValidator().Client(fetchTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoBrowseAgent{
		cfg:     cfg,
		checker: checker,
		client:  client,
		limiter: LimiterFromConfig(cfg.RateLimit),
		logger:  logger.With("agent", cfg.AgentType),
	}
}

// Execute fetches one URL. Failures become error-status Results; the
// returned error is non-nil only for context cancellation.
func (a *RepoBrowseAgent) Execute(ctx context.Context, req BrowseRequest) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return errorResult("url must not be empty"), nil
	}
	if err := a.checker.Validate(req.URL); err != nil {
		return errorResult("refusing to fetch %s: %v", req.URL, err), nil
	}
	if a.limiter != nil && !a.limiter.Allow() {
		return errorResult("repobrowse agent: %s, try again later", ErrRateLimited), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return errorResult("invalid url %s: %v", req.URL, err), nil
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return errorResult("fetch %s: %v", req.URL, err), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorResult("fetch %s: %s", req.URL, resp.Status), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, security.MaxResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return errorResult("read %s: %v", req.URL, err), nil
	}

	content := string(body)
	if isHTML(resp.Header.Get("Content-Type"), content) {
		content, err = extractRepoPage(content)
		if err != nil {
			return errorResult("parse %s: %v", req.URL, err), nil
		}
	}
	if len(content) > maxBrowseChars {
		content = truncateUTF8(content, maxBrowseChars) + "\n[truncated]"
	}

	a.logger.Debug("fetched repository page", "url", req.URL, "bytes", len(body))
	return &Result{
		Status:  StatusOK,
		Summary: fmt.Sprintf("Contents of %s:\n\n%s", req.URL, content),
	}, nil
}

func isHTML(contentType, body string) bool {
	if strings.Contains(contentType, "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// extractRepoPage reduces a repository HTML page to the parts worth reading:
// the title, code blocks, and the remaining visible text.
func extractRepoPage(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, footer, noscript").Remove()

	var out strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		fmt.Fprintf(&out, "Title: %s\n\n", title)
	}

	var codeBlocks []string
	doc.Find("pre").Each(func(_ int, sel *goquery.Selection) {
		if block := strings.TrimSpace(sel.Text()); block != "" {
			codeBlocks = append(codeBlocks, block)
		}
		sel.Remove()
	})

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text != "" {
		out.WriteString(text)
		out.WriteString("\n")
	}
	for i, block := range codeBlocks {
		fmt.Fprintf(&out, "\nCode block %d:\n%s\n", i+1, block)
	}
	return out.String(), nil
}
