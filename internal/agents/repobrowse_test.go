package agents_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/atelier/internal/agentcfg"
	"github.com/atelier-ai/atelier/internal/agents"
)

func newBrowseAgent(t *testing.T) *agents.RepoBrowseAgent {
	t.Helper()
	return agents.NewRepoBrowseAgent(testConfig(agentcfg.AgentRepoBrowse),
		allowAllChecker{}, &http.Client{Timeout: 5 * time.Second}, nil)
}

func TestRepoBrowseAgent_EmptyURL(t *testing.T) {
	t.Parallel()
	agent := newBrowseAgent(t)

	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: "  "})
	require.NoError(t, err)
	assert.Equal(t, agents.StatusError, res.Status)
	assert.Contains(t, res.Summary, "must not be empty")
}

func TestRepoBrowseAgent_RefusesUnsafeURLs(t *testing.T) {
	t.Parallel()
	// Nil checker gets the hardened default validator.
	agent := agents.NewRepoBrowseAgent(testConfig(agentcfg.AgentRepoBrowse),
		nil, &http.Client{Timeout: 5 * time.Second}, nil)

	urls := []string{
		"http://localhost/etc/passwd",
		"http://127.0.0.1:8080/admin",
		"http://169.254.169.254/latest/meta-data",
		"http://metadata.google.internal/computeMetadata/v1/",
		"ftp://example.com/file",
	}
	for _, u := range urls {
		res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: u})
		require.NoError(t, err)
		assert.Equal(t, agents.StatusError, res.Status, "url %s", u)
		assert.Contains(t, res.Summary, "refusing to fetch", "url %s", u)
	}
}

func TestRepoBrowseAgent_RawFile(t *testing.T) {
	t.Parallel()
	const source = "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, source)
	}))
	defer srv.Close()

	agent := newBrowseAgent(t)
	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL + "/main.go"})
	require.NoError(t, err)
	require.Equal(t, agents.StatusOK, res.Status)
	assert.Contains(t, res.Summary, "Contents of "+srv.URL+"/main.go")
	assert.Contains(t, res.Summary, source)
	assert.NotContains(t, res.Summary, "[truncated]")
}

func TestRepoBrowseAgent_HTMLPage(t *testing.T) {
	t.Parallel()
	const page = `<!DOCTYPE html>
<html><head><title>repo/pkg: parser.go</title>
<script>trackPageView()</script></head>
<body>
<nav>Sign in | Explore | Pricing</nav>
<p>Parser entry point for the query language.</p>
<pre>func Parse(input string) (*AST, error) {
	return newParser(input).parse()
}</pre>
<footer>About | Terms</footer>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	agent := newBrowseAgent(t)
	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, agents.StatusOK, res.Status)

	assert.Contains(t, res.Summary, "Title: repo/pkg: parser.go")
	assert.Contains(t, res.Summary, "Code block 1:")
	assert.Contains(t, res.Summary, "func Parse(input string)")
	assert.Contains(t, res.Summary, "Parser entry point")
	// Navigation chrome and scripts are stripped.
	assert.NotContains(t, res.Summary, "trackPageView")
	assert.NotContains(t, res.Summary, "Sign in")
	assert.NotContains(t, res.Summary, "About | Terms")
}

func TestRepoBrowseAgent_HTMLWithoutContentTypeHeader(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		fmt.Fprint(w, "<!DOCTYPE html><html><head><title>Sniffed</title></head><body><p>body text</p></body></html>")
	}))
	defer srv.Close()

	agent := newBrowseAgent(t)
	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, agents.StatusOK, res.Status)
	// Recognized as HTML from the body, so it was parsed, not passed through.
	assert.Contains(t, res.Summary, "Title: Sniffed")
	assert.NotContains(t, res.Summary, "<!DOCTYPE html")
}

func TestRepoBrowseAgent_Non200(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	agent := newBrowseAgent(t)
	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL + "/missing"})
	require.NoError(t, err)
	assert.Equal(t, agents.StatusError, res.Status)
	assert.Contains(t, res.Summary, "404")
}

func TestRepoBrowseAgent_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()
	// One leading ASCII byte shifts every two-byte rune off an even offset,
	// so a byte-indexed cut would land mid-rune.
	content := "a" + strings.Repeat("é", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, content)
	}))
	defer srv.Close()

	agent := newBrowseAgent(t)
	res, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL + "/notes.txt"})
	require.NoError(t, err)
	require.Equal(t, agents.StatusOK, res.Status)
	assert.Contains(t, res.Summary, "[truncated]")
	assert.True(t, utf8.ValidString(res.Summary))
}

func TestRepoBrowseAgent_RateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "file contents")
	}))
	defer srv.Close()

	cfg := testConfig(agentcfg.AgentRepoBrowse)
	cfg.RateLimit = agentcfg.RateLimit{PerDay: 1}
	agent := agents.NewRepoBrowseAgent(cfg, allowAllChecker{},
		&http.Client{Timeout: 5 * time.Second}, nil)

	first, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, agents.StatusOK, first.Status)

	second, err := agent.Execute(context.Background(), agents.BrowseRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, agents.StatusError, second.Status)
	assert.Contains(t, second.Summary, "rate limit")
}
