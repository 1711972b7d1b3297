package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/config"
	"github.com/findable-hq/findable/internal/fetcher"
)

func robotsServer(t *testing.T, body string, status int) (scheme, host string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return "http", strings.TrimPrefix(srv.URL, "http://")
}

func testChecker() *Checker {
	f := fetcher.New(config.FetchConfig{
		UserAgent:   "FindableBot/1.0 test",
		TimeoutSecs: 5,
		PerHostRPS:  100,
		MaxAttempts: 1,
	})
	return NewChecker(f, time.Minute)
}

func TestEvaluateAllowAll(t *testing.T) {
	t.Parallel()

	scheme, host := robotsServer(t, "User-agent: *\nAllow: /\n", http.StatusOK)
	res, err := testChecker().Evaluate(context.Background(), scheme, host)
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, 100.0, res.SearchIndexed)
	assert.Equal(t, 100.0, res.DirectCrawl)
	assert.Equal(t, 100.0, res.Combined)
	assert.Empty(t, res.BlockedAIBots)
	assert.True(t, res.Allowance["GPTBot"])
	assert.True(t, res.Allowance["Googlebot"])
}

func TestEvaluateAIBlockedSearchOpen(t *testing.T) {
	t.Parallel()

	body := `User-agent: GPTBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: *
Allow: /
`
	scheme, host := robotsServer(t, body, http.StatusOK)
	res, err := testChecker().Evaluate(context.Background(), scheme, host)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.SearchIndexed)
	// GPTBot (0.30) and ClaudeBot (0.25) blocked leaves 45.
	assert.InDelta(t, 45.0, res.DirectCrawl, 1e-9)
	assert.InDelta(t, 0.6*100+0.4*45, res.Combined, 1e-9)
	assert.ElementsMatch(t, []string{"GPTBot", "ClaudeBot"}, res.BlockedAIBots)
	assert.False(t, res.Allowance["GPTBot"])
}

func TestEvaluateMissingRobotsIsOpenDoor(t *testing.T) {
	t.Parallel()

	scheme, host := robotsServer(t, "", http.StatusNotFound)
	res, err := testChecker().Evaluate(context.Background(), scheme, host)
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, 100.0, res.Combined)
	assert.True(t, res.Allowance["CCBot"])
}

func TestEvaluateCrawlDelay(t *testing.T) {
	t.Parallel()

	body := "User-agent: *\nCrawl-delay: 2\nAllow: /\n"
	scheme, host := robotsServer(t, body, http.StatusOK)
	res, err := testChecker().Evaluate(context.Background(), scheme, host)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, res.CrawlDelay)
}

func TestAllowedUsesCache(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	c := testChecker()
	allowed, err := c.Allowed(context.Background(), "http", host, "GPTBot", "/public")
	require.NoError(t, err)
	assert.True(t, allowed)

	blocked, err := c.Allowed(context.Background(), "http", host, "GPTBot", "/private")
	require.NoError(t, err)
	assert.False(t, blocked)

	assert.Equal(t, 1, hits, "the parsed robots.txt is cached per host")
}
