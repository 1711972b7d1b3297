package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/config"
)

func testFetcher() *Fetcher {
	return New(config.FetchConfig{
		UserAgent:   "FindableBot/1.0 test",
		TimeoutSecs: 5,
		PerHostRPS:  100,
		MaxAttempts: 2,
	})
}

func TestSkippable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://acme.com/brochure.pdf", true},
		{"https://acme.com/logo.PNG", true},
		{"https://acme.com/app.js", true},
		{"https://acme.com/pricing", false},
		{"https://acme.com/pricing.html", false},
		{"https://acme.com/", false},
		{"://bad", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Skippable(tt.url), tt.url)
	}
}

func TestStripTracking(t *testing.T) {
	t.Parallel()

	got := StripTracking("https://acme.com/pricing?utm_source=news&plan=pro&fbclid=xyz")
	assert.Equal(t, "https://acme.com/pricing?plan=pro", got)

	unchanged := "https://acme.com/pricing?plan=pro"
	assert.Equal(t, unchanged, StripTracking(unchanged))
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FindableBot/1.0 test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(res.Body), "ok")
	assert.GreaterOrEqual(t, res.TTFBMillis, 0)
	assert.Equal(t, srv.URL+"/page", res.FinalURL)
}

func TestFetchRecordsRedirectChain(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>moved</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Len(t, res.RedirectChain, 1)
	assert.Equal(t, srv.URL+"/new", res.RedirectChain[0])
	assert.Equal(t, srv.URL+"/new", res.FinalURL)
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>recovered</body></html>"))
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL+"/flaky")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, string(res.Body), "recovered")
}

func TestFetchRejectsNonHTMLContentType(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"html"}`))
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL+"/api")
	assert.Error(t, err)
}

func TestFetchSkipsBinaryURL(t *testing.T) {
	t.Parallel()

	_, err := testFetcher().Fetch(context.Background(), "https://acme.com/file.zip")
	assert.Error(t, err)
}

func TestIsNetworkError(t *testing.T) {
	t.Parallel()

	inner := &NetworkError{URL: "https://acme.com/", Err: eris.New("refused")}
	assert.True(t, IsNetworkError(inner))
	assert.True(t, IsNetworkError(eris.Wrap(inner, "fetcher: fetch")))
	assert.False(t, IsNetworkError(eris.New("other")))
	assert.False(t, IsNetworkError(nil))
}
