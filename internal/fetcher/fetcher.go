// Package fetcher implements the bounded, polite HTTP client used by the
// crawler. Each host gets a token-bucket rate limit; transient failures are
// retried with backoff.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/findable-hq/findable/internal/config"
	"github.com/findable-hq/findable/internal/resilience"
)

// Result holds the outcome of a successful fetch.
type Result struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	TTFBMillis    int
	RedirectChain []string
	FinalURL      string
}

// trackingParams are stripped from URLs before a request is issued.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "fbclid": true,
	"gclid": true, "msclkid": true, "mc_cid": true, "mc_eid": true,
	"ref": true,
}

// skippedExtensions lists non-HTML resources the fetcher refuses to fetch.
var skippedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".ico": true, ".mp4": true, ".webm": true,
	".mp3": true, ".wav": true, ".zip": true, ".gz": true, ".tar": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true, ".dmg": true, ".exe": true, ".css": true, ".js": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

// Fetcher is a bounded HTTP client with per-host rate limiting.
type Fetcher struct {
	cfg    config.FetchConfig
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delays   map[string]time.Duration // per-host Crawl-Delay overrides
}

// New creates a Fetcher from config. Redirects are followed (up to the
// default 10) and the chain is recorded on the Result.
func New(cfg config.FetchConfig) *Fetcher {
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 20
	}
	if cfg.PerHostRPS <= 0 {
		cfg.PerHostRPS = 4
	}
	if cfg.PerHostBurst <= 0 {
		cfg.PerHostBurst = 8
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 * 1024 * 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 8,
			},
		},
		limiters: make(map[string]*rate.Limiter),
		delays:   make(map[string]time.Duration),
	}
}

// SetCrawlDelay overrides the rate limit for a host based on the site's
// robots.txt Crawl-Delay directive.
func (f *Fetcher) SetCrawlDelay(host string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[host] = delay
	delete(f.limiters, host) // rebuilt on next use
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	rps := rate.Limit(f.cfg.PerHostRPS)
	burst := f.cfg.PerHostBurst
	if delay, ok := f.delays[host]; ok && delay > 0 {
		rps = rate.Every(delay)
		burst = 1
	}
	lim := rate.NewLimiter(rps, burst)
	f.limiters[host] = lim
	return lim
}

// Skippable reports whether the URL points at a resource the fetcher will
// not request (binary/static extensions).
func Skippable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return skippedExtensions[path[idx:]]
	}
	return false
}

// StripTracking removes tracking query parameters from a URL.
func StripTracking(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for k := range q {
		if trackingParams[strings.ToLower(k)] {
			q.Del(k)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Fetch retrieves a URL, honoring the per-host rate limit and retrying
// transient failures. Returns a typed error: *NetworkError after retry
// exhaustion, *HTTPStatusError for non-retryable >=400 responses, or
// *TimeoutError when the per-request deadline fires.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if Skippable(rawURL) {
		return nil, eris.Errorf("fetcher: non-html resource skipped: %s", rawURL)
	}
	rawURL = StripTracking(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts: f.cfg.MaxAttempts,
		OnRetry:     resilience.RetryLogger("fetcher", "fetch"),
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Result, error) {
		if err := f.limiter(u.Host).Wait(ctx); err != nil {
			return nil, &NetworkError{URL: rawURL, Err: err}
		}
		return f.fetchOnce(ctx, rawURL)
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Result, error) {
	var redirects []string
	client := *f.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return http.ErrUseLastResponse
		}
		redirects = append(redirects, req.URL.String())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	var firstByte time.Time
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: rawURL, Err: err}
		}
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		// Drain so the retry wrapper classifies the error as transient.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resilience.NewTransientError(
			eris.Errorf("fetcher: status %d for %s", resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" &&
		!strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, eris.Errorf("fetcher: unsupported content type %q for %s", ct, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	ttfb := 0
	if !firstByte.IsZero() {
		ttfb = int(firstByte.Sub(start).Milliseconds())
	}

	zap.L().Debug("fetcher: fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("ttfb_ms", ttfb),
		zap.Int("bytes", len(body)),
	)

	return &Result{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		TTFBMillis:    ttfb,
		RedirectChain: redirects,
		FinalURL:      resp.Request.URL.String(),
	}, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
