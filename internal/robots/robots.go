// Package robots fetches and evaluates robots.txt for the crawlers that
// matter to AI findability: the classic search bots and the AI-specific
// bots. It produces both a per-crawler allowance map and the aggregated
// accessibility scores used by the technical pillar.
package robots

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/fetcher"
)

// Crawler is one known crawler with its weight inside its group.
type Crawler struct {
	Agent  string
	Weight float64
}

// SearchCrawlers are the search-engine bots. Blocking one is a limited
// issue because search indexing feeds indirect AI visibility.
var SearchCrawlers = []Crawler{
	{Agent: "Googlebot", Weight: 0.5},
	{Agent: "Bingbot", Weight: 0.3},
	{Agent: "Applebot", Weight: 0.2},
}

// AICrawlers are the AI-specific bots that crawl for answer engines.
var AICrawlers = []Crawler{
	{Agent: "GPTBot", Weight: 0.30},
	{Agent: "ClaudeBot", Weight: 0.25},
	{Agent: "PerplexityBot", Weight: 0.20},
	{Agent: "Google-Extended", Weight: 0.15},
	{Agent: "CCBot", Weight: 0.10},
}

// Result is the structured robots evaluation for one host.
type Result struct {
	Found             bool               `json:"found"`
	Allowance         map[string]bool    `json:"allowance"` // agent -> allowed on "/"
	CrawlDelay        time.Duration      `json:"crawl_delay"`
	SearchIndexed     float64            `json:"search_indexed_score"` // 0-100
	DirectCrawl       float64            `json:"direct_crawl_score"`   // 0-100
	Combined          float64            `json:"combined_score"`       // 0-100
	BlockedSearchBots []string           `json:"blocked_search_bots,omitempty"`
	BlockedAIBots     []string           `json:"blocked_ai_bots,omitempty"`
}

type cacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Checker fetches, caches, and evaluates robots.txt per host.
type Checker struct {
	fetch *fetcher.Fetcher
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// NewChecker creates a Checker backed by the given fetcher. ttl bounds how
// long a parsed robots.txt is reused.
func NewChecker(f *fetcher.Fetcher, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Checker{
		fetch: f,
		ttl:   ttl,
		cache: make(map[string]*cacheEntry),
	}
}

func (c *Checker) data(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	c.mu.RLock()
	entry, ok := c.cache[host]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.data, nil
	}

	robotsURL := scheme + "://" + host + "/robots.txt"
	res, err := c.fetch.Fetch(ctx, robotsURL)

	var data *robotstxt.RobotsData
	switch {
	case err != nil:
		// Unreachable robots.txt: treat as allow-all per convention, but
		// propagate so the caller can record Found=false.
		data = &robotstxt.RobotsData{}
		zap.L().Debug("robots: fetch failed, assuming allow-all",
			zap.String("host", host),
			zap.Error(err),
		)
	default:
		data, err = robotstxt.FromBytes(res.Body)
		if err != nil {
			return nil, eris.Wrap(err, "robots: parse")
		}
	}

	c.mu.Lock()
	c.cache[host] = &cacheEntry{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()
	return data, nil
}

// Allowed reports whether the given agent may fetch path on host.
func (c *Checker) Allowed(ctx context.Context, scheme, host, agent, path string) (bool, error) {
	data, err := c.data(ctx, scheme, host)
	if err != nil {
		return true, err
	}
	return data.TestAgent(path, agent), nil
}

// CrawlDelay returns the Crawl-Delay for the agent, or zero.
func (c *Checker) CrawlDelay(ctx context.Context, scheme, host, agent string) (time.Duration, error) {
	data, err := c.data(ctx, scheme, host)
	if err != nil {
		return 0, err
	}
	if g := data.FindGroup(agent); g != nil {
		return g.CrawlDelay, nil
	}
	return 0, nil
}

// Evaluate fetches robots.txt for the host and computes the aggregated
// accessibility scores: combined = 0.6*search + 0.4*direct.
func (c *Checker) Evaluate(ctx context.Context, scheme, host string) (*Result, error) {
	res := &Result{Allowance: make(map[string]bool)}

	robotsURL := scheme + "://" + host + "/robots.txt"
	fetched, err := c.fetch.Fetch(ctx, robotsURL)
	if err != nil {
		// No robots.txt is an open door: everything allowed.
		res.Found = false
		res.SearchIndexed = 100
		res.DirectCrawl = 100
		res.Combined = 100
		for _, cr := range append(append([]Crawler{}, SearchCrawlers...), AICrawlers...) {
			res.Allowance[cr.Agent] = true
		}
		return res, nil
	}

	data, err := robotstxt.FromBytes(fetched.Body)
	if err != nil {
		return nil, eris.Wrap(err, "robots: parse")
	}
	res.Found = true

	c.mu.Lock()
	c.cache[host] = &cacheEntry{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()

	scoreGroup := func(crawlers []Crawler, blocked *[]string) float64 {
		score := 0.0
		for _, cr := range crawlers {
			allowed := data.TestAgent("/", cr.Agent)
			res.Allowance[cr.Agent] = allowed
			if allowed {
				score += cr.Weight * 100
			} else {
				*blocked = append(*blocked, cr.Agent)
			}
		}
		return score
	}

	res.SearchIndexed = scoreGroup(SearchCrawlers, &res.BlockedSearchBots)
	res.DirectCrawl = scoreGroup(AICrawlers, &res.BlockedAIBots)
	res.Combined = 0.6*res.SearchIndexed + 0.4*res.DirectCrawl

	if g := data.FindGroup("FindableBot"); g != nil && g.CrawlDelay > 0 {
		res.CrawlDelay = g.CrawlDelay
	} else if g := data.FindGroup("*"); g != nil {
		res.CrawlDelay = g.CrawlDelay
	}

	zap.L().Debug("robots: evaluated",
		zap.String("host", host),
		zap.Float64("search_indexed", res.SearchIndexed),
		zap.Float64("direct_crawl", res.DirectCrawl),
		zap.Float64("combined", res.Combined),
	)

	return res, nil
}
