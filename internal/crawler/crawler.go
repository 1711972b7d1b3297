// Package crawler implements the breadth-first URL frontier that feeds the
// audit pipeline: seed URL plus priority paths, bounded depth, bounded page
// count, robots-aware, same-site only.
package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/findable-hq/findable/internal/fetcher"
	"github.com/findable-hq/findable/internal/robots"
)

// ErrZeroPagesCrawled terminates a run as failed when not a single page
// could be fetched.
var ErrZeroPagesCrawled = eris.New("crawler: zero pages crawled")

// DefaultPriorityPaths are seeded at depth 0 alongside the homepage.
// Coverage-sensitive signals concentrate on these non-homepage pages.
var DefaultPriorityPaths = []string{
	"/about", "/pricing", "/contact", "/faq", "/services",
	"/products", "/team", "/press", "/blog",
}

// Options bound a crawl.
type Options struct {
	MaxPages      int
	MaxDepth      int
	Concurrency   int
	PriorityPaths []string
	UserAgent     string // agent name checked against robots.txt
}

func (o *Options) applyDefaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 250
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.PriorityPaths == nil {
		o.PriorityPaths = DefaultPriorityPaths
	}
	if o.UserAgent == "" {
		o.UserAgent = "FindableBot"
	}
}

// FetchedPage is one frontier URL with its fetch outcome. Failed fetches
// carry Err and a nil Result; they are recorded but neither abort the
// crawl nor count toward the MaxPages budget.
type FetchedPage struct {
	URL    string
	Depth  int
	Result *fetcher.Result
	Err    error
}

// Stats counts crawl outcomes.
type Stats struct {
	Fetched int
	Failed  int
	Blocked int
}

// Crawler walks a site breadth-first.
type Crawler struct {
	fetch  *fetcher.Fetcher
	robots *robots.Checker
}

// New creates a Crawler.
func New(f *fetcher.Fetcher, rc *robots.Checker) *Crawler {
	return &Crawler{fetch: f, robots: rc}
}

type frontierItem struct {
	url   string
	depth int
}

// Crawl walks the site from seedURL and returns pages in completion order.
// Completion order is non-deterministic; downstream scoring must not depend
// on it. Returns ErrZeroPagesCrawled when nothing could be fetched.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, opts Options) ([]FetchedPage, Stats, error) {
	opts.applyDefaults()

	seed, err := Normalize(seedURL)
	if err != nil {
		return nil, Stats{}, eris.Wrap(err, "crawler: normalize seed")
	}
	base, err := url.Parse(seed)
	if err != nil {
		return nil, Stats{}, eris.Wrap(err, "crawler: parse seed")
	}

	// Honor Crawl-Delay before the first page fetch.
	if delay, derr := c.robots.CrawlDelay(ctx, base.Scheme, base.Host, opts.UserAgent); derr == nil && delay > 0 {
		c.fetch.SetCrawlDelay(base.Host, delay)
	}

	seen := make(map[string]bool)
	var queue []frontierItem

	enqueue := func(raw string, depth int) {
		norm, nerr := Normalize(raw)
		if nerr != nil || seen[norm] {
			return
		}
		seen[norm] = true
		queue = append(queue, frontierItem{url: norm, depth: depth})
	}

	// Homepage plus priority paths all seed at depth 0.
	enqueue(seed, 0)
	for _, p := range opts.PriorityPaths {
		enqueue(base.Scheme+"://"+base.Host+p, 0)
	}

	// Sitemap URLs merge into the frontier at depth 1.
	for _, su := range c.fetchSitemapURLs(ctx, base) {
		if len(seen) >= opts.MaxPages {
			break
		}
		enqueue(su, 1)
	}

	var (
		mu    sync.Mutex
		pages []FetchedPage
		stats Stats
	)

	// MaxPages budgets successful fetches; failures are recorded but do
	// not eat into it. Batches assume every fetch will succeed, so a
	// batch with failures under-fills rather than overshoots.
	for {
		mu.Lock()
		if len(queue) == 0 || stats.Fetched >= opts.MaxPages {
			mu.Unlock()
			break
		}
		var batch []frontierItem
		for len(batch) < opts.Concurrency && len(queue) > 0 && stats.Fetched+len(batch) < opts.MaxPages {
			batch = append(batch, queue[0])
			queue = queue[1:]
		}
		mu.Unlock()

		// Fresh errgroup per batch so a canceled derived context does not
		// leak into the next drain.
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)

		for _, item := range batch {
			g.Go(func() error {
				select {
				case <-gCtx.Done():
					return nil
				default:
				}

				u, perr := url.Parse(item.url)
				if perr != nil {
					return nil
				}
				allowed, _ := c.robots.Allowed(gCtx, u.Scheme, u.Host, opts.UserAgent, u.Path)
				if !allowed {
					mu.Lock()
					stats.Blocked++
					mu.Unlock()
					zap.L().Debug("crawler: blocked by robots", zap.String("url", item.url))
					return nil
				}

				res, ferr := c.fetch.Fetch(gCtx, item.url)
				mu.Lock()
				defer mu.Unlock()

				if ferr != nil {
					stats.Failed++
					pages = append(pages, FetchedPage{URL: item.url, Depth: item.depth, Err: ferr})
					return nil
				}

				stats.Fetched++
				pages = append(pages, FetchedPage{URL: item.url, Depth: item.depth, Result: res})

				if item.depth >= opts.MaxDepth {
					return nil
				}
				for _, link := range extractLinks(res.Body, u) {
					if len(seen) >= opts.MaxPages*4 {
						break
					}
					lu, lerr := url.Parse(link)
					if lerr != nil || !SameSite(lu.Host, base.Host) {
						continue
					}
					if fetcher.Skippable(link) {
						continue
					}
					norm, nerr := Normalize(link)
					if nerr != nil || seen[norm] {
						continue
					}
					seen[norm] = true
					queue = append(queue, frontierItem{url: norm, depth: item.depth + 1})
				}
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	zap.L().Info("crawler: crawl complete",
		zap.String("seed", seed),
		zap.Int("fetched", stats.Fetched),
		zap.Int("failed", stats.Failed),
		zap.Int("blocked", stats.Blocked),
	)

	if stats.Fetched == 0 {
		return pages, stats, ErrZeroPagesCrawled
	}
	return pages, stats, nil
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// fetchSitemapURLs fetches and parses sitemap.xml, returning same-site
// URLs. Sitemap index files are not expanded.
func (c *Crawler) fetchSitemapURLs(ctx context.Context, base *url.URL) []string {
	res, err := c.fetch.Fetch(ctx, base.Scheme+"://"+base.Host+"/sitemap.xml")
	if err != nil {
		return nil
	}

	var urlSet sitemapURLSet
	if err := xml.Unmarshal(res.Body, &urlSet); err != nil {
		return nil
	}

	var urls []string
	for _, entry := range urlSet.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		u, perr := url.Parse(loc)
		if perr != nil || !SameSite(u.Host, base.Host) {
			continue
		}
		urls = append(urls, loc)
	}
	return urls
}

// extractLinks pulls href attributes out of anchor tags, resolving
// relative references against base.
func extractLinks(body []byte, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	tok := html.NewTokenizer(strings.NewReader(string(body)))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			if tok.Err() == io.EOF {
				break
			}
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tok.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := tok.TagAttr()
			if string(key) == "href" {
				href := string(val)
				if href == "" || strings.HasPrefix(href, "#") ||
					strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
					strings.HasPrefix(href, "tel:") {
					break
				}
				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				abs := base.ResolveReference(ref)
				abs.Fragment = ""
				s := abs.String()
				if !seen[s] {
					seen[s] = true
					links = append(links, s)
				}
				break
			}
			if !more {
				break
			}
		}
	}
	return links
}
