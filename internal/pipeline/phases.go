package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findable-hq/findable/internal/analyzer"
	"github.com/findable-hq/findable/internal/chunker"
	"github.com/findable-hq/findable/internal/config"
	"github.com/findable-hq/findable/internal/cost"
	"github.com/findable-hq/findable/internal/crawler"
	"github.com/findable-hq/findable/internal/embed"
	"github.com/findable-hq/findable/internal/index"
	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/questions"
	"github.com/findable-hq/findable/internal/retrieve"
	"github.com/findable-hq/findable/internal/robots"
)

// probeAccess evaluates robots.txt and probes /llms.txt for the site.
func (p *Pipeline) probeAccess(ctx context.Context, domain string) (*robots.Result, analyzer.LLMSTxt, error) {
	scheme, host := splitSite(domain)

	res, err := p.robots.Evaluate(ctx, scheme, host)
	if err != nil {
		return nil, analyzer.LLMSTxt{}, eris.Wrap(err, "pipeline: evaluate robots")
	}

	var llms analyzer.LLMSTxt
	if fetched, ferr := p.fetch.Fetch(ctx, scheme+"://"+host+"/llms.txt"); ferr == nil && fetched.StatusCode == 200 {
		body := string(fetched.Body)
		// HTML back from /llms.txt is a soft-404 catch-all, not the file.
		if !strings.Contains(strings.ToLower(body[:min(len(body), 256)]), "<html") {
			llms.Present = true
			llms.Structured = strings.Contains(body, "# ") && strings.Contains(body, "](")
		}
	}
	return res, llms, nil
}

// crawlPhase returns the run's pages, served from the crawl cache when a
// fresh copy exists. Pages are persisted before the phase returns.
func (p *Pipeline) crawlPhase(ctx context.Context, run *model.Run) ([]model.Page, crawler.Stats, bool, error) {
	if cached, err := p.store.GetCachedCrawl(ctx, run.Site.Domain); err == nil && len(cached) > 0 {
		var stats crawler.Stats
		for i := range cached {
			cached[i].ID = uuid.New().String()
			cached[i].RunID = run.ID
			if cached[i].FetchError != "" {
				stats.Failed++
			} else {
				stats.Fetched++
			}
			if perr := p.store.PutPage(ctx, &cached[i]); perr != nil {
				return nil, stats, false, eris.Wrap(perr, "pipeline: persist cached page")
			}
		}
		zap.L().Info("pipeline: crawl served from cache",
			zap.String("domain", run.Site.Domain),
			zap.Int("pages", len(cached)),
		)
		return cached, stats, true, nil
	}

	opts := run.Options
	opts.ApplyDefaults()
	if run.Site.MaxPagesCap > 0 && opts.MaxPages > run.Site.MaxPagesCap {
		opts.MaxPages = run.Site.MaxPagesCap
	}

	scheme, host := splitSite(run.Site.Domain)
	fetched, stats, err := p.crawler.Crawl(ctx, scheme+"://"+host, crawler.Options{
		MaxPages:      opts.MaxPages,
		MaxDepth:      opts.MaxDepth,
		Concurrency:   opts.Concurrency,
		PriorityPaths: p.cfg.Crawl.PriorityPaths,
	})
	if err != nil {
		return nil, stats, false, err
	}

	pages := make([]model.Page, 0, len(fetched))
	for _, fp := range fetched {
		page := p.extractPage(fp)
		page.ID = uuid.New().String()
		page.RunID = run.ID
		if perr := p.store.PutPage(ctx, page); perr != nil {
			return nil, stats, false, eris.Wrap(perr, "pipeline: persist page")
		}
		pages = append(pages, *page)
	}

	if ttl := time.Duration(p.cfg.Crawl.CacheTTLHours) * time.Hour; ttl > 0 {
		if cerr := p.store.SetCachedCrawl(ctx, run.Site.Domain, pages, ttl); cerr != nil {
			zap.L().Warn("pipeline: cache crawl", zap.Error(cerr))
		}
	}
	return pages, stats, false, nil
}

// extractPage turns one fetch outcome into a Page. Fetch and extraction
// failures degrade to a page carrying only the error, which the pillar
// analyzers count against the site.
func (p *Pipeline) extractPage(fp crawler.FetchedPage) *model.Page {
	if fp.Err != nil {
		return &model.Page{URL: fp.URL, Depth: fp.Depth, FetchError: fp.Err.Error()}
	}
	page, err := p.extractor.Extract(fp.URL, fp.Depth, fp.Result.StatusCode, fp.Result.TTFBMillis, fp.Result.Body)
	if err != nil {
		return &model.Page{
			URL:        fp.URL,
			Depth:      fp.Depth,
			StatusCode: fp.Result.StatusCode,
			TTFBMillis: fp.Result.TTFBMillis,
			FetchError: err.Error(),
		}
	}
	page.FinalURL = fp.Result.FinalURL
	return page
}

// chunkPhase splits every content page and persists the chunks.
func (p *Pipeline) chunkPhase(ctx context.Context, runID string, pages []model.Page) ([]model.Chunk, error) {
	opts := chunker.Options{
		MinTokens: p.cfg.Retrieval.ChunkMinTokens,
		MaxTokens: p.cfg.Retrieval.ChunkMaxTokens,
		Overlap:   p.cfg.Retrieval.ChunkOverlap,
	}

	var chunks []model.Chunk
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: chunk")
		}
		page := &pages[i]
		if page.FetchError != "" || page.StatusCode >= 400 {
			continue
		}
		for _, c := range chunker.Split(page, opts) {
			// Deterministic IDs: re-auditing unchanged content yields the
			// same chunk IDs, which keeps retrieval tie-breaks stable
			// between runs.
			c.ID = uuid.NewSHA1(uuid.NameSpaceURL,
				fmt.Appendf(nil, "%s#%d#%s", page.URL, c.Ordinal, c.ContentHash)).String()
			chunks = append(chunks, c)
		}
	}

	if err := p.store.PutChunks(ctx, runID, chunks); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist chunks")
	}
	return chunks, nil
}

// indexes holds the two per-run chunk indexes behind the build barrier.
type indexes struct {
	bm25    *index.BM25Index
	vectors *index.VectorIndex
}

// retriever assembles the hybrid retriever over the built indexes.
func (ix *indexes) retriever(embedder embed.Embedder, chunks []model.Chunk, cfg config.RetrievalConfig) *retrieve.Retriever {
	return retrieve.New(ix.bm25, ix.vectors, embedder, chunks, retrieve.Options{
		TopK:         cfg.TopK,
		RRFK:         cfg.RRFK,
		VectorWeight: cfg.VectorWeight,
		BM25Weight:   cfg.BM25Weight,
		PerPageCap:   cfg.PerPageCap,
	})
}

// indexPhase embeds every chunk and builds both indexes. Embedding runs
// in bounded parallel batches through the content-hash cache, so repeated
// chunk text embeds once; the indexes are read-only afterwards.
func (p *Pipeline) indexPhase(ctx context.Context, runID string, chunks []model.Chunk) (*indexes, error) {
	bm25 := index.NewBM25(index.BM25Options{
		K1: p.cfg.Retrieval.BM25K1,
		B:  p.cfg.Retrieval.BM25B,
	})
	vectors := index.NewVector(p.embedder.ID())

	for i := range chunks {
		bm25.Add(chunks[i].ID, chunks[i].Text)
	}
	bm25.Build()

	batchSize := p.cfg.Embed.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	concurrency := p.cfg.Embed.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	vecs := make([][]float32, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var mu sync.Mutex

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			hashes := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
				hashes = append(hashes, c.ContentHash)
			}
			out, err := p.embedder.EmbedHashed(gCtx, embed.KindDocument, texts, hashes)
			if err != nil {
				return eris.Wrap(err, "pipeline: embed batch")
			}
			mu.Lock()
			copy(vecs[start:end], out)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings := make([]model.Embedding, 0, len(chunks))
	for i := range chunks {
		vectors.Add(chunks[i].ID, vecs[i])
		embeddings = append(embeddings, model.Embedding{
			ChunkID: chunks[i].ID,
			ModelID: p.embedder.ID(),
			Vector:  vecs[i],
		})
	}
	if err := p.store.PutEmbeddings(ctx, embeddings); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist embeddings")
	}

	return &indexes{bm25: bm25, vectors: vectors}, nil
}

// observePhase queries the live observer for every question, judges each
// prediction against the observed outcome, and banks calibration samples.
// Returns the sample count and whether the cost cap stopped the loop.
func (p *Pipeline) observePhase(
	ctx context.Context,
	run *model.Run,
	suite []model.Question,
	simResults []model.SimResult,
	pillars []model.PillarScore,
	arm string,
) (int, bool, error) {
	capUSD := run.Options.ObservationCostCapUSD
	if capUSD <= 0 {
		capUSD = p.cfg.Observation.CostCapUSD
	}
	tracker := cost.NewTracker(capUSD)

	simByQ := make(map[string]*model.SimResult, len(simResults))
	for i := range simResults {
		simByQ[simResults[i].QuestionID] = &simResults[i]
	}
	snapshot := make(map[model.Pillar]float64, len(pillars))
	for _, ps := range pillars {
		snapshot[ps.Pillar] = ps.Raw
	}

	brand := questions.Brand(run.Site.Domain)
	var samples []model.CalibrationSample
	capped := false

	for _, q := range suite {
		if err := ctx.Err(); err != nil {
			break
		}
		if !tracker.Allow() {
			capped = true
			break
		}
		sim, ok := simByQ[q.ID]
		if !ok {
			continue
		}

		obs, err := p.observer.QueryAI(ctx, q, run.Site.Domain, brand)
		if err != nil {
			zap.L().Warn("pipeline: observation query failed",
				zap.String("question_id", q.ID),
				zap.Error(err),
			)
			continue
		}
		if !tracker.Spend(obs.CostUSD) {
			capped = true
		}

		samples = append(samples, model.CalibrationSample{
			RunID:         run.ID,
			QuestionID:    q.ID,
			Category:      q.Category,
			Predicted:     sim.Answerability,
			SimScore:      sim.Score,
			Observed:      obs.Outcome,
			Verdict:       model.Judge(sim.Answerability, obs.Outcome),
			PillarScores:  snapshot,
			ExperimentArm: arm,
			CreatedAt:     time.Now().UTC(),
		})
	}

	if len(samples) > 0 {
		if err := p.store.PutCalibrationSamples(context.WithoutCancel(ctx), samples); err != nil {
			return len(samples), capped, eris.Wrap(err, "pipeline: persist calibration samples")
		}
	}
	zap.L().Info("pipeline: observation arm complete",
		zap.Int("samples", len(samples)),
		zap.Float64("spent_usd", tracker.Spent()),
		zap.Bool("capped", capped),
	)
	return len(samples), capped, nil
}

// splitSite normalizes a configured site into scheme and host. A bare
// domain defaults to https.
func splitSite(domain string) (scheme, host string) {
	s := strings.TrimSpace(domain)
	scheme = "https"
	if rest, found := strings.CutPrefix(s, "http://"); found {
		scheme, s = "http", rest
	} else if rest, found := strings.CutPrefix(s, "https://"); found {
		s = rest
	}
	host = strings.TrimSuffix(strings.SplitN(s, "/", 2)[0], "/")
	return scheme, host
}
