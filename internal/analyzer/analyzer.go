// Package analyzer computes the pillar scores for a run from its crawl
// artifacts. Analyzers read disjoint aspects of the same immutable data,
// so they run concurrently.
package analyzer

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/robots"
)

// LLMSTxt is the probe result for /llms.txt.
type LLMSTxt struct {
	Present    bool
	Structured bool // markdown headings and links, not a bare text dump
}

// Input bundles the run artifacts every analyzer reads. All fields are
// immutable once the pipeline hands them over.
type Input struct {
	RunID   string
	Site    model.Site
	Pages   []model.Page
	Chunks  []model.Chunk
	Robots  *robots.Result
	LLMSTxt LLMSTxt
	Sim     []model.SimResult
	Entity  *EntityEvidence // nil when the entity pillar is inactive
}

type pillarFn func(in *Input) model.PillarScore

// Analyze runs every active pillar analyzer concurrently and returns the
// scores in display order.
func Analyze(ctx context.Context, in *Input) ([]model.PillarScore, error) {
	analyzers := map[model.Pillar]pillarFn{
		model.PillarTechnical: analyzeTechnical,
		model.PillarStructure: analyzeStructure,
		model.PillarSchema:    analyzeSchema,
		model.PillarAuthority: analyzeAuthority,
		model.PillarRetrieval: analyzeRetrieval,
		model.PillarCoverage:  analyzeCoverage,
	}
	if in.Entity != nil {
		analyzers[model.PillarEntityRecognition] = analyzeEntity
	}

	results := make(map[model.Pillar]model.PillarScore, len(analyzers))
	var g errgroup.Group
	resCh := make(chan model.PillarScore, len(analyzers))

	for pillar, fn := range analyzers {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return eris.Wrapf(ctx.Err(), "analyzer: %s", pillar)
			default:
			}
			ps := fn(in)
			zap.L().Debug("analyzer: pillar scored",
				zap.String("pillar", string(ps.Pillar)),
				zap.Float64("raw", ps.Raw),
				zap.String("level", string(ps.Level)),
			)
			resCh <- ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(resCh)
	for ps := range resCh {
		results[ps.Pillar] = ps
	}

	order := model.AllPillars()
	out := make([]model.PillarScore, 0, len(results))
	for _, p := range order {
		if ps, ok := results[p]; ok {
			out = append(out, ps)
		}
	}
	return out, nil
}

// contentPages filters out pages that failed to fetch or carry no text.
func contentPages(pages []model.Page) []*model.Page {
	var out []*model.Page
	for i := range pages {
		p := &pages[i]
		if p.FetchError != "" || p.StatusCode >= 400 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func ratio100(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return 100 * float64(num) / float64(den)
}
