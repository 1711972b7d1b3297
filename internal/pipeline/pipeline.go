// Package pipeline orchestrates a full audit run: crawl, extract, chunk,
// index, simulate, analyze, score, and the optional observation arm. Each
// phase is tracked in the store so a run's history is inspectable after
// the fact.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/analyzer"
	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/config"
	"github.com/findable-hq/findable/internal/crawler"
	"github.com/findable-hq/findable/internal/embed"
	"github.com/findable-hq/findable/internal/extract"
	"github.com/findable-hq/findable/internal/fetcher"
	"github.com/findable-hq/findable/internal/fix"
	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/questions"
	"github.com/findable-hq/findable/internal/robots"
	"github.com/findable-hq/findable/internal/score"
	"github.com/findable-hq/findable/internal/simulate"
	"github.com/findable-hq/findable/internal/store"
	"github.com/findable-hq/findable/pkg/observer"
)

// Pipeline runs audits. One Pipeline serves many runs; all per-run state
// lives on the stack of Execute.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	fetch     *fetcher.Fetcher
	robots    *robots.Checker
	crawler   *crawler.Crawler
	extractor *extract.Extractor
	embedder  *embed.CachedEmbedder
	entity    *analyzer.EntityLookup
	observer  observer.Observer // nil disables the observation arm
}

// New wires a Pipeline from config. The observer may be nil; runs that
// request observation without one simply skip the arm.
func New(cfg *config.Config, st store.Store, obs observer.Observer) *Pipeline {
	f := fetcher.New(cfg.Fetch)
	rc := robots.NewChecker(f, time.Duration(cfg.Fetch.RobotsTTLSecs)*time.Second)

	// The cache wraps every provider so repeated chunk text embeds once
	// per content hash, whatever the backend.
	var inner embed.Embedder
	switch cfg.Embed.Provider {
	case "remote":
		inner = embed.NewRemote(cfg.Embed)
	default:
		inner = embed.NewMock(cfg.Embed.Dimensions)
	}

	return &Pipeline{
		cfg:       cfg,
		store:     st,
		fetch:     f,
		robots:    rc,
		crawler:   crawler.New(f, rc),
		extractor: extract.New(),
		embedder:  embed.NewCached(inner),
		entity:    analyzer.NewEntityLookup(nil, cfg.Fetch.UserAgent),
		observer:  obs,
	}
}

// Execute runs the full audit for one run record and returns its report.
// The run deadline from config bounds the whole pipeline; expiry finishes
// the run as partial rather than failed when a report could be produced.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) (*model.Report, error) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("domain", run.Site.Domain))
	log.Info("pipeline: starting audit")

	if p.cfg.Crawl.RunDeadlineSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Crawl.RunDeadlineSecs)*time.Second)
		defer cancel()
	}

	// Status and progress writes survive context expiry so a timed-out run
	// still lands in a terminal state.
	bg := context.WithoutCancel(ctx)
	setStatus := func(status model.RunStatus) {
		if err := p.store.UpdateRunStatus(bg, run.ID, status); err != nil {
			log.Warn("pipeline: update status", zap.Error(err))
		}
	}
	progress := func(prog model.Progress) {
		run.Progress = prog
		if err := p.store.UpdateRunProgress(bg, run.ID, prog); err != nil {
			log.Warn("pipeline: update progress", zap.Error(err))
		}
	}
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
		phase, perr := p.store.CreatePhase(bg, run.ID, name)
		if perr != nil {
			log.Warn("pipeline: create phase", zap.String("phase", name), zap.Error(perr))
		}

		start := time.Now()
		result, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if result == nil {
			result = &model.PhaseResult{}
		}
		result.Name = name
		result.Duration = duration

		if fnErr != nil {
			result.Status = model.PhaseStatusFailed
			result.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else if result.Status == "" {
			result.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(bg, phase.ID, result)
		}
		return result
	}
	fail := func(err error) (*model.Report, error) {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			setStatus(model.RunStatusPartial)
		case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
			setStatus(model.RunStatusCanceled)
		default:
			setStatus(model.RunStatusFailed)
		}
		return nil, err
	}

	setStatus(model.RunStatusRunning)

	// The calibration config is snapshotted once here; a config change or
	// experiment conclusion mid-flight never alters this run.
	calCfg, arm, err := p.resolveCalibration(ctx, run)
	if err != nil {
		return fail(err)
	}
	if arm != "" {
		log.Info("pipeline: experiment arm assigned", zap.String("arm", arm))
	}

	// Robots and llms.txt probes.
	var (
		robotsRes *robots.Result
		llms      analyzer.LLMSTxt
	)
	pr := trackPhase("robots", func() (*model.PhaseResult, error) {
		var perr error
		robotsRes, llms, perr = p.probeAccess(ctx, run.Site.Domain)
		if perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"robots_found":   robotsRes.Found,
			"combined_score": robotsRes.Combined,
			"llms_txt":       llms.Present,
		}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}

	// Crawl, served from the crawl cache when a fresh copy exists.
	var (
		pages     []model.Page
		stats     crawler.Stats
		fromCache bool
	)
	pr = trackPhase("crawl", func() (*model.PhaseResult, error) {
		var perr error
		pages, stats, fromCache, perr = p.crawlPhase(ctx, run)
		if perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"pages":      len(pages),
			"fetched":    stats.Fetched,
			"failed":     stats.Failed,
			"blocked":    stats.Blocked,
			"from_cache": fromCache,
		}}, nil
	})
	if pr.Error != "" {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
			return fail(ctx.Err())
		}
		// Zero pages is a hard stop, but the operator still gets a report
		// telling them the site was unreachable.
		report := p.zeroPagesReport(run.ID)
		if rerr := p.store.PutReport(bg, report); rerr != nil {
			log.Warn("pipeline: persist zero-pages report", zap.Error(rerr))
		}
		setStatus(model.RunStatusFailed)
		return report, eris.New(pr.Error)
	}
	progress(model.Progress{
		Step:         "crawled",
		PagesCrawled: stats.Fetched,
		PagesFailed:  stats.Failed,
		PagesBlocked: stats.Blocked,
	})

	// Chunk.
	var chunks []model.Chunk
	pr = trackPhase("chunk", func() (*model.PhaseResult, error) {
		var perr error
		chunks, perr = p.chunkPhase(ctx, run.ID, pages)
		if perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{Metadata: map[string]any{"chunks": len(chunks)}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}

	// Embed and index.
	var idx *indexes
	pr = trackPhase("index", func() (*model.PhaseResult, error) {
		var perr error
		idx, perr = p.indexPhase(ctx, run.ID, chunks)
		if perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"bm25_docs": idx.bm25.Len(),
			"vectors":   idx.vectors.Len(),
			"model_id":  p.embedder.ID(),
		}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}
	run.Progress.Step = "indexed"
	run.Progress.ChunksIndexed = len(chunks)
	progress(run.Progress)

	// Question suite.
	var suite []model.Question
	pr = trackPhase("questions", func() (*model.PhaseResult, error) {
		custom, cerr := questions.LoadCustom(p.cfg.Questions.CustomFile)
		if cerr != nil {
			return nil, cerr
		}
		suite = questions.Build(run.Site, questions.ObserveSignals(pages), custom)
		return &model.PhaseResult{Metadata: map[string]any{"questions": len(suite)}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}

	// Simulate.
	var simResults []model.SimResult
	pr = trackPhase("simulate", func() (*model.PhaseResult, error) {
		retriever := idx.retriever(p.embedder, chunks, p.cfg.Retrieval)
		sim := simulate.New(retriever, calCfg.Thresholds, p.cfg.Retrieval.TopN, run.Options.QuestionBudgetTokens)
		results, serr := sim.Run(ctx, run.ID, suite)
		simResults = results
		for i := range simResults {
			if perr := p.store.PutSimResult(bg, &simResults[i]); perr != nil {
				log.Warn("pipeline: persist sim result", zap.Error(perr))
			}
		}
		if serr != nil {
			return nil, serr
		}
		return &model.PhaseResult{Metadata: map[string]any{"simulated": len(simResults)}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}
	run.Progress.Step = "simulated"
	run.Progress.QuestionsSimulated = len(simResults)
	run.Progress.TotalQuestions = len(suite)
	progress(run.Progress)

	// Analyze pillars.
	var pillars []model.PillarScore
	pr = trackPhase("analyze", func() (*model.PhaseResult, error) {
		entity := p.entity.Collect(ctx, questions.Brand(run.Site.Domain), run.Site.Domain)
		in := &analyzer.Input{
			RunID:   run.ID,
			Site:    run.Site,
			Pages:   pages,
			Chunks:  chunks,
			Robots:  robotsRes,
			LLMSTxt: llms,
			Sim:     simResults,
			Entity:  entity,
		}
		scored, aerr := analyzer.Analyze(ctx, in)
		if aerr != nil {
			return nil, aerr
		}
		pillars = scored
		for i := range pillars {
			if perr := p.store.PutPillarScore(bg, &pillars[i]); perr != nil {
				log.Warn("pipeline: persist pillar score", zap.Error(perr))
			}
		}
		return &model.PhaseResult{Metadata: map[string]any{"pillars": len(pillars)}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}

	// Score and fixes.
	var report model.Report
	pr = trackPhase("score", func() (*model.PhaseResult, error) {
		calc := score.New(*calCfg)
		report = calc.Compute(run.ID, pillars, simResults)
		report.Fixes, report.ActionCenter = fix.Generate(pillars, suite, simResults)
		if perr := p.store.PutReport(bg, &report); perr != nil {
			return nil, perr
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"total_score": report.TotalScore,
			"level":       string(report.Level),
			"fixes":       len(report.Fixes),
		}}, nil
	})
	if pr.Error != "" {
		return fail(eris.New(pr.Error))
	}

	// Optional observation arm: query a live AI system and bank the
	// prediction/observation pairs for calibration.
	capped := false
	if run.Options.IncludeObservation && p.observer != nil {
		pr = trackPhase("observe", func() (*model.PhaseResult, error) {
			n, hitCap, oerr := p.observePhase(ctx, run, suite, simResults, pillars, arm)
			capped = hitCap
			if oerr != nil {
				return nil, oerr
			}
			return &model.PhaseResult{Metadata: map[string]any{
				"samples":  n,
				"cost_cap": hitCap,
			}}, nil
		})
		if pr.Error != "" && !capped {
			log.Warn("pipeline: observation arm failed", zap.String("error", pr.Error))
		}
	}

	run.Progress.Step = "done"
	progress(run.Progress)

	final := model.RunStatusCompleted
	if capped || ctx.Err() != nil {
		final = model.RunStatusPartial
	}
	setStatus(final)
	log.Info("pipeline: audit finished",
		zap.String("status", string(final)),
		zap.Float64("total_score", report.TotalScore),
		zap.String("level", string(report.Level)),
	)
	return &report, nil
}

// resolveCalibration snapshots the calibration config for this run. An
// explicit config ID on the run options wins; otherwise a running
// experiment may route the site to its treatment config.
func (p *Pipeline) resolveCalibration(ctx context.Context, run *model.Run) (*model.CalibrationConfig, string, error) {
	if id := run.Options.CalibrationConfigID; id != "" {
		cfg, err := p.store.GetCalibrationConfig(ctx, id)
		if err != nil {
			return nil, "", eris.Wrap(err, "pipeline: pinned calibration config")
		}
		return cfg, "", nil
	}

	active, err := p.store.GetActiveCalibrationConfig(ctx)
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: active calibration config")
	}

	exp, err := p.store.GetRunningExperiment(ctx)
	if err != nil || exp == nil {
		return active, "", nil
	}

	arm := run.Options.ExperimentArmOverride
	if arm == "" {
		arm = calibration.Assign(run.SiteID, exp.AssignmentSeed)
	}
	if arm != calibration.ArmTreatment {
		return active, calibration.ArmControl, nil
	}
	treatment, err := p.store.GetCalibrationConfig(ctx, exp.TreatmentConfigID)
	if err != nil {
		zap.L().Warn("pipeline: treatment config unavailable, falling back to active",
			zap.String("experiment_id", exp.ID),
			zap.Error(err),
		)
		return active, calibration.ArmControl, nil
	}
	return treatment, calibration.ArmTreatment, nil
}

// zeroPagesReport is the terminal report for a run that fetched nothing.
func (p *Pipeline) zeroPagesReport(runID string) *model.Report {
	fixes, ac := fix.ZeroPages()
	return &model.Report{
		RunID:        runID,
		TotalScore:   0,
		EvaluatedMax: 100,
		Level:        model.LevelNotYetFindable,
		Fixes:        fixes,
		ActionCenter: ac,
		GeneratedAt:  time.Now().UTC(),
	}
}
