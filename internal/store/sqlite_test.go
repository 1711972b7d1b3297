package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "findable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func beginTestRun(t *testing.T, s *SQLiteStore) *model.Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(),
		model.Site{ID: "acme.com", Domain: "acme.com"}, model.RunOptions{})
	require.NoError(t, err)
	return run
}

func TestBeginRunDefaults(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	run := beginTestRun(t, s)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, 250, run.Options.MaxPages, "defaults applied at persist time")
	assert.Equal(t, 3, run.Options.MaxDepth)
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	run := beginTestRun(t, s)
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))
	require.NoError(t, s.UpdateRunProgress(ctx, run.ID, model.Progress{Step: "crawl", PagesCrawled: 12}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, "crawl", got.Progress.Step)
	assert.Equal(t, 12, got.Progress.PagesCrawled)
	assert.Equal(t, "acme.com", got.Site.Domain)
}

func TestUpdateMissingRun(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	err := s.UpdateRunStatus(context.Background(), "no-such-run", model.RunStatusFailed)
	assert.Error(t, err)
}

func TestListRunsFilters(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	a := beginTestRun(t, s)
	other, err := s.BeginRun(ctx, model.Site{ID: "other.com", Domain: "other.com"}, model.RunOptions{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, other.ID, model.RunStatusCompleted))

	bySite, err := s.ListRuns(ctx, RunFilter{SiteID: "acme.com"})
	require.NoError(t, err)
	require.Len(t, bySite, 1)
	assert.Equal(t, a.ID, bySite[0].ID)

	byStatus, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, other.ID, byStatus[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPhases(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	run := beginTestRun(t, s)
	phase, err := s.CreatePhase(ctx, run.ID, "crawl")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	require.NoError(t, s.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name: "crawl", Status: model.PhaseStatusComplete, Duration: 1500,
		Metadata: map[string]any{"pages": 42},
	}))

	err = s.CompletePhase(ctx, "no-such-phase", &model.PhaseResult{Status: model.PhaseStatusComplete})
	assert.Error(t, err)
}

func TestPagesRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	run := beginTestRun(t, s)
	page := &model.Page{
		ID: uuid.New().String(), RunID: run.ID,
		URL: "https://acme.com/pricing", StatusCode: 200,
		ExtractedText: "Pricing starts at $29.",
		Headings:      []model.Heading{{Level: 1, Text: "Pricing"}},
	}
	require.NoError(t, s.PutPage(ctx, page))

	pages, err := s.ListPages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, page.URL, pages[0].URL)
	assert.Equal(t, page.Headings, pages[0].Headings)
}

func TestSimResultsRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	run := beginTestRun(t, s)
	res := &model.SimResult{
		RunID: run.ID, QuestionID: "u01", Score: 0.72,
		Answerability: model.FullyAnswerable, RelevanceNorm: 0.8,
	}
	require.NoError(t, s.PutSimResult(ctx, res))

	// Idempotent upsert per (run, question).
	res.Score = 0.75
	require.NoError(t, s.PutSimResult(ctx, res))

	results, err := s.ListSimResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestReportRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	run := beginTestRun(t, s)
	report := &model.Report{
		RunID: run.ID, TotalScore: 65.5, EvaluatedMax: 100,
		Level: model.LevelFindable, GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutReport(ctx, report))

	got, err := s.GetReport(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 65.5, got.TotalScore)
	assert.Equal(t, model.LevelFindable, got.Level)

	missing, err := s.GetReport(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, missing, "an absent report is nil, not an error")
}

func TestCrawlCache(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	pages := []model.Page{{ID: "p1", URL: "https://acme.com/"}}
	require.NoError(t, s.SetCachedCrawl(ctx, "acme.com", pages, time.Hour))

	got, err := s.GetCachedCrawl(ctx, "acme.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme.com/", got[0].URL)

	miss, err := s.GetCachedCrawl(ctx, "other.com")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestCrawlCacheExpiry(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedCrawl(ctx, "acme.com",
		[]model.Page{{ID: "p1"}}, -time.Minute))

	got, err := s.GetCachedCrawl(ctx, "acme.com")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries never serve")

	n, err := s.DeleteExpiredCrawls(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCalibrationConfigLifecycle(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	// No stored config: the shipped default comes back.
	active, err := s.GetActiveCalibrationConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", active.ID)

	cfg := model.DefaultCalibrationConfig()
	cfg.ID = ""
	cfg.Name = "optimized"
	cfg.Status = model.ConfigDraft
	require.NoError(t, s.PutCalibrationConfig(ctx, &cfg))
	assert.NotEmpty(t, cfg.ID, "an ID is assigned on insert")

	byID, err := s.GetCalibrationConfig(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "optimized", byID.Name)

	require.NoError(t, s.ActivateCalibrationConfig(ctx, cfg.ID))
	active, err = s.GetActiveCalibrationConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, active.ID)
	assert.Equal(t, model.ConfigActive, active.Status)
}

func TestActivateInvalidConfigRefused(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	bad := model.DefaultCalibrationConfig()
	bad.ID = ""
	bad.Weights[model.PillarTechnical] = 95 // sum breaks
	require.NoError(t, s.PutCalibrationConfig(ctx, &bad))

	err := s.ActivateCalibrationConfig(ctx, bad.ID)
	assert.Error(t, err)
}

func TestCalibrationSamples(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	samples := []model.CalibrationSample{
		{RunID: "r1", QuestionID: "u01", Verdict: model.VerdictCorrect, SimScore: 0.8},
		{RunID: "r1", QuestionID: "u02", Verdict: model.VerdictOptimistic, SimScore: 0.6},
	}
	require.NoError(t, s.PutCalibrationSamples(ctx, samples))

	got, err := s.ListCalibrationSamples(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.VerdictCorrect, got[0].Verdict)

	none, err := s.ListCalibrationSamples(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExperimentLifecycle(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	none, err := s.GetRunningExperiment(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	exp := &model.Experiment{
		ControlConfigID:   "cfg-a",
		TreatmentConfigID: "cfg-b",
		Status:            model.ExperimentRunning,
		AssignmentSeed:    "seed-1",
	}
	require.NoError(t, s.PutExperiment(ctx, exp))

	running, err := s.GetRunningExperiment(ctx)
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, exp.ID, running.ID)

	require.NoError(t, s.ConcludeExperiment(ctx, exp.ID, calibration.Readout{
		Winner: calibration.ArmTreatment, ControlSamples: 80, TreatmentSamples: 85,
	}))

	after, err := s.GetRunningExperiment(ctx)
	require.NoError(t, err)
	assert.Nil(t, after, "a concluded experiment no longer surfaces as running")
}
