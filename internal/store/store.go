// Package store persists audit artifacts. Two drivers: SQLite for local
// single-binary use and Postgres for hosted deployments.
package store

import (
	"context"
	"time"

	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	SiteID string          `json:"site_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the audit pipeline.
type Store interface {
	// Runs
	BeginRun(ctx context.Context, site model.Site, opts model.RunOptions) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunProgress(ctx context.Context, runID string, progress model.Progress) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Artifacts
	PutPage(ctx context.Context, page *model.Page) error
	ListPages(ctx context.Context, runID string) ([]model.Page, error)
	PutChunks(ctx context.Context, runID string, chunks []model.Chunk) error
	PutEmbeddings(ctx context.Context, embeddings []model.Embedding) error
	PutSimResult(ctx context.Context, result *model.SimResult) error
	ListSimResults(ctx context.Context, runID string) ([]model.SimResult, error)
	PutPillarScore(ctx context.Context, score *model.PillarScore) error
	PutReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, runID string) (*model.Report, error)

	// Crawl cache
	GetCachedCrawl(ctx context.Context, domain string) ([]model.Page, error)
	SetCachedCrawl(ctx context.Context, domain string, pages []model.Page, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Calibration
	GetActiveCalibrationConfig(ctx context.Context) (*model.CalibrationConfig, error)
	GetCalibrationConfig(ctx context.Context, configID string) (*model.CalibrationConfig, error)
	PutCalibrationConfig(ctx context.Context, cfg *model.CalibrationConfig) error
	ActivateCalibrationConfig(ctx context.Context, configID string) error
	PutCalibrationSamples(ctx context.Context, samples []model.CalibrationSample) error
	ListCalibrationSamples(ctx context.Context, since time.Time) ([]model.CalibrationSample, error)
	PutExperiment(ctx context.Context, exp *model.Experiment) error
	GetRunningExperiment(ctx context.Context) (*model.Experiment, error)
	ConcludeExperiment(ctx context.Context, expID string, readout calibration.Readout) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
