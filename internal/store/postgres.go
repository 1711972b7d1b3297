package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/db"
	"github.com/findable-hq/findable/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_run":          `INSERT INTO runs (id, site_id, site, options, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_run_status":   `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_progress": `UPDATE runs SET progress = $1, updated_at = $2 WHERE id = $3`,
	"get_run":             `SELECT id, site_id, site, options, status, progress, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_page":         `INSERT INTO pages (id, run_id, url, data) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
	"insert_sim_result":   `INSERT INTO sim_results (run_id, question_id, data) VALUES ($1, $2, $3) ON CONFLICT (run_id, question_id) DO UPDATE SET data = EXCLUDED.data`,
	"insert_pillar_score": `INSERT INTO pillar_scores (run_id, pillar, data) VALUES ($1, $2, $3) ON CONFLICT (run_id, pillar) DO UPDATE SET data = EXCLUDED.data`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_id    TEXT NOT NULL,
	site       JSONB NOT NULL,
	options    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	progress   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pages (
	id     TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	url    TEXT NOT NULL,
	data   JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id     TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	data   JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	vector   JSONB NOT NULL,
	PRIMARY KEY (chunk_id, model_id)
);

CREATE TABLE IF NOT EXISTS sim_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	question_id TEXT NOT NULL,
	data        JSONB NOT NULL,
	PRIMARY KEY (run_id, question_id)
);

CREATE TABLE IF NOT EXISTS pillar_scores (
	run_id TEXT NOT NULL REFERENCES runs(id),
	pillar TEXT NOT NULL,
	data   JSONB NOT NULL,
	PRIMARY KEY (run_id, pillar)
);

CREATE TABLE IF NOT EXISTS reports (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain     TEXT NOT NULL,
	pages      JSONB NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_configs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS calibration_samples (
	run_id      TEXT NOT NULL,
	question_id TEXT NOT NULL,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, question_id)
);

CREATE TABLE IF NOT EXISTS experiments (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_site_id ON runs(site_id);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_pages_run_id ON pages(run_id);
CREATE INDEX IF NOT EXISTS idx_chunks_run_id ON chunks(run_id);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_domain ON crawl_cache(domain);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_calibration_samples_created ON calibration_samples(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) BeginRun(ctx context.Context, site model.Site, opts model.RunOptions) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	opts.ApplyDefaults()

	siteJSON, err := json.Marshal(site)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal site")
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal options")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, site_id, site, options, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, site.ID, siteJSON, optsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		SiteID:    site.ID,
		Site:      site,
		Status:    model.RunStatusQueued,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run progress %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, site_id, site, options, status, progress, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, site_id, site, options, status, progress, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.SiteID != "" {
		query += ` AND site_id = ` + arg(filter.SiteID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for run %s", runID)
	}
	return &model.RunPhase{ID: id, RunID: runID, Name: name, Status: model.PhaseStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("phase not found: %s", phaseID)
	}
	return nil
}

func (s *PostgresStore) PutPage(ctx context.Context, page *model.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal page")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pages (id, run_id, url, data) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		page.ID, page.RunID, page.URL, data,
	)
	return eris.Wrap(err, "postgres: insert page")
}

func (s *PostgresStore) ListPages(ctx context.Context, runID string) ([]model.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM pages WHERE run_id = $1 ORDER BY url`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()
	return scanPgJSONRows[model.Page](rows, "postgres: scan page")
}

// PutChunks bulk-inserts via COPY; chunk batches run to the thousands.
func (s *PostgresStore) PutChunks(ctx context.Context, runID string, chunks []model.Chunk) error {
	rows := make([][]any, 0, len(chunks))
	for i := range chunks {
		data, err := json.Marshal(&chunks[i])
		if err != nil {
			return eris.Wrap(err, "postgres: marshal chunk")
		}
		rows = append(rows, []any{chunks[i].ID, runID, data})
	}
	_, err := db.CopyFrom(ctx, s.pool, "chunks", []string{"id", "run_id", "data"}, rows)
	return err
}

func (s *PostgresStore) PutEmbeddings(ctx context.Context, embeddings []model.Embedding) error {
	rows := make([][]any, 0, len(embeddings))
	for i := range embeddings {
		vec, err := json.Marshal(embeddings[i].Vector)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal vector")
		}
		rows = append(rows, []any{embeddings[i].ChunkID, embeddings[i].ModelID, vec})
	}
	_, err := db.CopyFrom(ctx, s.pool, "embeddings", []string{"chunk_id", "model_id", "vector"}, rows)
	return err
}

func (s *PostgresStore) PutSimResult(ctx context.Context, result *model.SimResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sim result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sim_results (run_id, question_id, data) VALUES ($1, $2, $3) ON CONFLICT (run_id, question_id) DO UPDATE SET data = EXCLUDED.data`,
		result.RunID, result.QuestionID, data,
	)
	return eris.Wrap(err, "postgres: insert sim result")
}

func (s *PostgresStore) ListSimResults(ctx context.Context, runID string) ([]model.SimResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM sim_results WHERE run_id = $1 ORDER BY question_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sim results")
	}
	defer rows.Close()
	return scanPgJSONRows[model.SimResult](rows, "postgres: scan sim result")
}

func (s *PostgresStore) PutPillarScore(ctx context.Context, score *model.PillarScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pillar score")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pillar_scores (run_id, pillar, data) VALUES ($1, $2, $3) ON CONFLICT (run_id, pillar) DO UPDATE SET data = EXCLUDED.data`,
		score.RunID, string(score.Pillar), data,
	)
	return eris.Wrap(err, "postgres: insert pillar score")
}

func (s *PostgresStore) PutReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (run_id, data) VALUES ($1, $2) ON CONFLICT (run_id) DO UPDATE SET data = EXCLUDED.data`,
		report.RunID, data,
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM reports WHERE run_id = $1`, runID)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get report")
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &report, nil
}

func (s *PostgresStore) GetCachedCrawl(ctx context.Context, domain string) ([]model.Page, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT pages FROM crawl_cache WHERE domain = $1 AND expires_at > now() ORDER BY crawled_at DESC LIMIT 1`,
		domain,
	)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached crawl")
	}
	var pages []model.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached pages")
	}
	return pages, nil
}

func (s *PostgresStore) SetCachedCrawl(ctx context.Context, domain string, pages []model.Page, ttl time.Duration) error {
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached pages")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO crawl_cache (id, domain, pages, crawled_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), domain, pagesJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached crawl")
}

func (s *PostgresStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crawl_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired crawls")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetActiveCalibrationConfig(ctx context.Context) (*model.CalibrationConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM calibration_configs WHERE status = $1 ORDER BY created_at DESC LIMIT 1`,
		string(model.ConfigActive),
	)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			cfg := model.DefaultCalibrationConfig()
			return &cfg, nil
		}
		return nil, eris.Wrap(err, "postgres: get active config")
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal config")
	}
	return &cfg, nil
}

func (s *PostgresStore) GetCalibrationConfig(ctx context.Context, configID string) (*model.CalibrationConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM calibration_configs WHERE id = $1`, configID,
	)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, eris.Wrapf(err, "postgres: get config %s", configID)
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal config")
	}
	return &cfg, nil
}

func (s *PostgresStore) PutCalibrationConfig(ctx context.Context, cfg *model.CalibrationConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal config")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO calibration_configs (id, name, status, data, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, data = EXCLUDED.data`,
		cfg.ID, cfg.Name, string(cfg.Status), data, cfg.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert config")
}

func (s *PostgresStore) ActivateCalibrationConfig(ctx context.Context, configID string) error {
	row := s.pool.QueryRow(ctx, `SELECT data FROM calibration_configs WHERE id = $1`, configID)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return eris.Wrapf(err, "postgres: config %s", configID)
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return eris.Wrap(err, "postgres: unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return eris.Wrapf(err, "postgres: config %s failed validation", configID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin activate tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE calibration_configs SET status = $1 WHERE status = $2`,
		string(model.ConfigArchived), string(model.ConfigActive)); err != nil {
		return eris.Wrap(err, "postgres: archive active config")
	}
	cfg.Status = model.ConfigActive
	updated, err := json.Marshal(&cfg)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal config")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE calibration_configs SET status = $1, data = $2 WHERE id = $3`,
		string(model.ConfigActive), updated, configID); err != nil {
		return eris.Wrap(err, "postgres: activate config")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit activate")
}

func (s *PostgresStore) PutCalibrationSamples(ctx context.Context, samples []model.CalibrationSample) error {
	for i := range samples {
		if samples[i].CreatedAt.IsZero() {
			samples[i].CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(&samples[i])
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sample")
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO calibration_samples (run_id, question_id, data, created_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (run_id, question_id) DO UPDATE SET data = EXCLUDED.data`,
			samples[i].RunID, samples[i].QuestionID, data, samples[i].CreatedAt); err != nil {
			return eris.Wrap(err, "postgres: insert sample")
		}
	}
	return nil
}

func (s *PostgresStore) ListCalibrationSamples(ctx context.Context, since time.Time) ([]model.CalibrationSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM calibration_samples WHERE created_at >= $1 ORDER BY created_at`, since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list samples")
	}
	defer rows.Close()
	return scanPgJSONRows[model.CalibrationSample](rows, "postgres: scan sample")
}

func (s *PostgresStore) PutExperiment(ctx context.Context, exp *model.Experiment) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(exp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal experiment")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO experiments (id, status, data, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data`,
		exp.ID, string(exp.Status), data, exp.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert experiment")
}

func (s *PostgresStore) GetRunningExperiment(ctx context.Context) (*model.Experiment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM experiments WHERE status = $1 ORDER BY created_at DESC LIMIT 1`,
		string(model.ExperimentRunning),
	)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get running experiment")
	}
	var exp model.Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal experiment")
	}
	return &exp, nil
}

func (s *PostgresStore) ConcludeExperiment(ctx context.Context, expID string, readout calibration.Readout) error {
	row := s.pool.QueryRow(ctx, `SELECT data FROM experiments WHERE id = $1`, expID)
	var data []byte
	if err := row.Scan(&data); err != nil {
		return eris.Wrapf(err, "postgres: experiment %s", expID)
	}
	var exp model.Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return eris.Wrap(err, "postgres: unmarshal experiment")
	}
	exp.Status = model.ExperimentConcluded
	exp.Winner = readout.Winner
	exp.ControlCount = readout.ControlSamples
	exp.TreatmentCount = readout.TreatmentSamples

	updated, err := json.Marshal(&exp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal experiment")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE experiments SET status = $1, data = $2 WHERE id = $3`,
		string(exp.Status), updated, expID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: conclude experiment %s", expID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("experiment not found: %s", expID)
	}
	return nil
}

// helpers

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgRun(row pgScannable) (*model.Run, error) {
	var r model.Run
	var siteJSON, optsJSON []byte
	var progressJSON []byte

	err := row.Scan(&r.ID, &r.SiteID, &siteJSON, &optsJSON, &r.Status, &progressJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(siteJSON, &r.Site); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal site")
	}
	if err := json.Unmarshal(optsJSON, &r.Options); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal options")
	}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &r.Progress); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal progress")
		}
	}
	return &r, nil
}

func scanPgJSONRows[T any](rows pgx.Rows, wrapMsg string) ([]T, error) {
	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, wrapMsg)
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, eris.Wrap(err, wrapMsg)
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
