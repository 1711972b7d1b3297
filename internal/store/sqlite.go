package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	site_id    TEXT NOT NULL,
	site       TEXT NOT NULL,
	options    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	progress   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pages (
	id     TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	url    TEXT NOT NULL,
	data   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id     TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	data   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	vector   BLOB NOT NULL,
	PRIMARY KEY (chunk_id, model_id)
);

CREATE TABLE IF NOT EXISTS sim_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	question_id TEXT NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (run_id, question_id)
);

CREATE TABLE IF NOT EXISTS pillar_scores (
	run_id TEXT NOT NULL REFERENCES runs(id),
	pillar TEXT NOT NULL,
	data   TEXT NOT NULL,
	PRIMARY KEY (run_id, pillar)
);

CREATE TABLE IF NOT EXISTS reports (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	pages      TEXT NOT NULL,
	crawled_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_configs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS calibration_samples (
	run_id      TEXT NOT NULL,
	question_id TEXT NOT NULL,
	data        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, question_id)
);

CREATE TABLE IF NOT EXISTS experiments (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) BeginRun(ctx context.Context, site model.Site, opts model.RunOptions) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	opts.ApplyDefaults()

	siteJSON, err := json.Marshal(site)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal site")
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal options")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, site_id, site, options, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, site.ID, string(siteJSON), string(optsJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site_id, site, options, status, progress, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, site_id, site, options, status, progress, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, filter.SiteID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) PutPage(ctx context.Context, page *model.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal page")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pages (id, run_id, url, data) VALUES (?, ?, ?, ?)`,
		page.ID, page.RunID, page.URL, string(data),
	)
	return eris.Wrap(err, "sqlite: insert page")
}

func (s *SQLiteStore) ListPages(ctx context.Context, runID string) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM pages WHERE run_id = ? ORDER BY url`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close()
	return scanJSONRows[model.Page](rows, "sqlite: scan page")
}

func (s *SQLiteStore) PutChunks(ctx context.Context, runID string, chunks []model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin chunks tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, run_id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare chunk insert")
	}
	defer stmt.Close()

	for i := range chunks {
		data, err := json.Marshal(&chunks[i])
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal chunk")
		}
		if _, err := stmt.ExecContext(ctx, chunks[i].ID, runID, string(data)); err != nil {
			return eris.Wrap(err, "sqlite: insert chunk")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit chunks")
}

func (s *SQLiteStore) PutEmbeddings(ctx context.Context, embeddings []model.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin embeddings tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO embeddings (chunk_id, model_id, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare embedding insert")
	}
	defer stmt.Close()

	for i := range embeddings {
		vec, err := json.Marshal(embeddings[i].Vector)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal vector")
		}
		if _, err := stmt.ExecContext(ctx, embeddings[i].ChunkID, embeddings[i].ModelID, vec); err != nil {
			return eris.Wrap(err, "sqlite: insert embedding")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit embeddings")
}

func (s *SQLiteStore) PutSimResult(ctx context.Context, result *model.SimResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sim result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sim_results (run_id, question_id, data) VALUES (?, ?, ?)`,
		result.RunID, result.QuestionID, string(data),
	)
	return eris.Wrap(err, "sqlite: insert sim result")
}

func (s *SQLiteStore) ListSimResults(ctx context.Context, runID string) ([]model.SimResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM sim_results WHERE run_id = ? ORDER BY question_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sim results")
	}
	defer rows.Close()
	return scanJSONRows[model.SimResult](rows, "sqlite: scan sim result")
}

func (s *SQLiteStore) PutPillarScore(ctx context.Context, score *model.PillarScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pillar score")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pillar_scores (run_id, pillar, data) VALUES (?, ?, ?)`,
		score.RunID, string(score.Pillar), string(data),
	)
	return eris.Wrap(err, "sqlite: insert pillar score")
}

func (s *SQLiteStore) PutReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (run_id, data) VALUES (?, ?)`,
		report.RunID, string(data),
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM reports WHERE run_id = ?`, runID)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get report")
	}
	var report model.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &report, nil
}

func (s *SQLiteStore) GetCachedCrawl(ctx context.Context, domain string) ([]model.Page, error) {
	// The bound parameter keeps both sides of the comparison in the
	// driver's own timestamp serialization.
	row := s.db.QueryRowContext(ctx,
		`SELECT pages FROM crawl_cache
		 WHERE domain = ? AND expires_at > ?
		 ORDER BY crawled_at DESC LIMIT 1`,
		domain, time.Now().UTC(),
	)
	var pagesJSON string
	if err := row.Scan(&pagesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get cached crawl")
	}
	var pages []model.Page
	if err := json.Unmarshal([]byte(pagesJSON), &pages); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached pages")
	}
	return pages, nil
}

func (s *SQLiteStore) SetCachedCrawl(ctx context.Context, domain string, pages []model.Page, ttl time.Duration) error {
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached pages")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_cache (id, domain, pages, crawled_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), domain, string(pagesJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached crawl")
}

func (s *SQLiteStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM crawl_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired crawls")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetActiveCalibrationConfig(ctx context.Context) (*model.CalibrationConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM calibration_configs WHERE status = ? ORDER BY created_at DESC LIMIT 1`,
		string(model.ConfigActive),
	)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			cfg := model.DefaultCalibrationConfig()
			return &cfg, nil
		}
		return nil, eris.Wrap(err, "sqlite: get active config")
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal config")
	}
	return &cfg, nil
}

func (s *SQLiteStore) GetCalibrationConfig(ctx context.Context, configID string) (*model.CalibrationConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM calibration_configs WHERE id = ?`, configID,
	)
	var data string
	if err := row.Scan(&data); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get config %s", configID)
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal config")
	}
	return &cfg, nil
}

func (s *SQLiteStore) PutCalibrationConfig(ctx context.Context, cfg *model.CalibrationConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal config")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO calibration_configs (id, name, status, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, string(cfg.Status), string(data), cfg.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert config")
}

// ActivateCalibrationConfig validates the target config, archives the
// currently active one, and activates the target in one transaction.
func (s *SQLiteStore) ActivateCalibrationConfig(ctx context.Context, configID string) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM calibration_configs WHERE id = ?`, configID)
	var data string
	if err := row.Scan(&data); err != nil {
		return eris.Wrapf(err, "sqlite: config %s", configID)
	}
	var cfg model.CalibrationConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return eris.Wrapf(err, "sqlite: config %s failed validation", configID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin activate tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE calibration_configs SET status = ? WHERE status = ?`,
		string(model.ConfigArchived), string(model.ConfigActive)); err != nil {
		return eris.Wrap(err, "sqlite: archive active config")
	}
	cfg.Status = model.ConfigActive
	updated, err := json.Marshal(&cfg)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal config")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE calibration_configs SET status = ?, data = ? WHERE id = ?`,
		string(model.ConfigActive), string(updated), configID); err != nil {
		return eris.Wrap(err, "sqlite: activate config")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit activate")
}

func (s *SQLiteStore) PutCalibrationSamples(ctx context.Context, samples []model.CalibrationSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin samples tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO calibration_samples (run_id, question_id, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare sample insert")
	}
	defer stmt.Close()

	for i := range samples {
		if samples[i].CreatedAt.IsZero() {
			samples[i].CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(&samples[i])
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sample")
		}
		if _, err := stmt.ExecContext(ctx,
			samples[i].RunID, samples[i].QuestionID, string(data), samples[i].CreatedAt); err != nil {
			return eris.Wrap(err, "sqlite: insert sample")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit samples")
}

func (s *SQLiteStore) ListCalibrationSamples(ctx context.Context, since time.Time) ([]model.CalibrationSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM calibration_samples WHERE created_at >= ? ORDER BY created_at`, since)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list samples")
	}
	defer rows.Close()
	return scanJSONRows[model.CalibrationSample](rows, "sqlite: scan sample")
}

func (s *SQLiteStore) PutExperiment(ctx context.Context, exp *model.Experiment) error {
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(exp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal experiment")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO experiments (id, status, data, created_at) VALUES (?, ?, ?, ?)`,
		exp.ID, string(exp.Status), string(data), exp.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert experiment")
}

func (s *SQLiteStore) GetRunningExperiment(ctx context.Context) (*model.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM experiments WHERE status = ? ORDER BY created_at DESC LIMIT 1`,
		string(model.ExperimentRunning),
	)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get running experiment")
	}
	var exp model.Experiment
	if err := json.Unmarshal([]byte(data), &exp); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal experiment")
	}
	return &exp, nil
}

func (s *SQLiteStore) ConcludeExperiment(ctx context.Context, expID string, readout calibration.Readout) error {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM experiments WHERE id = ?`, expID)
	var data string
	if err := row.Scan(&data); err != nil {
		return eris.Wrapf(err, "sqlite: experiment %s", expID)
	}
	var exp model.Experiment
	if err := json.Unmarshal([]byte(data), &exp); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal experiment")
	}
	exp.Status = model.ExperimentConcluded
	exp.Winner = readout.Winner
	exp.ControlCount = readout.ControlSamples
	exp.TreatmentCount = readout.TreatmentSamples

	updated, err := json.Marshal(&exp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal experiment")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET status = ?, data = ? WHERE id = ?`,
		string(exp.Status), string(updated), expID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: conclude experiment %s", expID)
	}
	return checkRowsAffected(res, "experiment", expID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var siteJSON, optsJSON string
	var progressJSON sql.NullString

	err := row.Scan(&r.ID, &r.SiteID, &siteJSON, &optsJSON, &r.Status, &progressJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(siteJSON), &r.Site); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal site")
	}
	if err := json.Unmarshal([]byte(optsJSON), &r.Options); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal options")
	}
	if progressJSON.Valid && progressJSON.String != "" {
		if err := json.Unmarshal([]byte(progressJSON.String), &r.Progress); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal progress")
		}
	}
	return &r, nil
}

func scanJSONRows[T any](rows *sql.Rows, wrapMsg string) ([]T, error) {
	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, wrapMsg)
		}
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, eris.Wrap(err, wrapMsg)
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
