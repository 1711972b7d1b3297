package model

import "time"

// RunStatus represents the lifecycle state of an audit run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartial, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

// Site describes the audited website. The core treats it as read-only;
// it is created and owned by the caller.
type Site struct {
	ID            string   `json:"id"`
	Domain        string   `json:"domain"`
	BusinessModel string   `json:"business_model,omitempty"`
	Competitors   []string `json:"competitors,omitempty"`
	MaxPagesCap   int      `json:"max_pages_cap,omitempty"`
}

// Progress tracks how far a run has advanced through the pipeline.
type Progress struct {
	Step               string `json:"step"`
	PagesCrawled       int    `json:"pages_crawled"`
	PagesFailed        int    `json:"pages_failed"`
	PagesBlocked       int    `json:"pages_blocked"`
	ChunksIndexed      int    `json:"chunks_indexed"`
	QuestionsSimulated int    `json:"questions_simulated"`
	TotalQuestions     int    `json:"total_questions"`
}

// Run is a single audit job over a site.
type Run struct {
	ID          string     `json:"id"`
	SiteID      string     `json:"site_id"`
	Site        Site       `json:"site"`
	Status      RunStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Options     RunOptions `json:"options"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunOptions are the inputs the core recognizes at run start.
type RunOptions struct {
	MaxPages              int     `json:"max_pages"`
	MaxDepth              int     `json:"max_depth"`
	Concurrency           int     `json:"concurrency"`
	QuestionBudgetTokens  int     `json:"question_budget_tokens"`
	IncludeObservation    bool    `json:"include_observation"`
	ObservationCostCapUSD float64 `json:"observation_cost_cap_usd"`
	CalibrationConfigID   string  `json:"calibration_config_id,omitempty"`
	ExperimentArmOverride string  `json:"experiment_arm_override,omitempty"`
}

// ApplyDefaults fills unset options with their shipped defaults.
func (o *RunOptions) ApplyDefaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 250
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.QuestionBudgetTokens <= 0 {
		o.QuestionBudgetTokens = 6000
	}
}

// PhaseStatus represents a pipeline phase outcome.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// RunPhase is a persisted record of a single pipeline phase.
type RunPhase struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Status    PhaseStatus `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// PhaseResult holds the outcome metadata for a completed phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
