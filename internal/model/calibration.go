package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ConfigStatus is the lifecycle state of a calibration config.
type ConfigStatus string

const (
	ConfigDraft     ConfigStatus = "draft"
	ConfigValidated ConfigStatus = "validated"
	ConfigActive    ConfigStatus = "active"
	ConfigArchived  ConfigStatus = "archived"
)

// Thresholds holds the answerability cutoffs applied during simulation.
type Thresholds struct {
	FullyAnswerable     float64 `json:"fully_answerable"`
	PartiallyAnswerable float64 `json:"partially_answerable"`
	SignalMatch         float64 `json:"signal_match"`
}

// CalibrationConfig is a versioned bundle of pillar weights and
// answerability thresholds. Exactly one config is active at a time;
// runs snapshot the active config at start so a mid-flight change never
// alters an in-flight run.
type CalibrationConfig struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Status     ConfigStatus       `json:"status"`
	Weights    map[Pillar]float64 `json:"weights"`
	Thresholds Thresholds         `json:"thresholds"`
	CreatedAt  time.Time          `json:"created_at"`
}

// DefaultCalibrationConfig returns the shipped weights and thresholds.
// Weights sum to 100.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		ID:     "default",
		Name:   "default",
		Status: ConfigActive,
		Weights: map[Pillar]float64{
			PillarTechnical: 20,
			PillarStructure: 20,
			PillarSchema:    15,
			PillarAuthority: 10,
			PillarRetrieval: 25,
			PillarCoverage:  10,
		},
		Thresholds: Thresholds{
			FullyAnswerable:     0.5,
			PartiallyAnswerable: 0.15,
			SignalMatch:         0.6,
		},
	}
}

// Validate checks the weight and threshold invariants. A config failing
// validation can never be activated.
func (c *CalibrationConfig) Validate() error {
	sum := 0.0
	for p, w := range c.Weights {
		if w < 0 || w > 100 {
			return eris.Errorf("calibration: weight for %s out of [0,100]: %.2f", p, w)
		}
		sum += w
	}
	if sum < 99.99 || sum > 100.01 {
		return eris.Errorf("calibration: weights sum to %.2f, want 100", sum)
	}
	t := c.Thresholds
	if t.FullyAnswerable <= t.PartiallyAnswerable {
		return eris.Errorf("calibration: fully threshold %.2f must exceed partially threshold %.2f",
			t.FullyAnswerable, t.PartiallyAnswerable)
	}
	if t.FullyAnswerable <= 0 || t.FullyAnswerable > 1 || t.PartiallyAnswerable <= 0 {
		return eris.New("calibration: thresholds out of range")
	}
	return nil
}

// ObservedOutcome is the ground truth from querying an AI system.
type ObservedOutcome string

const (
	OutcomeCited     ObservedOutcome = "cited"
	OutcomeMentioned ObservedOutcome = "mentioned"
	OutcomeOmitted   ObservedOutcome = "omitted"
)

// Verdict classifies a prediction against its observation.
type Verdict string

const (
	VerdictCorrect     Verdict = "correct"
	VerdictOptimistic  Verdict = "optimistic"
	VerdictPessimistic Verdict = "pessimistic"
)

// CalibrationSample pairs one question's simulated prediction with the
// observed outcome for the same run.
type CalibrationSample struct {
	RunID         string             `json:"run_id"`
	QuestionID    string             `json:"question_id"`
	Category      QuestionCategory   `json:"category"`
	Predicted     Answerability      `json:"predicted"`
	SimScore      float64            `json:"sim_score"`
	Observed      ObservedOutcome    `json:"observed"`
	Verdict       Verdict            `json:"verdict"`
	PillarScores  map[Pillar]float64 `json:"pillar_scores,omitempty"`
	ExperimentArm string             `json:"experiment_arm,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Judge compares a prediction with an observation. A fully-answerable
// prediction expects a citation or mention; unanswered expects omission.
func Judge(predicted Answerability, observed ObservedOutcome) Verdict {
	answered := observed == OutcomeCited || observed == OutcomeMentioned
	switch predicted {
	case FullyAnswerable:
		if answered {
			return VerdictCorrect
		}
		return VerdictOptimistic
	case Unanswered:
		if !answered {
			return VerdictCorrect
		}
		return VerdictPessimistic
	default: // partially answerable matches a mention but not a citation
		if observed == OutcomeMentioned {
			return VerdictCorrect
		}
		if observed == OutcomeCited {
			return VerdictPessimistic
		}
		return VerdictOptimistic
	}
}

// ExperimentStatus is the lifecycle state of an A/B experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentConcluded ExperimentStatus = "concluded"
)

// Experiment is a live A/B test between two calibration configs.
type Experiment struct {
	ID                string           `json:"id"`
	ControlConfigID   string           `json:"control_config_id"`
	TreatmentConfigID string           `json:"treatment_config_id"`
	Status            ExperimentStatus `json:"status"`
	AssignmentSeed    string           `json:"assignment_seed"`
	ControlCount      int              `json:"control_count"`
	TreatmentCount    int              `json:"treatment_count"`
	Winner            string           `json:"winner,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
