package calibration

import (
	"hash/fnv"
	"math"

	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
)

// Arm labels for experiment assignment.
const (
	ArmControl   = "control"
	ArmTreatment = "treatment"
)

// Assign deterministically routes a site to an experiment arm:
// FNV(site_id || seed) mod 2. The same site always lands in the same arm
// for the lifetime of the experiment.
func Assign(siteID, seed string) string {
	h := fnv.New32a()
	h.Write([]byte(siteID)) //nolint:errcheck
	h.Write([]byte(seed))   //nolint:errcheck
	if h.Sum32()%2 == 0 {
		return ArmControl
	}
	return ArmTreatment
}

// ExperimentOptions gate the readout.
type ExperimentOptions struct {
	MinSamplesPerArm int
	ImprovementFloor float64 // minimum treatment-over-control accuracy gain
}

// DefaultExperimentOptions returns the shipped gates.
func DefaultExperimentOptions() ExperimentOptions {
	return ExperimentOptions{MinSamplesPerArm: 50, ImprovementFloor: 0.01}
}

// Readout is the evaluated state of an experiment.
type Readout struct {
	ControlSamples    int     `json:"control_samples"`
	TreatmentSamples  int     `json:"treatment_samples"`
	ControlAccuracy   float64 `json:"control_accuracy"`
	TreatmentAccuracy float64 `json:"treatment_accuracy"`
	PValue            float64 `json:"p_value"`
	Winner            string  `json:"winner,omitempty"` // empty until significance
	Demote            bool    `json:"demote"`           // treatment significantly worse
}

// Evaluate reads out an experiment from its tagged samples. The winner is
// declared only when both arms have enough samples, p < 0.05, and the
// improvement clears the floor. A significantly worse treatment sets
// Demote, which the caller must act on automatically.
func Evaluate(samples []model.CalibrationSample, opts ExperimentOptions) Readout {
	if opts.MinSamplesPerArm <= 0 {
		opts = DefaultExperimentOptions()
	}

	var r Readout
	var controlCorrect, treatmentCorrect int
	for _, s := range samples {
		correct := s.Verdict == model.VerdictCorrect
		switch s.ExperimentArm {
		case ArmControl:
			r.ControlSamples++
			if correct {
				controlCorrect++
			}
		case ArmTreatment:
			r.TreatmentSamples++
			if correct {
				treatmentCorrect++
			}
		}
	}
	if r.ControlSamples > 0 {
		r.ControlAccuracy = float64(controlCorrect) / float64(r.ControlSamples)
	}
	if r.TreatmentSamples > 0 {
		r.TreatmentAccuracy = float64(treatmentCorrect) / float64(r.TreatmentSamples)
	}
	if r.ControlSamples < opts.MinSamplesPerArm || r.TreatmentSamples < opts.MinSamplesPerArm {
		r.PValue = 1
		return r
	}

	r.PValue = chiSquaredPValue(
		controlCorrect, r.ControlSamples-controlCorrect,
		treatmentCorrect, r.TreatmentSamples-treatmentCorrect,
	)

	if r.PValue < 0.05 {
		diff := r.TreatmentAccuracy - r.ControlAccuracy
		switch {
		case diff >= opts.ImprovementFloor:
			r.Winner = ArmTreatment
		case diff < 0:
			r.Winner = ArmControl
			r.Demote = true
		}
	}

	zap.L().Info("calibration: experiment readout",
		zap.Float64("control_accuracy", r.ControlAccuracy),
		zap.Float64("treatment_accuracy", r.TreatmentAccuracy),
		zap.Float64("p_value", r.PValue),
		zap.String("winner", r.Winner),
		zap.Bool("demote", r.Demote),
	)
	return r
}

// chiSquaredPValue computes the p-value for a 2x2 contingency table with
// one degree of freedom, via the normal-tail approximation of the
// chi-squared survival function.
func chiSquaredPValue(aCorrect, aWrong, bCorrect, bWrong int) float64 {
	a, b := float64(aCorrect), float64(aWrong)
	c, d := float64(bCorrect), float64(bWrong)
	n := a + b + c + d
	if n == 0 {
		return 1
	}
	denom := (a + b) * (c + d) * (a + c) * (b + d)
	if denom == 0 {
		return 1
	}
	chi2 := n * math.Pow(a*d-b*c, 2) / denom
	// For df=1, chi2 is the square of a standard normal: p = 2*(1-Phi(sqrt(chi2))).
	z := math.Sqrt(chi2)
	p := 2 * (1 - normalCDF(z))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
