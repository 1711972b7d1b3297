// Package calibration closes the loop between simulated predictions and
// observed outcomes: accuracy analysis, grid-search optimization of
// weights and thresholds, and A/B experiments over configs.
package calibration

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
)

// Analysis summarizes prediction quality over a sample set.
type Analysis struct {
	Samples          int                                  `json:"samples"`
	Accuracy         float64                              `json:"accuracy"`
	OptimismBias     float64                              `json:"optimism_bias"`  // fraction optimistic
	PessimismBias    float64                              `json:"pessimism_bias"` // fraction pessimistic
	PerCategory      map[model.QuestionCategory]float64   `json:"per_category"`
	PillarCorrelation map[model.Pillar]float64            `json:"pillar_correlation,omitempty"`
	GeneratedAt      time.Time                            `json:"generated_at"`
}

// DriftAlert is raised when prediction quality degrades versus baseline.
type DriftAlert struct {
	Reason           string  `json:"reason"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	CurrentAccuracy  float64 `json:"current_accuracy"`
	Bias             float64 `json:"bias"`
}

const (
	driftAccuracyDrop = 0.10
	driftBiasLimit    = 0.20
)

// Analyze computes aggregate and per-category accuracy plus directional
// bias over the samples.
func Analyze(samples []model.CalibrationSample) Analysis {
	a := Analysis{
		Samples:     len(samples),
		PerCategory: make(map[model.QuestionCategory]float64),
		GeneratedAt: time.Now().UTC(),
	}
	if len(samples) == 0 {
		return a
	}

	var correct, optimistic, pessimistic int
	catCorrect := make(map[model.QuestionCategory]int)
	catTotal := make(map[model.QuestionCategory]int)

	for _, s := range samples {
		catTotal[s.Category]++
		switch s.Verdict {
		case model.VerdictCorrect:
			correct++
			catCorrect[s.Category]++
		case model.VerdictOptimistic:
			optimistic++
		case model.VerdictPessimistic:
			pessimistic++
		}
	}

	n := float64(len(samples))
	a.Accuracy = float64(correct) / n
	a.OptimismBias = float64(optimistic) / n
	a.PessimismBias = float64(pessimistic) / n
	for cat, total := range catTotal {
		a.PerCategory[cat] = float64(catCorrect[cat]) / float64(total)
	}
	a.PillarCorrelation = pillarCorrelation(samples)
	return a
}

// CheckDrift compares a fresh analysis against the baseline and returns
// an alert when accuracy dropped ≥10% or directional bias exceeds ±20%.
func CheckDrift(baseline, current Analysis) *DriftAlert {
	if baseline.Samples == 0 || current.Samples == 0 {
		return nil
	}
	if baseline.Accuracy-current.Accuracy >= driftAccuracyDrop {
		alert := &DriftAlert{
			Reason:           "accuracy_drop",
			BaselineAccuracy: baseline.Accuracy,
			CurrentAccuracy:  current.Accuracy,
		}
		zap.L().Warn("calibration: drift detected",
			zap.String("reason", alert.Reason),
			zap.Float64("baseline", baseline.Accuracy),
			zap.Float64("current", current.Accuracy),
		)
		return alert
	}
	bias := current.OptimismBias - current.PessimismBias
	if bias >= driftBiasLimit || bias <= -driftBiasLimit {
		alert := &DriftAlert{
			Reason:           "bias",
			BaselineAccuracy: baseline.Accuracy,
			CurrentAccuracy:  current.Accuracy,
			Bias:             bias,
		}
		zap.L().Warn("calibration: drift detected",
			zap.String("reason", alert.Reason),
			zap.Float64("bias", bias),
		)
		return alert
	}
	return nil
}

// pillarCorrelation computes, per pillar, the Pearson correlation between
// the pillar's snapshotted score and prediction correctness. Pillars with
// fewer than two distinct snapshot values are omitted.
func pillarCorrelation(samples []model.CalibrationSample) map[model.Pillar]float64 {
	out := make(map[model.Pillar]float64)
	for _, pillar := range model.AllPillars() {
		var xs, ys []float64
		for _, s := range samples {
			v, ok := s.PillarScores[pillar]
			if !ok {
				continue
			}
			xs = append(xs, v)
			if s.Verdict == model.VerdictCorrect {
				ys = append(ys, 1)
			} else {
				ys = append(ys, 0)
			}
		}
		if r, ok := pearson(xs, ys); ok {
			out[pillar] = r
		}
	}
	return out
}

func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if n < 2 {
		return 0, false
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}
