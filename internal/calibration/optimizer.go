package calibration

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
)

// ErrNoImprovement means the grid search found nothing that beats the
// baseline on the holdout split. The caller keeps the current config; a
// regression is never activated.
var ErrNoImprovement = eris.New("calibration: no improvement over baseline")

// OptimizerOptions bound the search.
type OptimizerOptions struct {
	MinSamples      int     // below this, refuse to optimize
	HoldoutFraction float64 // samples reserved for validation
	ImprovementFloor float64 // minimum holdout accuracy gain to accept
}

// DefaultOptimizerOptions returns the shipped bounds.
func DefaultOptimizerOptions() OptimizerOptions {
	return OptimizerOptions{MinSamples: 100, HoldoutFraction: 0.3, ImprovementFloor: 0.01}
}

const (
	weightMin        = 5
	weightMax        = 35
	coarseWeightStep = 10
	fineWeightStep   = 5
	thresholdMin     = 0.1
	thresholdMax     = 0.7
	thresholdStep    = 0.05
)

// optimizedPillars is the weight search space. Entity recognition keeps
// its configured weight; the search redistributes the core six.
var optimizedPillars = []model.Pillar{
	model.PillarTechnical,
	model.PillarStructure,
	model.PillarSchema,
	model.PillarAuthority,
	model.PillarRetrieval,
	model.PillarCoverage,
}

// Optimize grid-searches pillar weights and answerability thresholds
// against stored samples. The returned config is a draft: activation is
// gated behind a live A/B experiment because a holdout winner can still
// underperform on fresh traffic.
func Optimize(samples []model.CalibrationSample, baseline model.CalibrationConfig, opts OptimizerOptions) (*model.CalibrationConfig, error) {
	if opts.MinSamples <= 0 {
		opts = DefaultOptimizerOptions()
	}
	if len(samples) < opts.MinSamples {
		return nil, eris.Errorf("calibration: %d samples, need at least %d", len(samples), opts.MinSamples)
	}

	train, holdout := split(samples, opts.HoldoutFraction)
	baselineAcc := replayAccuracy(holdout, baseline.Thresholds)

	bestThresholds, bestTrainAcc := searchThresholds(train, baseline.Thresholds)
	bestWeights := searchWeights(train, baseline.Weights)

	candidate := model.CalibrationConfig{
		Name:       "optimized",
		Status:     model.ConfigDraft,
		Weights:    bestWeights,
		Thresholds: bestThresholds,
	}
	if err := candidate.Validate(); err != nil {
		return nil, eris.Wrap(err, "calibration: optimizer produced invalid config")
	}

	holdoutAcc := replayAccuracy(holdout, bestThresholds)
	zap.L().Info("calibration: optimizer finished",
		zap.Float64("baseline_holdout_accuracy", baselineAcc),
		zap.Float64("candidate_holdout_accuracy", holdoutAcc),
		zap.Float64("train_accuracy", bestTrainAcc),
		zap.Int("train_samples", len(train)),
		zap.Int("holdout_samples", len(holdout)),
	)
	if holdoutAcc < baselineAcc+opts.ImprovementFloor {
		return nil, ErrNoImprovement
	}
	return &candidate, nil
}

// split partitions samples deterministically: samples are ordered by
// (run_id, question_id) and every k-th goes to holdout, so repeated
// optimizer runs see the same split.
func split(samples []model.CalibrationSample, holdoutFraction float64) (train, holdout []model.CalibrationSample) {
	if holdoutFraction <= 0 || holdoutFraction >= 1 {
		holdoutFraction = 0.3
	}
	sorted := append([]model.CalibrationSample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RunID != sorted[j].RunID {
			return sorted[i].RunID < sorted[j].RunID
		}
		return sorted[i].QuestionID < sorted[j].QuestionID
	})
	stride := int(1 / holdoutFraction)
	if stride < 2 {
		stride = 2
	}
	for i, s := range sorted {
		if i%stride == 0 {
			holdout = append(holdout, s)
		} else {
			train = append(train, s)
		}
	}
	return train, holdout
}

// replayAccuracy re-classifies each sample's sim score under the given
// thresholds and re-judges it against the stored observation.
func replayAccuracy(samples []model.CalibrationSample, t model.Thresholds) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		predicted := classify(s.SimScore, t)
		if model.Judge(predicted, s.Observed) == model.VerdictCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}

func classify(score float64, t model.Thresholds) model.Answerability {
	switch {
	case score >= t.FullyAnswerable:
		return model.FullyAnswerable
	case score >= t.PartiallyAnswerable:
		return model.PartiallyAnswerable
	default:
		return model.Unanswered
	}
}

// searchThresholds sweeps both answerability cutoffs on [0.1, 0.7].
func searchThresholds(train []model.CalibrationSample, current model.Thresholds) (model.Thresholds, float64) {
	best := current
	bestAcc := replayAccuracy(train, current)
	for fully := thresholdMin; fully <= thresholdMax+1e-9; fully += thresholdStep {
		for partially := thresholdMin; partially < fully; partially += thresholdStep {
			t := model.Thresholds{
				FullyAnswerable:     fully,
				PartiallyAnswerable: partially,
				SignalMatch:         current.SignalMatch,
			}
			if acc := replayAccuracy(train, t); acc > bestAcc {
				best, bestAcc = t, acc
			}
		}
	}
	return best, bestAcc
}

// searchWeights enumerates weight tuples on a coarse step, falling back
// to the fine step when the coarse grid yields no valid candidate. The
// objective correlates each tuple's weighted pillar snapshot with
// prediction correctness, favoring tuples that put weight where correct
// predictions concentrate.
func searchWeights(train []model.CalibrationSample, current map[model.Pillar]float64) map[model.Pillar]float64 {
	candidates := enumerateWeights(coarseWeightStep)
	if len(candidates) == 0 {
		candidates = enumerateWeights(fineWeightStep)
	}
	if len(candidates) == 0 {
		return current
	}

	best := current
	bestScore := weightObjective(train, current)
	for _, cand := range candidates {
		if s := weightObjective(train, cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best
}

// enumerateWeights yields every tuple with each weight in [5,35] on the
// given step and the six weights summing to 100.
func enumerateWeights(step int) []map[model.Pillar]float64 {
	var out []map[model.Pillar]float64
	n := len(optimizedPillars)
	weights := make([]int, n)

	var recurse func(idx, remaining int)
	recurse = func(idx, remaining int) {
		if idx == n-1 {
			if remaining >= weightMin && remaining <= weightMax {
				weights[idx] = remaining
				m := make(map[model.Pillar]float64, n)
				for i, p := range optimizedPillars {
					m[p] = float64(weights[i])
				}
				out = append(out, m)
			}
			return
		}
		for w := weightMin; w <= weightMax; w += step {
			if w > remaining {
				break
			}
			weights[idx] = w
			recurse(idx+1, remaining-w)
		}
	}
	recurse(0, 100)
	return out
}

// weightObjective scores a weight tuple: mean weighted pillar score of
// correct samples minus that of incorrect ones. A separating tuple puts
// weight on pillars that track real-world findability.
func weightObjective(train []model.CalibrationSample, weights map[model.Pillar]float64) float64 {
	var correctSum, incorrectSum float64
	var correctN, incorrectN int
	for _, s := range train {
		if len(s.PillarScores) == 0 {
			continue
		}
		var weighted float64
		for p, w := range weights {
			weighted += s.PillarScores[p] * w / 100
		}
		if s.Verdict == model.VerdictCorrect {
			correctSum += weighted
			correctN++
		} else {
			incorrectSum += weighted
			incorrectN++
		}
	}
	if correctN == 0 || incorrectN == 0 {
		return 0
	}
	return correctSum/float64(correctN) - incorrectSum/float64(incorrectN)
}
