package calibration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

// separableSamples builds a set where scores above 0.3 were answered and
// scores below were omitted. The default 0.5 threshold misclassifies the
// 0.3-0.5 band, so a sweep has headroom to improve.
func separableSamples(n int) []model.CalibrationSample {
	out := make([]model.CalibrationSample, 0, n)
	for i := 0; i < n; i++ {
		score := float64(i%10) / 10 // 0.0 .. 0.9
		s := model.CalibrationSample{
			RunID:      fmt.Sprintf("run-%03d", i/10),
			QuestionID: fmt.Sprintf("u%02d", i%10),
			SimScore:   score,
			Observed:   model.OutcomeOmitted,
		}
		if score >= 0.3 {
			s.Observed = model.OutcomeCited
		}
		s.Predicted = model.Unanswered
		if score >= 0.5 {
			s.Predicted = model.FullyAnswerable
		}
		s.Verdict = model.Judge(s.Predicted, s.Observed)
		out = append(out, s)
	}
	return out
}

func TestOptimizeRefusesBelowMinSamples(t *testing.T) {
	t.Parallel()

	_, err := Optimize(separableSamples(10), model.DefaultCalibrationConfig(), DefaultOptimizerOptions())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoImprovement)
}

func TestOptimizeFindsBetterThresholds(t *testing.T) {
	t.Parallel()

	cfg, err := Optimize(separableSamples(200), model.DefaultCalibrationConfig(), DefaultOptimizerOptions())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, model.ConfigDraft, cfg.Status, "optimizer output is a draft, never auto-activated")
	assert.Less(t, cfg.Thresholds.FullyAnswerable, 0.5, "the cutoff moves down toward the true 0.3 boundary")
	require.NoError(t, cfg.Validate())
}

func TestOptimizeNoImprovement(t *testing.T) {
	t.Parallel()

	// Predictions already perfect under the baseline thresholds.
	samples := make([]model.CalibrationSample, 200)
	for i := range samples {
		score := 0.1
		observed := model.OutcomeOmitted
		predicted := model.Unanswered
		if i%2 == 0 {
			score = 0.9
			observed = model.OutcomeCited
			predicted = model.FullyAnswerable
		}
		samples[i] = model.CalibrationSample{
			RunID:      fmt.Sprintf("run-%03d", i),
			QuestionID: "u01",
			SimScore:   score,
			Predicted:  predicted,
			Observed:   observed,
			Verdict:    model.Judge(predicted, observed),
		}
	}

	_, err := Optimize(samples, model.DefaultCalibrationConfig(), DefaultOptimizerOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoImprovement)
}

func TestSplitDeterministicAndDisjoint(t *testing.T) {
	t.Parallel()

	samples := separableSamples(100)
	train1, holdout1 := split(samples, 0.3)
	train2, holdout2 := split(samples, 0.3)

	assert.Equal(t, train1, train2)
	assert.Equal(t, holdout1, holdout2)
	assert.Equal(t, len(samples), len(train1)+len(holdout1))
	// stride 3: every third sample held out.
	assert.InDelta(t, float64(len(samples))/3, float64(len(holdout1)), 1)
}

func TestSplitBadFractionFallsBack(t *testing.T) {
	t.Parallel()

	train, holdout := split(separableSamples(30), 0)
	assert.NotEmpty(t, train)
	assert.NotEmpty(t, holdout)
}

func TestReplayAccuracy(t *testing.T) {
	t.Parallel()

	samples := []model.CalibrationSample{
		{SimScore: 0.8, Observed: model.OutcomeCited},    // fully vs cited: correct
		{SimScore: 0.8, Observed: model.OutcomeOmitted},  // fully vs omitted: optimistic
		{SimScore: 0.05, Observed: model.OutcomeOmitted}, // unanswered vs omitted: correct
	}
	acc := replayAccuracy(samples, model.DefaultCalibrationConfig().Thresholds)
	assert.InDelta(t, 2.0/3.0, acc, 1e-9)

	assert.Zero(t, replayAccuracy(nil, model.Thresholds{}))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	th := model.Thresholds{FullyAnswerable: 0.5, PartiallyAnswerable: 0.15}
	assert.Equal(t, model.FullyAnswerable, classify(0.5, th))
	assert.Equal(t, model.PartiallyAnswerable, classify(0.3, th))
	assert.Equal(t, model.Unanswered, classify(0.1, th))
}

func TestEnumerateWeights(t *testing.T) {
	t.Parallel()

	coarse := enumerateWeights(coarseWeightStep)
	require.NotEmpty(t, coarse)
	for _, cand := range coarse {
		var sum float64
		for _, p := range optimizedPillars {
			w := cand[p]
			assert.GreaterOrEqual(t, w, float64(weightMin))
			assert.LessOrEqual(t, w, float64(weightMax))
			sum += w
		}
		assert.InDelta(t, 100.0, sum, 1e-9)
	}
}

func TestWeightObjectiveSeparation(t *testing.T) {
	t.Parallel()

	// Correct samples score high on retrieval, incorrect ones low. A
	// retrieval-heavy tuple separates better than a technical-heavy one.
	var train []model.CalibrationSample
	for i := 0; i < 20; i++ {
		s := model.CalibrationSample{
			Verdict: model.VerdictOptimistic,
			PillarScores: map[model.Pillar]float64{
				model.PillarRetrieval: 20,
				model.PillarTechnical: 70,
			},
		}
		if i%2 == 0 {
			s.Verdict = model.VerdictCorrect
			s.PillarScores[model.PillarRetrieval] = 90
		}
		train = append(train, s)
	}

	retrievalHeavy := map[model.Pillar]float64{model.PillarRetrieval: 80, model.PillarTechnical: 20}
	technicalHeavy := map[model.Pillar]float64{model.PillarRetrieval: 20, model.PillarTechnical: 80}
	assert.Greater(t, weightObjective(train, retrievalHeavy), weightObjective(train, technicalHeavy))

	assert.Zero(t, weightObjective(nil, retrievalHeavy), "no samples, no separation")
}
