package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

func pillar(p model.Pillar, raw float64) model.PillarScore {
	return model.PillarScore{Pillar: p, Raw: raw, Level: model.LevelForScore(raw), Evaluated: true}
}

func TestComputeWeightedTotal(t *testing.T) {
	t.Parallel()

	calc := New(model.DefaultCalibrationConfig())
	pillars := []model.PillarScore{
		pillar(model.PillarTechnical, 80),
		pillar(model.PillarStructure, 60),
		pillar(model.PillarSchema, 40),
		pillar(model.PillarAuthority, 50),
		pillar(model.PillarRetrieval, 70),
		pillar(model.PillarCoverage, 90),
	}
	report := calc.Compute("run-1", pillars, nil)

	// 80·.20 + 60·.20 + 40·.15 + 50·.10 + 70·.25 + 90·.10 = 65.5
	assert.InDelta(t, 65.5, report.TotalScore, 0.01)
	assert.Equal(t, 100.0, report.EvaluatedMax)
	assert.Equal(t, model.LevelFindable, report.Level)
	assert.Equal(t, 70.0, report.NextMilestone)
	assert.InDelta(t, 4.5, report.PointsToMilestone, 0.01)
	require.Len(t, report.ShowTheMath, 6)
}

func TestComputeSkippedPillarReducesEvaluatedMax(t *testing.T) {
	t.Parallel()

	calc := New(model.DefaultCalibrationConfig())
	skipped := model.PillarScore{Pillar: model.PillarRetrieval, Evaluated: false}
	pillars := []model.PillarScore{
		pillar(model.PillarTechnical, 100),
		pillar(model.PillarStructure, 0),
		pillar(model.PillarSchema, 0),
		pillar(model.PillarAuthority, 0),
		pillar(model.PillarCoverage, 0),
		skipped,
	}
	report := calc.Compute("run-1", pillars, nil)

	assert.Equal(t, 75.0, report.EvaluatedMax, "retrieval's 25 points drop out of the denominator")
	assert.InDelta(t, 20.0, report.TotalScore, 0.01)
	assert.InDelta(t, 26.7, report.EvaluatedPercent, 0.05, "20 of the 75 evaluated points")
	assert.Len(t, report.ShowTheMath, 5, "skipped pillars never appear in the math")

	var carried *model.PillarScore
	for i := range report.PillarScores {
		if report.PillarScores[i].Pillar == model.PillarRetrieval {
			carried = &report.PillarScores[i]
		}
	}
	require.NotNil(t, carried)
	assert.False(t, carried.Evaluated)
}

func TestComputeUnknownPillarIgnored(t *testing.T) {
	t.Parallel()

	// Entity is not in the default weight map; it contributes nothing and
	// is carried through unevaluated.
	calc := New(model.DefaultCalibrationConfig())
	pillars := []model.PillarScore{pillar(model.PillarEntityRecognition, 100)}
	report := calc.Compute("run-1", pillars, nil)

	assert.Zero(t, report.TotalScore)
	assert.Zero(t, report.EvaluatedMax)
	require.Len(t, report.PillarScores, 1)
	assert.False(t, report.PillarScores[0].Evaluated)
}

func TestComputeStrengths(t *testing.T) {
	t.Parallel()

	calc := New(model.DefaultCalibrationConfig())
	pillars := []model.PillarScore{
		pillar(model.PillarTechnical, 90), // full
		pillar(model.PillarStructure, 55), // partial
	}
	report := calc.Compute("run-1", pillars, nil)
	assert.Equal(t, []model.Pillar{model.PillarTechnical}, report.Strengths)
}

func TestComputeQuestionSummary(t *testing.T) {
	t.Parallel()

	calc := New(model.DefaultCalibrationConfig())
	sim := []model.SimResult{
		{Answerability: model.FullyAnswerable},
		{Answerability: model.FullyAnswerable},
		{Answerability: model.PartiallyAnswerable},
		{Answerability: model.Unanswered},
	}
	report := calc.Compute("run-1", nil, sim)
	assert.Equal(t, model.QuestionSummary{Total: 4, Answered: 2, Partial: 1, Unanswered: 1}, report.Questions)
}

func TestRenderMath(t *testing.T) {
	t.Parallel()

	calc := New(model.DefaultCalibrationConfig())
	report := calc.Compute("run-1", []model.PillarScore{pillar(model.PillarTechnical, 80)}, nil)

	assert.Contains(t, report.ShowTheMathText, "technical")
	assert.Contains(t, report.ShowTheMathText, "evaluated", "partial evaluation shows the reduced denominator")

	full := calc.Compute("run-1", []model.PillarScore{
		pillar(model.PillarTechnical, 90),
		pillar(model.PillarStructure, 90),
		pillar(model.PillarSchema, 90),
		pillar(model.PillarAuthority, 90),
		pillar(model.PillarRetrieval, 90),
		pillar(model.PillarCoverage, 90),
	}, nil)
	assert.Contains(t, full.ShowTheMathText, "/ 100")
	assert.NotContains(t, full.ShowTheMathText, "next milestone", "optimized has no next milestone")
	lines := strings.Split(strings.TrimRight(full.ShowTheMathText, "\n"), "\n")
	assert.Len(t, lines, 7, "six pillars plus the total line")
}

func TestRound1(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 65.5, round1(65.49))
	assert.Equal(t, 65.5, round1(65.54))
	assert.Zero(t, round1(-2))
}
