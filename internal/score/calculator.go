// Package score combines pillar scores under the active calibration
// weights into the 0-100 Findable Score.
package score

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
)

// Calculator applies one calibration config's weights. Weights are
// snapshotted at run start; a mid-flight config change never touches an
// in-flight run.
type Calculator struct {
	weights map[model.Pillar]float64
}

// New creates a Calculator from the active config's weights.
func New(cfg model.CalibrationConfig) *Calculator {
	return &Calculator{weights: cfg.Weights}
}

// Compute builds the report skeleton from pillar scores and simulation
// outcomes. Skipped pillars reduce evaluated_max instead of silently
// deflating the total; the report never claims "/100" when it did not
// evaluate the full weight.
func (c *Calculator) Compute(runID string, pillars []model.PillarScore, sim []model.SimResult) model.Report {
	var total, evaluatedMax float64
	math := make([]model.MathLine, 0, len(pillars))
	var strengths []model.Pillar

	scored := make([]model.PillarScore, 0, len(pillars))
	for _, ps := range pillars {
		w, ok := c.weights[ps.Pillar]
		if !ok || !ps.Evaluated {
			ps.Evaluated = false
			scored = append(scored, ps)
			continue
		}
		ps.Weight = w
		ps.Points = ps.Raw * w / 100
		total += ps.Points
		evaluatedMax += w
		math = append(math, model.MathLine{Pillar: ps.Pillar, Raw: ps.Raw, Weight: w, Points: ps.Points})
		if ps.Level == model.LevelFull {
			strengths = append(strengths, ps.Pillar)
		}
		scored = append(scored, ps)
	}

	level, milestone := model.FindabilityForTotal(total)

	report := model.Report{
		RunID:        runID,
		TotalScore:   round1(total),
		EvaluatedMax: evaluatedMax,
		Level:        level,
		Strengths:    strengths,
		PillarScores: scored,
		Questions:    summarize(sim),
		ShowTheMath:  math,
		GeneratedAt:  time.Now().UTC(),
	}
	if evaluatedMax > 0 {
		report.EvaluatedPercent = round1(total / evaluatedMax * 100)
	}
	if milestone > 0 {
		report.NextMilestone = milestone
		report.PointsToMilestone = round1(milestone - total)
	}
	report.ShowTheMathText = renderMath(report)

	zap.L().Info("score: computed",
		zap.String("run_id", runID),
		zap.Float64("total", report.TotalScore),
		zap.String("level", string(level)),
		zap.Float64("evaluated_max", evaluatedMax),
	)
	return report
}

func summarize(sim []model.SimResult) model.QuestionSummary {
	s := model.QuestionSummary{Total: len(sim)}
	for _, r := range sim {
		switch r.Answerability {
		case model.FullyAnswerable:
			s.Answered++
		case model.PartiallyAnswerable:
			s.Partial++
		default:
			s.Unanswered++
		}
	}
	return s
}

// renderMath produces the human-readable breakdown stored alongside the
// machine-readable tree.
func renderMath(r model.Report) string {
	var b strings.Builder
	for _, line := range r.ShowTheMath {
		fmt.Fprintf(&b, "%-20s raw %5.1f x %4.1f%% = %5.1f pts\n",
			line.Pillar, line.Raw, line.Weight, line.Points)
	}
	if r.EvaluatedMax < 100 {
		fmt.Fprintf(&b, "%-20s %5.1f / %.0f evaluated (%.1f%%)\n",
			"total", r.TotalScore, r.EvaluatedMax, r.EvaluatedPercent)
	} else {
		fmt.Fprintf(&b, "%-20s %5.1f / 100 (%s)\n", "total", r.TotalScore, r.Level)
	}
	if r.NextMilestone > 0 {
		fmt.Fprintf(&b, "next milestone: %.0f (%.1f points away)\n", r.NextMilestone, r.PointsToMilestone)
	}
	return b.String()
}

func round1(v float64) float64 {
	if v < 0 {
		return 0
	}
	return float64(int(v*10+0.5)) / 10
}
