package analyzer

import (
	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/simulate"
)

// analyzeRetrieval derives the retrieval pillar from simulation results:
// the mean per-question normalized relevance, on the same [0,1] scale the
// per-question score uses.
func analyzeRetrieval(in *Input) model.PillarScore {
	var sum float64
	n := 0
	for _, r := range in.Sim {
		sum += r.RelevanceNorm
		n++
	}
	raw := 0.0
	if n > 0 {
		raw = 100 * sum / float64(n)
	}

	var issues []model.Issue
	if raw < 30 && n > 0 {
		issues = append(issues, model.Issue{
			Code:    "weak_retrieval",
			Level:   model.LevelLimited,
			Message: "retrieved content is weakly relevant to common buyer questions; the site talks past what users ask",
		})
	}

	components := []model.ComponentScore{
		{Name: "avg_relevance", Raw: raw, Weight: 100},
	}
	return model.NewPillarScore(in.RunID, model.PillarRetrieval, components, issues)
}

// analyzeCoverage scores the question suite on two components: how many
// questions were answerable, 100 · (fully + 0.5·partial) / total, and how
// much of the expected evidence the retrieved text actually carried.
func analyzeCoverage(in *Input) model.PillarScore {
	var fully, partial, total int
	for _, r := range in.Sim {
		total++
		switch r.Answerability {
		case model.FullyAnswerable:
			fully++
		case model.PartiallyAnswerable:
			partial++
		}
	}

	raw := 0.0
	if total > 0 {
		raw = 100 * (float64(fully) + 0.5*float64(partial)) / float64(total)
	}

	var issues []model.Issue
	if total > 0 && fully == 0 {
		issues = append(issues, model.Issue{
			Code:    "no_fully_answerable",
			Level:   model.LevelLimited,
			Message: "no question could be fully answered from site content",
		})
	}

	components := []model.ComponentScore{
		{Name: "question_coverage", Raw: raw, Weight: 70},
		{Name: "signal_coverage", Raw: 100 * simulate.AggregateSignalCoverage(in.Sim), Weight: 30},
	}
	return model.NewPillarScore(in.RunID, model.PillarCoverage, components, issues)
}
