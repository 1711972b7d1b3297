package fix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

func failing(p model.Pillar, components ...string) model.PillarScore {
	ps := model.PillarScore{Pillar: p, Evaluated: true}
	for _, name := range components {
		ps.Components = append(ps.Components, model.ComponentScore{Name: name, Raw: 0})
	}
	return ps
}

func TestGenerateFromFailingComponents(t *testing.T) {
	t.Parallel()

	pillars := []model.PillarScore{
		failing(model.PillarTechnical, "robots_ai_access", "llms_txt"),
		failing(model.PillarStructure, "faq_presence"),
	}
	fixes, _ := Generate(pillars, nil, nil)

	reasons := make([]string, len(fixes))
	for i, f := range fixes {
		reasons[i] = f.ReasonCode
	}
	assert.Contains(t, reasons, model.ReasonRobotsBlocksAI)
	assert.Contains(t, reasons, model.ReasonMissingLLMSTxt)
	assert.Contains(t, reasons, model.ReasonNoFAQ)
}

func TestGenerateSkipsPassingComponents(t *testing.T) {
	t.Parallel()

	ps := model.PillarScore{Pillar: model.PillarTechnical, Evaluated: true, Components: []model.ComponentScore{
		{Name: "robots_ai_access", Raw: 100},
		{Name: "llms_txt", Raw: 49.9},
	}}
	fixes, _ := Generate([]model.PillarScore{ps}, nil, nil)

	require.Len(t, fixes, 1)
	assert.Equal(t, model.ReasonMissingLLMSTxt, fixes[0].ReasonCode)
}

func TestGenerateDeduplicatesByReason(t *testing.T) {
	t.Parallel()

	// The same failing component reported by two pillar snapshots yields
	// one fix.
	pillars := []model.PillarScore{
		failing(model.PillarTechnical, "llms_txt"),
		failing(model.PillarTechnical, "llms_txt"),
	}
	fixes, _ := Generate(pillars, nil, nil)
	require.Len(t, fixes, 1)
}

func TestGenerateOrdering(t *testing.T) {
	t.Parallel()

	pillars := []model.PillarScore{
		failing(model.PillarStructure, "internal_link_density"), // priority 4, impact 2
		failing(model.PillarTechnical, "robots_ai_access"),      // priority 1, impact 8
		failing(model.PillarStructure, "faq_presence"),          // priority 2, impact 5
	}
	fixes, _ := Generate(pillars, nil, nil)

	require.Len(t, fixes, 3)
	assert.Equal(t, model.ReasonRobotsBlocksAI, fixes[0].ReasonCode)
	assert.Equal(t, model.ReasonNoFAQ, fixes[1].ReasonCode)
	assert.Equal(t, model.ReasonLinkDensity, fixes[2].ReasonCode)
}

func TestGenerateDiminishingReturns(t *testing.T) {
	t.Parallel()

	pillars := []model.PillarScore{
		failing(model.PillarTechnical, "robots_ai_access"), // 8
		failing(model.PillarStructure, "faq_presence"),     // 5
		failing(model.PillarSchema, "faqpage"),             // 6
	}
	fixes, _ := Generate(pillars, nil, nil)
	require.Len(t, fixes, 3)

	// Ordered robots(8) > faqpage schema(6, prio 2) vs faq(5, prio 2):
	// same priority ties break on impact.
	assert.InDelta(t, 8.0, fixes[0].EstimatedImpactPoints, 1e-9)
	assert.InDelta(t, 6*0.8, fixes[1].EstimatedImpactPoints, 1e-9)
	assert.InDelta(t, 5*0.64, fixes[2].EstimatedImpactPoints, 1e-9)
}

func TestGenerateImpactCap(t *testing.T) {
	t.Parallel()

	issues := []model.Issue{{Code: "framework_shell"}}
	pillars := []model.PillarScore{
		{Pillar: model.PillarTechnical, Evaluated: true, Issues: issues, Components: []model.ComponentScore{
			{Name: "robots_ai_access", Raw: 0},
			{Name: "ttfb", Raw: 0},
			{Name: "llms_txt", Raw: 0},
			{Name: "non_js_content", Raw: 0},
			{Name: "https", Raw: 0},
		}},
		failing(model.PillarStructure, "heading_hierarchy", "ai_answer_block", "faq_presence"),
		failing(model.PillarSchema, "faqpage", "article_author", "date_modified", "organization"),
	}
	fixes, _ := Generate(pillars, nil, nil)

	var total float64
	for _, f := range fixes {
		total += f.EstimatedImpactPoints
	}
	assert.LessOrEqual(t, total, 31.0, "plan impact is capped at thirty points, modulo per-fix rounding")
}

func TestGenerateEmptyShellFromIssue(t *testing.T) {
	t.Parallel()

	ps := model.PillarScore{Pillar: model.PillarTechnical, Evaluated: true, Issues: []model.Issue{{Code: "framework_shell"}}}
	fixes, _ := Generate([]model.PillarScore{ps}, nil, nil)

	require.Len(t, fixes, 1)
	assert.Equal(t, model.ReasonEmptyShell, fixes[0].ReasonCode)
	assert.Equal(t, 1, fixes[0].Priority)
}

func TestGenerateUnansweredQuestionsFolded(t *testing.T) {
	t.Parallel()

	questions := []model.Question{
		{ID: "u01", Text: "What does Acme do?"},
		{ID: "u04", Text: "How much does Acme cost?"},
	}
	sim := []model.SimResult{
		{QuestionID: "u01", Answerability: model.Unanswered},
		{QuestionID: "u04", Answerability: model.FullyAnswerable},
	}
	fixes, _ := Generate(nil, questions, sim)

	require.Len(t, fixes, 1)
	assert.Equal(t, model.ReasonUnansweredQuestion, fixes[0].ReasonCode)
	assert.Contains(t, fixes[0].Explanation, "What does Acme do?")
	assert.NotContains(t, fixes[0].Explanation, "cost", "answered questions stay out of the fold")
}

func TestUnansweredTextsCapsAtFive(t *testing.T) {
	t.Parallel()

	var questions []model.Question
	var sim []model.SimResult
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		questions = append(questions, model.Question{ID: id, Text: "q-" + id})
		sim = append(sim, model.SimResult{QuestionID: id, Answerability: model.Unanswered})
	}
	assert.Len(t, unansweredTexts(questions, sim), 5)
}

func TestZeroPages(t *testing.T) {
	t.Parallel()

	fixes, ac := ZeroPages()
	require.Len(t, fixes, 1)
	assert.Equal(t, model.ReasonSiteInaccessible, fixes[0].ReasonCode)
	assert.Equal(t, 30.0, fixes[0].EstimatedImpactPoints)
	require.Len(t, ac.HighPriority, 1)
}

func TestActionCenter(t *testing.T) {
	t.Parallel()

	pillars := []model.PillarScore{
		failing(model.PillarTechnical, "robots_ai_access"), // prio 1, low effort, impact 8
		failing(model.PillarTechnical, "ttfb"),             // prio 3, medium effort
		failing(model.PillarStructure, "faq_presence"),     // prio 2, low effort, impact 5
	}
	fixes, ac := Generate(pillars, nil, nil)
	require.Len(t, fixes, 3)

	require.Len(t, ac.HighPriority, 1)
	assert.Equal(t, model.ReasonRobotsBlocksAI, ac.HighPriority[0].ReasonCode)

	// robots (8) and faq (5·0.8=4) are low-effort and above the quick-win
	// floor; ttfb is medium effort.
	require.Len(t, ac.QuickWins, 2)

	assert.Len(t, ac.ByCategory[model.PillarTechnical], 2)
	assert.Len(t, ac.ByCategory[model.PillarStructure], 1)
}

func TestTemplatesAndImpactsAligned(t *testing.T) {
	t.Parallel()

	for reason := range templates {
		_, ok := impactTable[reason]
		assert.True(t, ok, "reason %s has a template but no impact", reason)
	}
	for reason := range impactTable {
		_, ok := templates[reason]
		assert.True(t, ok, "reason %s has an impact but no template", reason)
	}
}
