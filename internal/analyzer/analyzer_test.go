package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/robots"
)

func healthyPages() []model.Page {
	return []model.Page{
		{
			URL: "https://acme.com/", StatusCode: 200, TTFBMillis: 300, HTTPS: true,
			ExtractedText: "Acme builds audit tooling for modern teams.",
			Headings:      []model.Heading{{Level: 1, Text: "Acme"}},
		},
		{
			URL: "https://acme.com/pricing", StatusCode: 200, TTFBMillis: 450, HTTPS: true,
			ExtractedText: "Pricing starts at $29 per month.",
			Headings:      []model.Heading{{Level: 1, Text: "Pricing"}},
		},
	}
}

func TestAnalyzeReturnsDisplayOrder(t *testing.T) {
	t.Parallel()

	in := &Input{
		RunID: "run-1",
		Site:  model.Site{Domain: "acme.com"},
		Pages: healthyPages(),
		Sim:   []model.SimResult{{RelevanceNorm: 0.8, Answerability: model.FullyAnswerable}},
	}
	scores, err := Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, scores, 6, "entity pillar inactive without evidence")

	want := []model.Pillar{
		model.PillarTechnical, model.PillarStructure, model.PillarSchema,
		model.PillarAuthority, model.PillarRetrieval, model.PillarCoverage,
	}
	for i, p := range want {
		assert.Equal(t, p, scores[i].Pillar)
		assert.True(t, scores[i].Evaluated)
	}
}

func TestAnalyzeIncludesEntityWhenEvidencePresent(t *testing.T) {
	t.Parallel()

	in := &Input{
		RunID:  "run-1",
		Pages:  healthyPages(),
		Entity: &EntityEvidence{WikipediaFound: true, WikidataFound: true, DomainTrustScore: 80, WebPresenceScore: 60},
	}
	scores, err := Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, scores, 7)
	assert.Equal(t, model.PillarEntityRecognition, scores[6].Pillar)
}

func TestTechnicalComponentWeights(t *testing.T) {
	t.Parallel()

	in := &Input{RunID: "run-1", Pages: healthyPages(), LLMSTxt: LLMSTxt{Present: true, Structured: true}}
	ps := analyzeTechnical(in)

	require.Len(t, ps.Components, 5)
	weights := map[string]float64{}
	for _, c := range ps.Components {
		weights[c.Name] = c.Weight
	}
	assert.Equal(t, 35.0, weights["robots_ai_access"])
	assert.Equal(t, 30.0, weights["ttfb"])
	assert.Equal(t, 15.0, weights["llms_txt"])
	assert.Equal(t, 10.0, weights["non_js_content"])
	assert.Equal(t, 10.0, weights["https"])
}

func TestTechnicalTTFBLinear(t *testing.T) {
	t.Parallel()

	pages := []model.Page{
		{URL: "https://acme.com/", StatusCode: 200, TTFBMillis: 750, HTTPS: true, ExtractedText: "x"},
	}
	ps := analyzeTechnical(&Input{RunID: "run-1", Pages: pages})
	for _, c := range ps.Components {
		if c.Name == "ttfb" {
			assert.InDelta(t, 50.0, c.Raw, 1e-9, "750ms is halfway to the 1500ms floor")
		}
	}

	slow := []model.Page{
		{URL: "https://acme.com/", StatusCode: 200, TTFBMillis: 3000, HTTPS: true, ExtractedText: "x"},
	}
	ps = analyzeTechnical(&Input{RunID: "run-1", Pages: slow})
	for _, c := range ps.Components {
		if c.Name == "ttfb" {
			assert.Zero(t, c.Raw, "past the floor clamps to zero")
		}
	}
}

func TestTechnicalShellPenalty(t *testing.T) {
	t.Parallel()

	pages := []model.Page{
		{URL: "https://acme.com/", StatusCode: 200, TTFBMillis: 200, HTTPS: true, FrameworkShell: true},
		{URL: "https://acme.com/a", StatusCode: 200, TTFBMillis: 200, HTTPS: true, FrameworkShell: true},
		{URL: "https://acme.com/b", StatusCode: 200, TTFBMillis: 200, HTTPS: true, ExtractedText: "real text"},
	}
	in := &Input{RunID: "run-1", Pages: pages, LLMSTxt: LLMSTxt{Present: true, Structured: true}}

	withPenalty := analyzeTechnical(in)
	assert.True(t, hasIssue(withPenalty.Issues, "framework_shell"))

	// Same inputs without the shells score strictly higher.
	for i := range pages {
		pages[i].FrameworkShell = false
	}
	clean := analyzeTechnical(&Input{RunID: "run-1", Pages: pages, LLMSTxt: LLMSTxt{Present: true, Structured: true}})
	assert.Greater(t, clean.Raw, withPenalty.Raw)
	// robots 100·0.35 + ttfb 86.67·0.30 + llms 100·0.15 + nonJS 33.33·0.10
	// + https 100·0.10 = 89.33, then the 0.4 shell multiplier.
	assert.InDelta(t, 89.3333*shellPenalty, withPenalty.Raw, 0.01)
	assert.InDelta(t, 96.0, clean.Raw, 0.01)
}

func TestTechnicalRobotsIssues(t *testing.T) {
	t.Parallel()

	// AI blocked but search open: partial, not limited.
	in := &Input{
		RunID: "run-1",
		Pages: healthyPages(),
		Robots: &robots.Result{
			Found:         true,
			SearchIndexed: 100,
			DirectCrawl:   0,
			Combined:      60,
			BlockedAIBots: []string{"GPTBot", "ClaudeBot"},
		},
	}
	ps := analyzeTechnical(in)
	assert.True(t, hasIssue(ps.Issues, "robots_ai_blocked_search_open"))
	assert.False(t, hasIssue(ps.Issues, "robots_ai_blocked"))

	// Both blocked: limited.
	in.Robots.SearchIndexed = 20
	in.Robots.Combined = 12
	ps = analyzeTechnical(in)
	assert.True(t, hasIssue(ps.Issues, "robots_ai_blocked"))
}

func TestRetrievalPillar(t *testing.T) {
	t.Parallel()

	in := &Input{
		RunID: "run-1",
		Sim: []model.SimResult{
			{RelevanceNorm: 0.8},
			{RelevanceNorm: 0.4},
		},
	}
	ps := analyzeRetrieval(in)
	assert.InDelta(t, 60.0, ps.Raw, 1e-9)
	assert.False(t, hasIssue(ps.Issues, "weak_retrieval"))

	weak := analyzeRetrieval(&Input{RunID: "run-1", Sim: []model.SimResult{{RelevanceNorm: 0.1}}})
	assert.True(t, hasIssue(weak.Issues, "weak_retrieval"))
}

func TestCoveragePillar(t *testing.T) {
	t.Parallel()

	in := &Input{
		RunID: "run-1",
		Sim: []model.SimResult{
			{Answerability: model.FullyAnswerable, SignalsTotal: 2, SignalsFound: 2},
			{Answerability: model.PartiallyAnswerable, SignalsTotal: 2, SignalsFound: 1},
			{Answerability: model.Unanswered, SignalsTotal: 2},
			{Answerability: model.Unanswered, SignalsTotal: 2},
		},
	}
	ps := analyzeCoverage(in)

	// question_coverage 37.5 at 70%, signal_coverage (1+0.5+0+0)/4 at 30%.
	assert.InDelta(t, 0.7*37.5+0.3*37.5, ps.Raw, 1e-9)
	require.Len(t, ps.Components, 2)
	assert.Equal(t, "signal_coverage", ps.Components[1].Name)
	assert.InDelta(t, 37.5, ps.Components[1].Raw, 1e-9)

	none := analyzeCoverage(&Input{RunID: "run-1", Sim: []model.SimResult{{Answerability: model.Unanswered, SignalsTotal: 3}}})
	assert.Zero(t, none.Raw)
	assert.True(t, hasIssue(none.Issues, "no_fully_answerable"))
}

func TestContentPagesFiltersFailures(t *testing.T) {
	t.Parallel()

	pages := []model.Page{
		{URL: "https://acme.com/", StatusCode: 200},
		{URL: "https://acme.com/404", StatusCode: 404},
		{URL: "https://acme.com/err", FetchError: "timeout"},
	}
	got := contentPages(pages)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme.com/", got[0].URL)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.Zero(t, median(nil))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

func hasIssue(issues []model.Issue, code string) bool {
	for _, is := range issues {
		if is.Code == code {
			return true
		}
	}
	return false
}
