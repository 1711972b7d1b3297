package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/findable-hq/findable/internal/model"
)

func TestValidHeadingHierarchy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		headings []model.Heading
		want     bool
	}{
		{"single h1 clean descent", []model.Heading{{Level: 1}, {Level: 2}, {Level: 3}}, true},
		{"no h1", []model.Heading{{Level: 2}, {Level: 3}}, false},
		{"two h1s", []model.Heading{{Level: 1}, {Level: 1}}, false},
		{"level skip", []model.Heading{{Level: 1}, {Level: 3}}, false},
		{"back up then down", []model.Heading{{Level: 1}, {Level: 2}, {Level: 3}, {Level: 2}}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, validHeadingHierarchy(tt.headings))
		})
	}
}

func TestHasAnswerFirst(t *testing.T) {
	t.Parallel()

	good := &model.Page{ExtractedText: "Acme is an audit platform that helps marketing teams understand how AI assistants describe their site."}
	assert.True(t, hasAnswerFirst(good))

	heroFragment := &model.Page{ExtractedText: "Build better.\n\nAcme is an audit platform that helps marketing teams understand how AI assistants describe their site."}
	assert.True(t, hasAnswerFirst(heroFragment), "short hero fragments are skipped, not counted")

	tooLong := &model.Page{ExtractedText: strings.Repeat("word ", 150)}
	assert.False(t, hasAnswerFirst(tooLong))

	empty := &model.Page{}
	assert.False(t, hasAnswerFirst(empty))
}

func TestHasAIAnswerBlock(t *testing.T) {
	t.Parallel()

	block := strings.TrimSpace(strings.Repeat("Acme audits sites for AI findability and reports a score. ", 5)) // 50 words
	page := &model.Page{
		Headings:      []model.Heading{{Level: 1, Text: "What Is Acme"}},
		ExtractedText: "What Is Acme\n\n" + block + "\n\nMore detail follows here.",
	}
	assert.True(t, hasAIAnswerBlock(page))

	short := &model.Page{
		Headings:      []model.Heading{{Level: 1, Text: "What Is Acme"}},
		ExtractedText: "What Is Acme\n\nToo short.\n\nMore detail.",
	}
	assert.False(t, hasAIAnswerBlock(short))

	noH1 := &model.Page{ExtractedText: block}
	assert.False(t, hasAIAnswerBlock(noH1))
}

func TestIsReadable(t *testing.T) {
	t.Parallel()

	readable := "Acme keeps sentences short. Each paragraph makes one point in plain words. That is what answer engines extract cleanly from pages."
	assert.True(t, isReadable(readable))

	wall := strings.Repeat("this sentence never ends and keeps adding clauses without a period ", 10)
	assert.False(t, isReadable(wall))

	assert.False(t, isReadable(""), "nothing to check is not readable")
}

func TestFAQPresence(t *testing.T) {
	t.Parallel()

	schema := &Input{Pages: []model.Page{{URL: "https://a.com/help", Schemas: []model.SchemaObject{{Type: "FAQPage"}}}}}
	assert.Equal(t, 100.0, faqPresence(schema))

	path := &Input{Pages: []model.Page{{URL: "https://a.com/faq"}}}
	assert.Equal(t, 100.0, faqPresence(path))

	headings := &Input{Pages: []model.Page{{
		URL: "https://a.com/",
		Headings: []model.Heading{
			{Level: 2, Text: "How does it work?"},
			{Level: 2, Text: "What does it cost?"},
			{Level: 2, Text: "Is my data safe?"},
		},
	}}}
	assert.Equal(t, 50.0, faqPresence(headings))

	none := &Input{Pages: []model.Page{{URL: "https://a.com/"}}}
	assert.Zero(t, faqPresence(none))
}

func TestInternalLinkDensity(t *testing.T) {
	t.Parallel()

	mk := func(n int) *model.Page {
		p := &model.Page{}
		for i := 0; i < n; i++ {
			p.Links.Internal = append(p.Links.Internal, "/x")
		}
		return p
	}

	assert.Equal(t, 100.0, internalLinkDensity([]*model.Page{mk(7)}))
	assert.InDelta(t, 60.0, internalLinkDensity([]*model.Page{mk(3)}), 1e-9, "linear below five")
	assert.InDelta(t, 75.0, internalLinkDensity([]*model.Page{mk(15)}), 1e-9, "minus five per link above ten")
	assert.Zero(t, internalLinkDensity([]*model.Page{mk(40)}), "floor at zero")
	assert.Zero(t, internalLinkDensity(nil))
}

func TestExtractableFormats(t *testing.T) {
	t.Parallel()

	pages := []*model.Page{{ID: "p1"}, {ID: "p2"}}
	in := &Input{Chunks: []model.Chunk{
		{PageID: "p1", Type: model.ChunkTypeList},
		{PageID: "p1", Type: model.ChunkTypeTable},
		{PageID: "p2", Type: model.ChunkTypeText},
	}}
	assert.InDelta(t, 50.0, extractableFormats(in, pages), 1e-9)
}

func TestAnalyzeStructureComponentWeights(t *testing.T) {
	t.Parallel()

	ps := analyzeStructure(&Input{RunID: "run-1", Pages: healthyPages()})
	var total float64
	for _, c := range ps.Components {
		total += c.Weight
	}
	assert.Equal(t, 100.0, total, "structure component weights sum to 100")
	assert.True(t, hasIssue(ps.Issues, "no_faq"))
}
