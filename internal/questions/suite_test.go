package questions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

func TestBrand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		domain string
		want   string
	}{
		{"www.acme-corp.com", "Acme Corp"},
		{"acme.com", "Acme"},
		{"sub_brand.example.io", "Sub Brand"},
		{"ACME.COM", "Acme"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Brand(tt.domain), tt.domain)
	}
}

func TestBuildUniversalSuite(t *testing.T) {
	t.Parallel()

	site := model.Site{ID: "acme.com", Domain: "acme.com"}
	qs := Build(site, SiteSignals{}, nil)

	require.Len(t, qs, 15, "no signals, no custom: universal only")
	assert.Equal(t, "u01", qs[0].ID)
	assert.Equal(t, "u15", qs[14].ID)
	assert.Equal(t, "What does Acme do?", qs[0].Text)
	assert.Equal(t, model.QuestionSourceUniversal, qs[0].Source)

	for _, q := range qs {
		assert.NotContains(t, q.Text, "{brand}")
		assert.Greater(t, q.Weight, 0.0)
		assert.GreaterOrEqual(t, q.Difficulty, 1)
		assert.LessOrEqual(t, q.Difficulty, 3)
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	site := model.Site{ID: "acme.com", Domain: "acme.com"}
	signals := SiteSignals{HasPricingPage: true, HasFAQ: true, HasContactPage: true}

	first := Build(site, signals, nil)
	second := Build(site, signals, nil)
	assert.Equal(t, first, second, "same metadata must yield the same suite and IDs")
}

func TestBuildDerivedQuestions(t *testing.T) {
	t.Parallel()

	site := model.Site{ID: "acme.com", Domain: "acme.com"}
	signals := SiteSignals{
		HasPricingPage: true,
		HasFAQ:         true,
		HasOrgSchema:   true,
		HasBlog:        true,
		HasContactPage: true,
	}
	qs := Build(site, signals, nil)
	require.Len(t, qs, 20)

	derived := qs[15:]
	assert.Equal(t, "d01", derived[0].ID)
	assert.Equal(t, model.CategoryPricing, derived[0].Category)
	for _, q := range derived {
		assert.Equal(t, model.QuestionSourceDerived, q.Source)
	}
}

func TestBuildCustomCapped(t *testing.T) {
	t.Parallel()

	site := model.Site{ID: "acme.com", Domain: "acme.com"}
	custom := []Custom{
		{Text: "Does {brand} support SSO?"},
		{Text: "  "},
		{Text: "q2"}, {Text: "q3"}, {Text: "q4"}, {Text: "q5"}, {Text: "q6"},
	}
	qs := Build(site, SiteSignals{}, custom)

	var customQs []model.Question
	for _, q := range qs {
		if q.Source == model.QuestionSourceCustom {
			customQs = append(customQs, q)
		}
	}
	require.Len(t, customQs, 4, "blank dropped, cap of five applied to the input slots")
	assert.Equal(t, "c01", customQs[0].ID)
	assert.Equal(t, "Does Acme support SSO?", customQs[0].Text)
	assert.Equal(t, model.CategoryCustom, customQs[0].Category)
}

func TestObserveSignals(t *testing.T) {
	t.Parallel()

	pages := []model.Page{
		{URL: "https://acme.com/"},
		{URL: "https://acme.com/pricing"},
		{URL: "https://acme.com/blog/launch"},
		{URL: "https://acme.com/about", Schemas: []model.SchemaObject{
			{Type: "Organization", Valid: true},
		}},
		{URL: "https://acme.com/help", Schemas: []model.SchemaObject{
			{Type: "FAQPage", Valid: true},
		}},
	}

	s := ObserveSignals(pages)
	assert.True(t, s.HasPricingPage)
	assert.True(t, s.HasBlog)
	assert.True(t, s.HasOrgSchema)
	assert.True(t, s.HasFAQ, "FAQPage schema counts without a /faq path")
	assert.False(t, s.HasContactPage)
}

func TestLoadCustom(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "questions.yaml")
	content := `questions:
  - text: "Does {brand} support SSO?"
    expected_signals: ["integration"]
  - text: "What is the refund policy?"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	custom, err := LoadCustom(path)
	require.NoError(t, err)
	require.Len(t, custom, 2)
	assert.Equal(t, "Does {brand} support SSO?", custom[0].Text)
	assert.Equal(t, []string{"integration"}, custom[0].ExpectedSignals)
}

func TestLoadCustomMissingFile(t *testing.T) {
	t.Parallel()

	custom, err := LoadCustom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err, "a missing custom-questions file is not an error")
	assert.Nil(t, custom)
}

func TestLoadCustomEmptyPath(t *testing.T) {
	t.Parallel()

	custom, err := LoadCustom("")
	require.NoError(t, err)
	assert.Nil(t, custom)
}
