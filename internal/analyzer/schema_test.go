package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

func TestAnalyzeSchemaComponents(t *testing.T) {
	t.Parallel()

	in := &Input{
		RunID: "run-1",
		Pages: []model.Page{
			{URL: "https://acme.com/help", StatusCode: 200, Schemas: []model.SchemaObject{
				{Type: "FAQPage", Valid: true},
			}},
			{URL: "https://acme.com/blog/x", StatusCode: 200, Schemas: []model.SchemaObject{
				{Type: "BlogPosting", Valid: true, Properties: map[string]any{
					"author":       "Jane",
					"dateModified": "2026-01-01",
				}},
			}},
			{URL: "https://acme.com/about", StatusCode: 200, Schemas: []model.SchemaObject{
				{Type: "Organization", Valid: false},
			}},
		},
	}
	ps := analyzeSchema(in)

	raw := map[string]float64{}
	for _, c := range ps.Components {
		raw[c.Name] = c.Raw
	}
	assert.Equal(t, 100.0, raw["faqpage"])
	assert.Equal(t, 100.0, raw["article_author"])
	assert.Equal(t, 100.0, raw["date_modified"])
	assert.Equal(t, 100.0, raw["organization"])
	assert.Zero(t, raw["howto"])
	assert.InDelta(t, 100.0*2/3, raw["validation"], 1e-9)

	assert.True(t, hasIssue(ps.Issues, "schema_validation_errors"))
	assert.False(t, hasIssue(ps.Issues, "no_schema"))
}

func TestAnalyzeSchemaIssues(t *testing.T) {
	t.Parallel()

	none := analyzeSchema(&Input{RunID: "run-1", Pages: healthyPages()})
	assert.True(t, hasIssue(none.Issues, "no_schema"))

	orgOnly := analyzeSchema(&Input{RunID: "run-1", Pages: []model.Page{
		{URL: "https://acme.com/", StatusCode: 200, Schemas: []model.SchemaObject{
			{Type: "Organization", Valid: true},
		}},
	}})
	assert.True(t, hasIssue(orgOnly.Issues, "no_faqpage_schema"))
	assert.False(t, hasIssue(orgOnly.Issues, "no_schema"))
}

func TestAnalyzeAuthority(t *testing.T) {
	t.Parallel()

	recent := time.Now().AddDate(0, 0, -30)
	page := model.Page{
		URL: "https://acme.com/research", StatusCode: 200,
		Author:        "Jane Smith",
		ExtractedText: "Dr. Smith, PhD, led the work. We surveyed 400 teams about their tooling.",
		ModifiedAt:    &recent,
	}
	page.Links.External = []string{"https://www.nature.com/articles/x", "https://example.com"}

	ps := analyzeAuthority(&Input{RunID: "run-1", Pages: []model.Page{page}})

	raw := map[string]float64{}
	for _, c := range ps.Components {
		raw[c.Name] = c.Raw
	}
	assert.Equal(t, 100.0, raw["author_bylines"])
	assert.Equal(t, 100.0, raw["credentials"])
	assert.Equal(t, 100.0, raw["primary_citations"])
	assert.Equal(t, 100.0, raw["original_data"])
	assert.Greater(t, raw["freshness"], 90.0, "thirty days old is nearly fresh")

	assert.Empty(t, ps.Issues)
}

func TestAnalyzeAuthorityIssues(t *testing.T) {
	t.Parallel()

	ps := analyzeAuthority(&Input{RunID: "run-1", Pages: healthyPages()})
	assert.True(t, hasIssue(ps.Issues, "no_bylines"))
	assert.True(t, hasIssue(ps.Issues, "no_dates"))

	raw := map[string]float64{}
	for _, c := range ps.Components {
		raw[c.Name] = c.Raw
	}
	assert.Zero(t, raw["freshness"], "no dates means zero freshness, not a skipped component")
}

func TestCitesAuthoritative(t *testing.T) {
	t.Parallel()

	assert.True(t, citesAuthoritative([]string{"https://www.census.gov/data"}))
	assert.True(t, citesAuthoritative([]string{"https://en.wikipedia.org/wiki/X"}))
	assert.False(t, citesAuthoritative([]string{"https://random-blog.example.com/post"}))
	assert.False(t, citesAuthoritative([]string{"::not a url::"}))
	assert.False(t, citesAuthoritative(nil))
}

func TestFreshnessDecay(t *testing.T) {
	t.Parallel()

	old := time.Now().AddDate(-3, 0, 0)
	page := model.Page{URL: "https://acme.com/", StatusCode: 200, ExtractedText: "x", ModifiedAt: &old}
	ps := analyzeAuthority(&Input{RunID: "run-1", Pages: []model.Page{page}})
	for _, c := range ps.Components {
		if c.Name == "freshness" {
			assert.Zero(t, c.Raw, "three years past the two-year horizon clamps to zero")
		}
	}
}

func TestAnalyzeEntity(t *testing.T) {
	t.Parallel()

	known := analyzeEntity(&Input{RunID: "run-1", Entity: &EntityEvidence{
		WikipediaFound: true, WikidataFound: true, DomainTrustScore: 70, WebPresenceScore: 100,
	}})
	require.Len(t, known.Components, 4)
	assert.Empty(t, known.Issues)
	assert.InDelta(t, (100*30+100*20+70*20+100*30)/100.0, known.Raw, 1e-9)

	unknown := analyzeEntity(&Input{RunID: "run-1", Entity: &EntityEvidence{DomainTrustScore: 50, WebPresenceScore: 20}})
	assert.True(t, hasIssue(unknown.Issues, "unknown_entity"))
}

func TestDomainTrust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		domain string
		want   float64
	}{
		{"nasa.gov", 100},
		{"charity.org", 80},
		{"www.acme.com", 70},
		{"startup.io", 60},
		{"weird.xyz", 50},
		{"my-long-hyphen-heavy.com", 55},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, domainTrust(tt.domain), 1e-9, tt.domain)
	}
}
