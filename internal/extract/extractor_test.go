package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/model"
)

func extractPage(t *testing.T, html string) *model.Page {
	t.Helper()
	page, err := New().Extract("https://acme.com/about", 1, 200, 300, []byte(html))
	require.NoError(t, err)
	return page
}

func TestExtractBasicFields(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<!DOCTYPE html>
<html lang="en-US">
<head>
<title>About Acme</title>
<meta name="description" content="What Acme does and why.">
</head>
<body>
<main>
<h1>About Acme</h1>
<p>Acme builds audit software for marketing teams around the world.</p>
</main>
</body>
</html>`)

	assert.Equal(t, "About Acme", page.Title)
	assert.Equal(t, "What Acme does and why.", page.MetaDescription)
	assert.Equal(t, "en", page.Language)
	assert.True(t, page.HTTPS)
	assert.Equal(t, 1, page.Depth)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.ExtractedText, "audit software for marketing teams")
	assert.NotEmpty(t, page.ContentHash)

	require.Len(t, page.Headings, 1)
	assert.Equal(t, model.Heading{Level: 1, Text: "About Acme"}, page.Headings[0])
}

func TestExtractHeadingLevels(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<html><body>
<h1>Top</h1><h2>Mid</h2><h3>Deep</h3><h2></h2>
</body></html>`)

	require.Len(t, page.Headings, 3, "empty headings are dropped")
	assert.Equal(t, 1, page.Headings[0].Level)
	assert.Equal(t, 2, page.Headings[1].Level)
	assert.Equal(t, 3, page.Headings[2].Level)
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<html><body>
<a href="/pricing">Pricing</a>
<a href="https://blog.acme.com/post">Blog</a>
<a href="https://other.com/x">Other</a>
<a href="#section">Anchor</a>
<a href="mailto:hi@acme.com">Mail</a>
<a href="/pricing">Duplicate</a>
</body></html>`)

	assert.ElementsMatch(t, []string{
		"https://acme.com/pricing",
		"https://blog.acme.com/post",
	}, page.Links.Internal, "subdomains count as internal")
	assert.Equal(t, []string{"https://other.com/x"}, page.Links.External)
}

func TestExtractSchemasJSONLD(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Organization","name":"Acme"}
</script>
<script type="application/ld+json">
{"@type":"FAQPage"}
</script>
<script type="application/ld+json">
not json at all
</script>
</head><body><p>text</p></body></html>`)

	require.Len(t, page.Schemas, 3)

	org := page.Schemas[0]
	assert.Equal(t, "Organization", org.Type)
	assert.True(t, org.Valid)

	faq := page.Schemas[1]
	assert.Equal(t, "FAQPage", faq.Type)
	assert.False(t, faq.Valid, "FAQPage without mainEntity fails validation")
	assert.Contains(t, faq.Errors, "missing mainEntity")

	broken := page.Schemas[2]
	assert.False(t, broken.Valid)
	assert.Equal(t, "unknown", broken.Type)
}

func TestExtractSchemaGraphAndArray(t *testing.T) {
	t.Parallel()

	graphs := parseJSONLD(`{"@graph":[{"@type":"Organization","name":"Acme"},{"@type":"WebSite","name":"Acme Site"}]}`)
	require.Len(t, graphs, 2)
	assert.Equal(t, "Organization", graphs[0].Type)
	assert.Equal(t, "WebSite", graphs[1].Type)

	arr := parseJSONLD(`[{"@type":"FAQPage","mainEntity":[]},{"@type":["BlogPosting","Article"],"headline":"X"}]`)
	require.Len(t, arr, 2)
	assert.True(t, arr[0].Valid)
	assert.Equal(t, "BlogPosting", arr[1].Type, "the first of a multi-type array wins")
}

func TestExtractMicrodata(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<html><body>
<div itemscope itemtype="https://schema.org/Organization">
  <span itemprop="name">Acme</span>
  <meta itemprop="foundingDate" content="2015">
</div>
</body></html>`)

	require.Len(t, page.Schemas, 1)
	so := page.Schemas[0]
	assert.Equal(t, "Organization", so.Type)
	assert.Equal(t, "microdata", so.Format)
	assert.Equal(t, "Acme", so.Properties["name"])
	assert.Equal(t, "2015", so.Properties["foundingDate"])
}

func TestExtractAuthorSources(t *testing.T) {
	t.Parallel()

	meta := extractPage(t, `<html><head><meta name="author" content="Jane Smith"></head><body><p>x</p></body></html>`)
	assert.Equal(t, "Jane Smith", meta.Author)

	schema := extractPage(t, `<html><head>
<script type="application/ld+json">{"@type":"Article","headline":"X","author":{"@type":"Person","name":"Alex Chen"}}</script>
</head><body><p>x</p></body></html>`)
	assert.Equal(t, "Alex Chen", schema.Author)

	byline := extractPage(t, `<html><body><p>By Maria Lopez. Research from the field.</p></body></html>`)
	assert.Equal(t, "Maria Lopez", byline.Author)

	none := extractPage(t, `<html><body><p>no attribution here</p></body></html>`)
	assert.Empty(t, none.Author)
}

func TestExtractModifiedDate(t *testing.T) {
	t.Parallel()

	timeTag := extractPage(t, `<html><body><time datetime="2026-03-15">March 15</time><p>x</p></body></html>`)
	require.NotNil(t, timeTag.ModifiedAt)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *timeTag.ModifiedAt)

	visible := extractPage(t, `<html><body><p>Last updated: January 5, 2026. Content follows.</p></body></html>`)
	require.NotNil(t, visible.ModifiedAt)
	assert.Equal(t, 2026, visible.ModifiedAt.Year())

	none := extractPage(t, `<html><body><p>undated</p></body></html>`)
	assert.Nil(t, none.ModifiedAt)
}

func TestExtractFrameworkShell(t *testing.T) {
	t.Parallel()

	shell := extractPage(t, `<html><body><div id="root"></div></body></html>`)
	assert.True(t, shell.FrameworkShell)

	hydrated := extractPage(t, `<html><body><div id="root">
<p>`+"This page was server-rendered with plenty of real visible content, well past the threshold that would mark it as an empty client-side shell."+`</p>
</div></body></html>`)
	assert.False(t, hydrated.FrameworkShell, "the marker is forgiven when real text survives")
}

func TestExtractPrefersArticle(t *testing.T) {
	t.Parallel()

	page := extractPage(t, `<html><body>
<nav>Home Pricing About Contact</nav>
<article><p>The article body is the content that matters for retrieval.</p></article>
<footer>Copyright Acme</footer>
</body></html>`)

	assert.Contains(t, page.ExtractedText, "content that matters")
	assert.NotContains(t, page.ExtractedText, "Copyright")
}

func TestExtractEmptyDocument(t *testing.T) {
	t.Parallel()

	// The HTML parser synthesizes a body even for empty input; the page
	// comes back with no content rather than an error.
	page, err := New().Extract("https://acme.com/x", 0, 200, 10, []byte(""))
	require.NoError(t, err)
	assert.Empty(t, page.ExtractedText)
	assert.Empty(t, page.Headings)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	got := cleanText("  line one  \n\n\n\n   line\ttwo   ")
	assert.Equal(t, "line one\n\nline two", got)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, parseDate("2026-01-02"))
	assert.NotNil(t, parseDate("January 2, 2026"))
	assert.NotNil(t, parseDate("2026-01-02T10:00:00Z"))
	assert.Nil(t, parseDate("yesterday"))
}
