// Package extract turns fetched HTML into the structured Page artifact the
// rest of the pipeline consumes: main text, headings, schema objects,
// links, author, images, and visible dates.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"

	"github.com/findable-hq/findable/internal/crawler"
	"github.com/findable-hq/findable/internal/model"
)

var (
	bylineRe      = regexp.MustCompile(`(?i)\bby\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})`)
	updatedRe     = regexp.MustCompile(`(?i)(?:updated|last modified|last updated)[:\s]+([A-Za-z]+\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2})`)
	whitespaceRe  = regexp.MustCompile(`[ \t]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// frameworkMarkers identify client-rendered shells: a page whose visible
// text lives behind JavaScript is invisible to most AI crawlers.
var frameworkMarkers = []string{
	`id="root"`, `id="__next"`, `id="app"`, `data-reactroot`,
	`ng-version`, `data-v-app`, `id="___gatsby"`, `data-sveltekit`,
}

// Extractor parses fetched HTML into Pages.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract builds a Page from raw HTML. The only hard failure is an absent
// <body>; everything else degrades to empty fields.
func (e *Extractor) Extract(pageURL string, depth, statusCode, ttfbMillis int, body []byte) (*model.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	if doc.Find("body").Length() == 0 {
		return nil, eris.Errorf("extract: no body element in %s", pageURL)
	}

	page := &model.Page{
		URL:        pageURL,
		Depth:      depth,
		StatusCode: statusCode,
		TTFBMillis: ttfbMillis,
		HTTPS:      strings.HasPrefix(pageURL, "https://"),
	}

	// Schema objects come out before scripts are stripped: JSON-LD lives
	// in script tags.
	page.Schemas = extractSchemas(doc)

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	page.MetaDescription, _ = doc.Find(`meta[name="description"]`).Attr("content")
	page.MetaDescription = strings.TrimSpace(page.MetaDescription)

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		if tag, perr := language.Parse(lang); perr == nil {
			base, _ := tag.Base()
			page.Language = base.String()
		}
	}

	rawHTML := string(body)
	for _, marker := range frameworkMarkers {
		if strings.Contains(rawHTML, marker) {
			page.FrameworkShell = true
			break
		}
	}

	page.Headings = extractHeadings(doc)
	page.Links = extractPageLinks(doc, pageURL)
	page.Images = extractImages(doc)
	page.Author = extractAuthor(doc, page.Schemas)
	page.ModifiedAt = extractModifiedDate(doc, page.Schemas)

	// Strip non-content elements, then pull the main block's text.
	doc.Find("script, style, noscript, iframe, svg").Remove()
	main := mainContent(doc)
	page.ExtractedText = cleanText(main.Text())

	sum := sha256.Sum256([]byte(page.ExtractedText))
	page.ContentHash = hex.EncodeToString(sum[:])

	// Framework shell only counts against the page when nothing survived
	// extraction.
	if page.FrameworkShell && len(page.ExtractedText) >= 100 {
		page.FrameworkShell = false
	}

	return page, nil
}

// mainContent picks <article>, then <main>, then the densest text block.
func mainContent(doc *goquery.Document) *goquery.Selection {
	if s := doc.Find("article").First(); s.Length() > 0 && len(strings.TrimSpace(s.Text())) > 0 {
		return s
	}
	if s := doc.Find("main").First(); s.Length() > 0 && len(strings.TrimSpace(s.Text())) > 0 {
		return s
	}

	// Densest direct block: longest text among section/div candidates once
	// chrome (nav, header, footer, aside) is discounted.
	body := doc.Find("body").First()
	body.Find("nav, header, footer, aside").Remove()

	best := body
	bestLen := len(strings.TrimSpace(body.Text()))
	body.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		l := len(strings.TrimSpace(s.Text()))
		// Prefer a nested block when it holds nearly all of the parent's
		// text; it excludes more boilerplate.
		if l > bestLen*7/10 && l < bestLen {
			best = s
			bestLen = l
		}
	})
	return best
}

func extractHeadings(doc *goquery.Document) []model.Heading {
	var headings []model.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level := int(s.Get(0).Data[1] - '0')
		headings = append(headings, model.Heading{Level: level, Text: text})
	})
	return headings
}

func extractPageLinks(doc *goquery.Document, pageURL string) model.PageLinks {
	var links model.PageLinks
	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		ref, perr := url.Parse(href)
		if perr != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		u := abs.String()
		if seen[u] {
			return
		}
		seen[u] = true
		if crawler.SameSite(abs.Host, base.Host) {
			links.Internal = append(links.Internal, u)
		} else {
			links.External = append(links.External, u)
		}
	})
	return links
}

func extractImages(doc *goquery.Document) []model.Image {
	var images []model.Image
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, model.Image{Src: src, Alt: strings.TrimSpace(alt)})
	})
	return images
}

// extractAuthor tries schema author, then rel=author / .author elements,
// then a visible "By Firstname Lastname" byline.
func extractAuthor(doc *goquery.Document, schemas []model.SchemaObject) string {
	for _, so := range schemas {
		if author, ok := so.Properties["author"]; ok {
			switch a := author.(type) {
			case string:
				return a
			case map[string]any:
				if name, ok := a["name"].(string); ok {
					return name
				}
			}
		}
	}

	if meta, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok && strings.TrimSpace(meta) != "" {
		return strings.TrimSpace(meta)
	}
	if s := doc.Find(`[rel="author"], .author, .byline, [itemprop="author"]`).First(); s.Length() > 0 {
		if text := strings.TrimSpace(s.Text()); text != "" && len(text) < 80 {
			return strings.TrimPrefix(strings.TrimPrefix(text, "By "), "by ")
		}
	}

	if m := bylineRe.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		return m[1]
	}
	return ""
}

// extractModifiedDate tries schema dateModified, then an <time datetime>
// attribute, then visible "Updated ..." text.
func extractModifiedDate(doc *goquery.Document, schemas []model.SchemaObject) *time.Time {
	for _, so := range schemas {
		if dm, ok := so.Properties["dateModified"].(string); ok {
			if t := parseDate(dm); t != nil {
				return t
			}
		}
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t := parseDate(dt); t != nil {
			return t
		}
	}
	if m := updatedRe.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		if t := parseDate(m[1]); t != nil {
			return t
		}
	}
	return nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimSuffix(s, ","))
	for _, layout := range []string{
		time.RFC3339, "2006-01-02", "January 2, 2006", "January 2 2006", "Jan 2, 2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(lines[i], " "))
	}
	out := strings.Join(lines, "\n")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
