package model

import "time"

// Heading is a single document heading with its level (1-6).
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// SchemaObject is a structured-data object found on a page (JSON-LD or
// microdata). Invalid objects are kept with Valid=false so the schema
// pillar can penalize validation errors.
type SchemaObject struct {
	Type       string         `json:"type"`
	Format     string         `json:"format"` // "json-ld" or "microdata"
	Valid      bool           `json:"valid"`
	Errors     []string       `json:"errors,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// PageLinks holds links categorized by destination.
type PageLinks struct {
	Internal []string `json:"internal"`
	External []string `json:"external"`
}

// Image holds image metadata relevant to extractability scoring.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Page is a fetched and extracted page. Written once per successful fetch;
// immutable afterwards.
type Page struct {
	ID              string         `json:"id"`
	RunID           string         `json:"run_id"`
	URL             string         `json:"url"`
	FinalURL        string         `json:"final_url,omitempty"`
	Depth           int            `json:"depth"`
	StatusCode      int            `json:"status_code"`
	Title           string         `json:"title"`
	MetaDescription string         `json:"meta_description,omitempty"`
	Language        string         `json:"language,omitempty"`
	ExtractedText   string         `json:"extracted_text"`
	Headings        []Heading      `json:"headings,omitempty"`
	Schemas         []SchemaObject `json:"schemas,omitempty"`
	Links           PageLinks      `json:"links"`
	Author          string         `json:"author,omitempty"`
	Images          []Image        `json:"images,omitempty"`
	ModifiedAt      *time.Time     `json:"modified_at,omitempty"`
	TTFBMillis      int            `json:"ttfb_ms"`
	ContentHash     string         `json:"content_hash"`
	HTTPS           bool           `json:"https"`
	FrameworkShell  bool           `json:"framework_shell"`
	FetchError      string         `json:"fetch_error,omitempty"`
}

// Outline returns the ordered heading texts, used to validate that chunk
// heading paths are prefix-consistent with the page hierarchy.
func (p *Page) Outline() []string {
	out := make([]string, 0, len(p.Headings))
	for _, h := range p.Headings {
		out = append(out, h.Text)
	}
	return out
}

// WordCount returns the number of whitespace-separated words in the
// extracted text.
func (p *Page) WordCount() int {
	n := 0
	inWord := false
	for _, r := range p.ExtractedText {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
