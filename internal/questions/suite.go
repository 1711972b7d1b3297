// Package questions assembles the simulation question suite for a run:
// fifteen universal templates, up to five questions derived from site
// metadata, and up to five caller-supplied custom questions.
package questions

import (
	"fmt"
	"strings"

	"github.com/findable-hq/findable/internal/model"
)

const (
	maxDerived = 5
	maxCustom  = 5
)

type template struct {
	text       string
	category   model.QuestionCategory
	difficulty int
	weight     float64
	signals    []string
}

// universal covers what a buyer asks an answer engine about any company.
// {brand} is replaced with the site's brand token.
var universal = []template{
	{"What does {brand} do?", model.CategoryIdentity, 1, 1.5, nil},
	{"What products or services does {brand} offer?", model.CategoryOffering, 1, 1.5, nil},
	{"Who is {brand} for?", model.CategoryIdentity, 2, 1.0, nil},
	{"How much does {brand} cost?", model.CategoryPricing, 2, 1.5, []string{"pricing"}},
	{"Does {brand} offer a free trial or free plan?", model.CategoryPricing, 2, 1.0, []string{"pricing"}},
	{"How do I contact {brand}?", model.CategoryContact, 1, 1.0, []string{"email", "phone"}},
	{"Where is {brand} located?", model.CategoryContact, 2, 0.8, []string{"address"}},
	{"Is {brand} legitimate and trustworthy?", model.CategoryTrust, 3, 1.2, []string{"testimonial", "social_proof"}},
	{"What do customers say about {brand}?", model.CategoryTrust, 3, 1.0, []string{"testimonial"}},
	{"How is {brand} different from its competitors?", model.CategoryComparison, 3, 1.2, nil},
	{"What integrations does {brand} support?", model.CategoryOffering, 2, 0.8, []string{"integration"}},
	{"How do I get started with {brand}?", model.CategoryHowTo, 2, 1.0, nil},
	{"Does {brand} have customer support?", model.CategoryContact, 2, 0.8, []string{"email", "phone"}},
	{"What industries does {brand} serve?", model.CategoryOffering, 2, 0.8, nil},
	{"Who founded {brand} and when?", model.CategoryTrust, 3, 0.8, []string{"founding_year"}},
}

// SiteSignals summarizes the crawl metadata that drives derived
// questions. Built once from the run's pages before simulation.
type SiteSignals struct {
	HasPricingPage bool
	HasFAQ         bool
	HasOrgSchema   bool
	HasBlog        bool
	HasContactPage bool
}

// ObserveSignals derives SiteSignals from crawled pages.
func ObserveSignals(pages []model.Page) SiteSignals {
	var s SiteSignals
	for i := range pages {
		p := &pages[i]
		path := strings.ToLower(pathOf(p.URL))
		switch {
		case strings.Contains(path, "/pricing") || strings.Contains(path, "/plans"):
			s.HasPricingPage = true
		case strings.Contains(path, "/faq"):
			s.HasFAQ = true
		case strings.Contains(path, "/blog") || strings.Contains(path, "/articles") || strings.Contains(path, "/insights"):
			s.HasBlog = true
		case strings.Contains(path, "/contact"):
			s.HasContactPage = true
		}
		for _, so := range p.Schemas {
			switch so.Type {
			case "FAQPage":
				s.HasFAQ = true
			case "Organization":
				s.HasOrgSchema = true
			}
		}
	}
	return s
}

func pathOf(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
	}
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		return raw[i:]
	}
	return "/"
}

// Custom is one caller-supplied question, loaded from config or the
// custom-questions YAML file.
type Custom struct {
	Text            string   `yaml:"text" json:"text"`
	ExpectedSignals []string `yaml:"expected_signals" json:"expected_signals,omitempty"`
}

// Build assembles the full suite in deterministic order: universal,
// derived, custom. Question IDs are positional and stable given the same
// site metadata, which calibration relies on to join samples across runs.
func Build(site model.Site, signals SiteSignals, custom []Custom) []model.Question {
	brand := Brand(site.Domain)

	out := make([]model.Question, 0, len(universal)+maxDerived+maxCustom)
	for i, t := range universal {
		out = append(out, model.Question{
			ID:              fmt.Sprintf("u%02d", i+1),
			Source:          model.QuestionSourceUniversal,
			Text:            strings.ReplaceAll(t.text, "{brand}", brand),
			Category:        t.category,
			Difficulty:      t.difficulty,
			Weight:          t.weight,
			ExpectedSignals: t.signals,
		})
	}

	for i, t := range derive(brand, signals) {
		if i >= maxDerived {
			break
		}
		t.ID = fmt.Sprintf("d%02d", i+1)
		out = append(out, t)
	}

	for i, c := range custom {
		if i >= maxCustom {
			break
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out = append(out, model.Question{
			ID:              fmt.Sprintf("c%02d", i+1),
			Source:          model.QuestionSourceCustom,
			Text:            strings.ReplaceAll(text, "{brand}", brand),
			Category:        model.CategoryCustom,
			Difficulty:      2,
			Weight:          1.0,
			ExpectedSignals: c.ExpectedSignals,
		})
	}

	return out
}

// derive emits metadata-conditional questions in a fixed order so the
// suite is stable for identical crawl metadata.
func derive(brand string, s SiteSignals) []model.Question {
	var out []model.Question
	if s.HasPricingPage {
		out = append(out, model.Question{
			Source:          model.QuestionSourceDerived,
			Text:            fmt.Sprintf("What pricing plans does %s offer and what is included in each?", brand),
			Category:        model.CategoryPricing,
			Difficulty:      2,
			Weight:          1.2,
			ExpectedSignals: []string{"pricing"},
		})
	}
	if s.HasFAQ {
		out = append(out, model.Question{
			Source:     model.QuestionSourceDerived,
			Text:       fmt.Sprintf("What are the most common questions about %s?", brand),
			Category:   model.CategoryHowTo,
			Difficulty: 1,
			Weight:     0.8,
		})
	}
	if s.HasOrgSchema {
		out = append(out, model.Question{
			Source:          model.QuestionSourceDerived,
			Text:            fmt.Sprintf("When was %s founded and who runs it?", brand),
			Category:        model.CategoryTrust,
			Difficulty:      3,
			Weight:          0.8,
			ExpectedSignals: []string{"founding_year"},
		})
	}
	if s.HasBlog {
		out = append(out, model.Question{
			Source:     model.QuestionSourceDerived,
			Text:       fmt.Sprintf("What expertise does %s have in its field?", brand),
			Category:   model.CategoryTrust,
			Difficulty: 3,
			Weight:     0.8,
		})
	}
	if s.HasContactPage {
		out = append(out, model.Question{
			Source:          model.QuestionSourceDerived,
			Text:            fmt.Sprintf("How do I reach %s support and what are their hours?", brand),
			Category:        model.CategoryContact,
			Difficulty:      2,
			Weight:          0.8,
			ExpectedSignals: []string{"email", "phone"},
		})
	}
	return out
}

// Brand turns "www.acme-corp.com" into "Acme Corp".
func Brand(domain string) string {
	host := strings.ToLower(strings.TrimSpace(domain))
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	words := strings.FieldsFunc(host, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return domain
	}
	return strings.Join(words, " ")
}
