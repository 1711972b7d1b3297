package analyzer

import (
	"strings"

	"github.com/findable-hq/findable/internal/model"
)

// analyzeStructure scores how extractable the content layout is: heading
// hierarchy, answer-first writing, readability, FAQ coverage, linking,
// and machine-friendly formats.
func analyzeStructure(in *Input) model.PillarScore {
	pages := contentPages(in.Pages)
	var issues []model.Issue

	var validHierarchy, answerFirst, answerBlock, readable int
	for _, p := range pages {
		if validHeadingHierarchy(p.Headings) {
			validHierarchy++
		}
		if hasAnswerFirst(p) {
			answerFirst++
		}
		if hasAIAnswerBlock(p) {
			answerBlock++
		}
		if isReadable(p.ExtractedText) {
			readable++
		}
	}
	if len(pages) > 0 && validHierarchy == 0 {
		issues = append(issues, model.Issue{
			Code:    "heading_hierarchy",
			Level:   model.LevelLimited,
			Message: "no page has a valid heading hierarchy (single H1, no skipped levels)",
		})
	}

	faqScore := faqPresence(in)
	if faqScore == 0 {
		issues = append(issues, model.Issue{
			Code:    "no_faq",
			Level:   model.LevelPartial,
			Message: "no FAQ content found; question-formatted sections map directly onto how users ask AI systems",
		})
	}

	linkScore := internalLinkDensity(pages)
	formatScore := extractableFormats(in, pages)

	components := []model.ComponentScore{
		{Name: "heading_hierarchy", Raw: ratio100(validHierarchy, len(pages)), Weight: 20},
		{Name: "answer_first", Raw: ratio100(answerFirst, len(pages)), Weight: 15},
		{Name: "ai_answer_block", Raw: ratio100(answerBlock, len(pages)), Weight: 15},
		{Name: "readability", Raw: ratio100(readable, len(pages)), Weight: 15},
		{Name: "faq_presence", Raw: faqScore, Weight: 15},
		{Name: "internal_link_density", Raw: linkScore, Weight: 10},
		{Name: "extractable_formats", Raw: formatScore, Weight: 10},
	}
	return model.NewPillarScore(in.RunID, model.PillarStructure, components, issues)
}

// validHeadingHierarchy wants exactly one H1 and no level skipping on the
// way down (H2 before H4, never H2 straight to H4).
func validHeadingHierarchy(headings []model.Heading) bool {
	h1s := 0
	prev := 0
	for _, h := range headings {
		if h.Level == 1 {
			h1s++
		}
		if prev > 0 && h.Level > prev+1 {
			return false
		}
		prev = h.Level
	}
	return h1s == 1
}

// hasAnswerFirst checks the opening paragraph is a direct statement, not
// a hero fragment or a wall of text.
func hasAnswerFirst(p *model.Page) bool {
	first := firstParagraph(p.ExtractedText)
	words := len(strings.Fields(first))
	return words >= 10 && words <= 100
}

// hasAIAnswerBlock looks for a standalone 40-80 word paragraph right
// after the H1, the shape answer engines quote verbatim.
func hasAIAnswerBlock(p *model.Page) bool {
	var h1 string
	for _, h := range p.Headings {
		if h.Level == 1 {
			h1 = h.Text
			break
		}
	}
	if h1 == "" {
		return false
	}
	paras := strings.Split(p.ExtractedText, "\n\n")
	for i, para := range paras {
		if !strings.Contains(para, h1) {
			continue
		}
		if i+1 < len(paras) {
			words := len(strings.Fields(paras[i+1]))
			return words >= 40 && words <= 80
		}
		return false
	}
	// H1 not inline in the text stream: accept a qualifying opener.
	if len(paras) > 0 {
		words := len(strings.Fields(paras[0]))
		return words >= 40 && words <= 80
	}
	return false
}

// isReadable samples paragraphs for sentence and paragraph length limits.
func isReadable(text string) bool {
	paras := strings.Split(text, "\n\n")
	checked := 0
	passed := 0
	for _, para := range paras {
		words := strings.Fields(para)
		if len(words) < 15 {
			continue
		}
		checked++
		sentences := splitSentences(para)
		if len(words) > 150 {
			continue // wall of text
		}
		if len(sentences) > 4 {
			continue
		}
		avg := float64(len(words)) / float64(max(1, len(sentences)))
		if avg <= 20 {
			passed++
		}
	}
	if checked == 0 {
		return false
	}
	return float64(passed)/float64(checked) >= 0.5
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if len(s) > 1 {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); len(s) > 1 {
		out = append(out, s)
	}
	return out
}

func firstParagraph(text string) string {
	for _, para := range strings.Split(text, "\n\n") {
		if len(strings.Fields(para)) >= 5 {
			return para
		}
	}
	return ""
}

// faqPresence scores 100 for FAQPage schema or a dedicated FAQ page, 50
// for question-formatted headings, 0 otherwise.
func faqPresence(in *Input) float64 {
	questionHeadings := 0
	for i := range in.Pages {
		p := &in.Pages[i]
		for _, so := range p.Schemas {
			if so.Type == "FAQPage" {
				return 100
			}
		}
		if strings.Contains(strings.ToLower(p.URL), "/faq") {
			return 100
		}
		for _, h := range p.Headings {
			if strings.HasSuffix(strings.TrimSpace(h.Text), "?") {
				questionHeadings++
			}
		}
	}
	if questionHeadings >= 3 {
		return 50
	}
	return 0
}

// internalLinkDensity targets 5-10 internal links per page, with linear
// falloff on either side.
func internalLinkDensity(pages []*model.Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		n := float64(len(p.Links.Internal))
		switch {
		case n >= 5 && n <= 10:
			sum += 100
		case n < 5:
			sum += 100 * n / 5
		default:
			over := n - 10
			score := 100 - over*5
			if score < 0 {
				score = 0
			}
			sum += score
		}
	}
	return sum / float64(len(pages))
}

// extractableFormats counts pages carrying at least one list or table
// chunk.
func extractableFormats(in *Input, pages []*model.Page) float64 {
	withFormats := make(map[string]bool)
	for i := range in.Chunks {
		c := &in.Chunks[i]
		if c.Type == model.ChunkTypeList || c.Type == model.ChunkTypeTable {
			withFormats[c.PageID] = true
		}
	}
	return ratio100(len(withFormats), len(pages))
}
