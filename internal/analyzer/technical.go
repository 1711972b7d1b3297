package analyzer

import (
	"fmt"

	"github.com/findable-hq/findable/internal/model"
)

const (
	ttfbWorstMillis = 1500
	shellPenalty    = 0.4 // multiplier applied when most pages are empty shells
)

// analyzeTechnical scores crawler accessibility: robots policy for AI and
// search bots, latency, llms.txt, JS dependence, and transport.
func analyzeTechnical(in *Input) model.PillarScore {
	pages := contentPages(in.Pages)
	var issues []model.Issue

	robotsScore := 100.0
	if in.Robots != nil {
		robotsScore = in.Robots.Combined
		if len(in.Robots.BlockedAIBots) > 0 && in.Robots.SearchIndexed >= 80 {
			issues = append(issues, model.Issue{
				Code:  "robots_ai_blocked_search_open",
				Level: model.LevelPartial,
				Message: fmt.Sprintf(
					"AI crawlers are blocked (%v) but search bots can index the site, so AI systems still see it indirectly through search results",
					in.Robots.BlockedAIBots),
			})
		} else if len(in.Robots.BlockedAIBots) > 0 {
			issues = append(issues, model.Issue{
				Code:    "robots_ai_blocked",
				Level:   model.LevelLimited,
				Message: fmt.Sprintf("robots.txt blocks AI crawlers: %v", in.Robots.BlockedAIBots),
			})
		}
	}

	var ttfbs []float64
	for _, p := range pages {
		if p.TTFBMillis > 0 {
			ttfbs = append(ttfbs, float64(p.TTFBMillis))
		}
	}
	ttfbScore := 0.0
	if len(ttfbs) > 0 {
		m := median(ttfbs)
		ttfbScore = 100 * (1 - m/ttfbWorstMillis)
		if ttfbScore < 0 {
			ttfbScore = 0
		}
		if m > 1000 {
			issues = append(issues, model.Issue{
				Code:    "slow_ttfb",
				Level:   model.LevelLimited,
				Message: fmt.Sprintf("median time to first byte is %.0fms; AI crawlers deprioritize slow origins", m),
			})
		}
	}

	llmsScore := 0.0
	switch {
	case in.LLMSTxt.Present && in.LLMSTxt.Structured:
		llmsScore = 100
	case in.LLMSTxt.Present:
		llmsScore = 70
	default:
		issues = append(issues, model.Issue{
			Code:    "llms_txt_missing",
			Level:   model.LevelPartial,
			Message: "no /llms.txt found; it is the cheapest way to hand AI crawlers a curated map of the site",
		})
	}

	shells := 0
	for _, p := range pages {
		if p.FrameworkShell {
			shells++
		}
	}
	nonJSScore := 100.0
	if len(pages) > 0 {
		nonJSScore = 100 * float64(len(pages)-shells) / float64(len(pages))
	}

	httpsCount := 0
	for _, p := range pages {
		if p.HTTPS {
			httpsCount++
		}
	}
	httpsScore := ratio100(httpsCount, len(pages))

	components := []model.ComponentScore{
		{Name: "robots_ai_access", Raw: robotsScore, Weight: 35},
		{Name: "ttfb", Raw: ttfbScore, Weight: 30},
		{Name: "llms_txt", Raw: llmsScore, Weight: 15},
		{Name: "non_js_content", Raw: nonJSScore, Weight: 10},
		{Name: "https", Raw: httpsScore, Weight: 10},
	}
	ps := model.NewPillarScore(in.RunID, model.PillarTechnical, components, issues)

	// Empty shells make every other technical win moot: a crawler that
	// sees no text has nothing to cite.
	if len(pages) > 0 && float64(shells)/float64(len(pages)) >= 0.5 {
		ps.Raw *= shellPenalty
		ps.Level = model.LevelForScore(ps.Raw)
		ps.Issues = append(ps.Issues, model.Issue{
			Code:    "framework_shell",
			Level:   model.LevelLimited,
			Message: "most pages render as empty framework shells; AI crawlers see almost no content without server-side rendering",
		})
	}
	return ps
}
