// Package fix turns pillar findings and unanswered questions into a
// prioritized, deduplicated remediation plan.
package fix

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
)

const (
	diminishingFactor = 0.8
	totalImpactCap    = 30
	quickWinMinImpact = 3
)

// componentReasons maps a failing pillar component to its fix reason.
var componentReasons = map[model.Pillar]map[string]string{
	model.PillarTechnical: {
		"robots_ai_access": model.ReasonRobotsBlocksAI,
		"ttfb":             model.ReasonSlowTTFB,
		"llms_txt":         model.ReasonMissingLLMSTxt,
		"non_js_content":   model.ReasonJSOnlyContent,
		"https":            model.ReasonNoHTTPS,
	},
	model.PillarStructure: {
		"heading_hierarchy":     model.ReasonHeadingHierarchy,
		"ai_answer_block":       model.ReasonNoAnswerBlock,
		"readability":           model.ReasonLowReadability,
		"faq_presence":          model.ReasonNoFAQ,
		"internal_link_density": model.ReasonLinkDensity,
		"extractable_formats":   model.ReasonNoExtractableFormat,
	},
	model.PillarSchema: {
		"faqpage":        model.ReasonMissingFAQSchema,
		"article_author": model.ReasonMissingArticleSchema,
		"date_modified":  model.ReasonMissingDateModified,
		"organization":   model.ReasonMissingOrgSchema,
		"validation":     model.ReasonSchemaErrors,
	},
	model.PillarAuthority: {
		"author_bylines":    model.ReasonNoAuthorBylines,
		"credentials":       model.ReasonNoCredentials,
		"primary_citations": model.ReasonNoCitations,
		"freshness":         model.ReasonStaleContent,
		"original_data":     model.ReasonNoOriginalData,
	},
}

// failingComponentThreshold: a component below this raw score generates
// its fix.
const failingComponentThreshold = 50

// Generate builds the fix list and Action Center for a run. Fixes are
// deduplicated by reason code, ordered by priority then impact, and
// impact estimates decay down the list to reflect that fixes overlap.
func Generate(pillars []model.PillarScore, questions []model.Question, sim []model.SimResult) ([]model.Fix, model.ActionCenter) {
	seen := make(map[string]bool)
	var fixes []model.Fix

	add := func(reason string, targetURL, detail string) {
		if seen[reason] {
			return
		}
		t, ok := templates[reason]
		if !ok {
			zap.L().Warn("fix: no template for reason", zap.String("reason", reason))
			return
		}
		seen[reason] = true
		f := model.Fix{
			ReasonCode:            reason,
			Title:                 t.title,
			Explanation:           t.explanation,
			Scaffold:              t.scaffold,
			TargetURL:             targetURL,
			Priority:              t.priority,
			Effort:                t.effort,
			EstimatedImpactPoints: impactTable[reason],
			AffectedPillar:        t.pillar,
		}
		if detail != "" {
			f.Explanation += " " + detail
		}
		fixes = append(fixes, f)
	}

	for _, ps := range pillars {
		reasons := componentReasons[ps.Pillar]
		for _, issue := range ps.Issues {
			if issue.Code == "framework_shell" {
				add(model.ReasonEmptyShell, "", "")
			}
		}
		for _, comp := range ps.Components {
			if comp.Raw >= failingComponentThreshold {
				continue
			}
			if reason, ok := reasons[comp.Name]; ok {
				add(reason, "", "")
			}
		}
	}

	// One coverage fix covering the unanswered questions, with the
	// concrete questions folded into the explanation.
	if unanswered := unansweredTexts(questions, sim); len(unanswered) > 0 {
		detail := fmt.Sprintf("Unanswered: %s.", strings.Join(unanswered, "; "))
		add(model.ReasonUnansweredQuestion, "", detail)
	}

	sort.SliceStable(fixes, func(i, j int) bool {
		if fixes[i].Priority != fixes[j].Priority {
			return fixes[i].Priority < fixes[j].Priority
		}
		return fixes[i].EstimatedImpactPoints > fixes[j].EstimatedImpactPoints
	})

	applyDiminishingReturns(fixes)
	return fixes, buildActionCenter(fixes)
}

// ZeroPages returns the single diagnostic plan for a run where nothing
// could be crawled.
func ZeroPages() ([]model.Fix, model.ActionCenter) {
	t := templates[model.ReasonSiteInaccessible]
	fixes := []model.Fix{{
		ReasonCode:            model.ReasonSiteInaccessible,
		Title:                 t.title,
		Explanation:           t.explanation,
		Priority:              t.priority,
		Effort:                t.effort,
		EstimatedImpactPoints: impactTable[model.ReasonSiteInaccessible],
		AffectedPillar:        t.pillar,
	}}
	return fixes, buildActionCenter(fixes)
}

func unansweredTexts(questions []model.Question, sim []model.SimResult) []string {
	byID := make(map[string]string, len(questions))
	for _, q := range questions {
		byID[q.ID] = q.Text
	}
	var out []string
	for _, r := range sim {
		if r.Answerability != model.Unanswered {
			continue
		}
		if text, ok := byID[r.QuestionID]; ok {
			out = append(out, text)
		}
		if len(out) == 5 {
			break
		}
	}
	return out
}

// applyDiminishingReturns decays impact down the ordered list (second
// fix x0.8, third x0.64, ...) and caps the plan's total at 30 points.
func applyDiminishingReturns(fixes []model.Fix) {
	factor := 1.0
	total := 0.0
	for i := range fixes {
		impact := fixes[i].EstimatedImpactPoints * factor
		if total+impact > totalImpactCap {
			impact = totalImpactCap - total
			if impact < 0 {
				impact = 0
			}
		}
		fixes[i].EstimatedImpactPoints = round1(impact)
		total += impact
		factor *= diminishingFactor
	}
}

func buildActionCenter(fixes []model.Fix) model.ActionCenter {
	ac := model.ActionCenter{ByCategory: make(map[model.Pillar][]model.Fix)}
	for _, f := range fixes {
		if f.Effort == model.EffortLow && f.EstimatedImpactPoints >= quickWinMinImpact {
			ac.QuickWins = append(ac.QuickWins, f)
		}
		if f.Priority == 1 {
			ac.HighPriority = append(ac.HighPriority, f)
		}
		ac.ByCategory[f.AffectedPillar] = append(ac.ByCategory[f.AffectedPillar], f)
	}
	return ac
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
