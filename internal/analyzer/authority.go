package analyzer

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/findable-hq/findable/internal/model"
)

const freshnessHorizonDays = 730 // two years

var credentialRe = regexp.MustCompile(`(?i)\b(?:Ph\.?D|M\.?D\.|MBA|CPA|CFA|J\.?D\.|RN|PE|Dr\.\s+[A-Z]|Professor|Director\s+of|Head\s+of|Chief\s+[A-Za-z]+\s+Officer|VP\s+of|(?:Senior|Lead|Principal)\s+(?:Engineer|Scientist|Analyst|Consultant))\b`)

var originalDataRe = regexp.MustCompile(`(?i)\b(?:we\s+surveyed|our\s+(?:analysis|research|study|data|survey|benchmark)|we\s+(?:analyzed|measured|tested|interviewed|collected)|based\s+on\s+our)\b`)

// authoritativeDomains are citation targets that signal primary-source
// grounding. Suffix matching covers subdomains.
var authoritativeDomains = []string{
	".gov", ".edu", "wikipedia.org", "nature.com", "science.org",
	"nih.gov", "ieee.org", "acm.org", "reuters.com", "apnews.com",
}

// analyzeAuthority scores trust signals: bylines, credentials, citations
// to primary sources, freshness, and original data.
func analyzeAuthority(in *Input) model.PillarScore {
	pages := contentPages(in.Pages)
	var issues []model.Issue

	var bylines, credentials, cited, originalData int
	var freshnessSum float64
	var freshnessN int
	now := time.Now()

	for _, p := range pages {
		if p.Author != "" {
			bylines++
		}
		if credentialRe.MatchString(p.ExtractedText) {
			credentials++
		}
		if citesAuthoritative(p.Links.External) {
			cited++
		}
		if originalDataRe.MatchString(p.ExtractedText) {
			originalData++
		}
		if p.ModifiedAt != nil {
			days := now.Sub(*p.ModifiedAt).Hours() / 24
			f := 100 * (1 - days/freshnessHorizonDays)
			if f < 0 {
				f = 0
			}
			if f > 100 {
				f = 100
			}
			freshnessSum += f
			freshnessN++
		}
	}

	freshnessScore := 0.0
	if freshnessN > 0 {
		freshnessScore = freshnessSum / float64(freshnessN)
	}

	if len(pages) > 0 && bylines == 0 {
		issues = append(issues, model.Issue{
			Code:    "no_bylines",
			Level:   model.LevelPartial,
			Message: "no author bylines found; attributed content carries more weight with AI systems",
		})
	}
	if freshnessN == 0 {
		issues = append(issues, model.Issue{
			Code:    "no_dates",
			Level:   model.LevelPartial,
			Message: "no modification dates found; undated content reads as stale to answer engines",
		})
	}

	components := []model.ComponentScore{
		{Name: "author_bylines", Raw: ratio100(bylines, len(pages)), Weight: 27},
		{Name: "credentials", Raw: ratio100(credentials, len(pages)), Weight: 20},
		{Name: "primary_citations", Raw: ratio100(cited, len(pages)), Weight: 20},
		{Name: "freshness", Raw: freshnessScore, Weight: 20},
		{Name: "original_data", Raw: ratio100(originalData, len(pages)), Weight: 13},
	}
	return model.NewPillarScore(in.RunID, model.PillarAuthority, components, issues)
}

func citesAuthoritative(external []string) bool {
	for _, raw := range external {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Host)
		for _, d := range authoritativeDomains {
			if strings.HasSuffix(host, d) {
				return true
			}
		}
	}
	return false
}
