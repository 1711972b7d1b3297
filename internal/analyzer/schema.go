package analyzer

import (
	"github.com/findable-hq/findable/internal/model"
)

// analyzeSchema scores structured-data coverage. Components reward the
// schema types answer engines actually consume, plus clean validation.
func analyzeSchema(in *Input) model.PillarScore {
	var (
		hasFAQ, hasArticleAuthor, hasDateModified, hasOrg, hasHowTo bool
		total, valid                                                int
	)

	for i := range in.Pages {
		for _, so := range in.Pages[i].Schemas {
			total++
			if so.Valid {
				valid++
			}
			switch so.Type {
			case "FAQPage":
				hasFAQ = true
			case "Article", "BlogPosting", "NewsArticle":
				if _, ok := so.Properties["author"]; ok {
					hasArticleAuthor = true
				}
				if _, ok := so.Properties["dateModified"]; ok {
					hasDateModified = true
				}
			case "Organization":
				hasOrg = true
			case "HowTo":
				hasHowTo = true
			}
			if _, ok := so.Properties["dateModified"]; ok {
				hasDateModified = true
			}
		}
	}

	boolScore := func(b bool) float64 {
		if b {
			return 100
		}
		return 0
	}
	validationScore := 0.0
	if total > 0 {
		validationScore = ratio100(valid, total)
	}

	var issues []model.Issue
	if total == 0 {
		issues = append(issues, model.Issue{
			Code:    "no_schema",
			Level:   model.LevelLimited,
			Message: "no structured data found; schema markup is how AI systems confirm what a page is about",
		})
	} else if !hasFAQ {
		issues = append(issues, model.Issue{
			Code:    "no_faqpage_schema",
			Level:   model.LevelPartial,
			Message: "no FAQPage schema; FAQ markup is the highest-yield schema type for AI citation",
		})
	}
	if total > valid {
		issues = append(issues, model.Issue{
			Code:    "schema_validation_errors",
			Level:   model.LevelPartial,
			Message: "some structured data objects fail validation and will be ignored by consumers",
		})
	}

	components := []model.ComponentScore{
		{Name: "faqpage", Raw: boolScore(hasFAQ), Weight: 27},
		{Name: "article_author", Raw: boolScore(hasArticleAuthor), Weight: 20},
		{Name: "date_modified", Raw: boolScore(hasDateModified), Weight: 20},
		{Name: "organization", Raw: boolScore(hasOrg), Weight: 13},
		{Name: "howto", Raw: boolScore(hasHowTo), Weight: 13},
		{Name: "validation", Raw: validationScore, Weight: 7},
	}
	return model.NewPillarScore(in.RunID, model.PillarSchema, components, issues)
}
