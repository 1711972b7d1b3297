package model

// Effort estimates the operator work required for a fix.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Fix reason codes. Each code maps to one fix template; fixes are
// deduplicated per run by reason code.
const (
	ReasonRobotsBlocksAI      = "robots_blocks_ai"
	ReasonSlowTTFB            = "slow_ttfb"
	ReasonMissingLLMSTxt      = "missing_llms_txt"
	ReasonJSOnlyContent       = "js_only_content"
	ReasonNoHTTPS             = "no_https"
	ReasonEmptyShell          = "empty_shell"
	ReasonHeadingHierarchy    = "heading_hierarchy"
	ReasonNoAnswerBlock       = "no_answer_block"
	ReasonLowReadability      = "low_readability"
	ReasonNoFAQ               = "no_faq"
	ReasonLinkDensity         = "link_density"
	ReasonNoExtractableFormat = "no_extractable_format"
	ReasonMissingFAQSchema    = "missing_faq_schema"
	ReasonMissingArticleSchema = "missing_article_schema"
	ReasonMissingDateModified = "missing_date_modified"
	ReasonMissingOrgSchema    = "missing_org_schema"
	ReasonSchemaErrors        = "schema_errors"
	ReasonNoAuthorBylines     = "no_author_bylines"
	ReasonNoCredentials       = "no_credentials"
	ReasonNoCitations         = "no_citations"
	ReasonStaleContent        = "stale_content"
	ReasonNoOriginalData      = "no_original_data"
	ReasonUnansweredQuestion  = "unanswered_question"
	ReasonSiteInaccessible    = "site_inaccessible"
)

// Fix is one prioritized, templated remediation.
type Fix struct {
	ReasonCode            string  `json:"reason_code"`
	Title                 string  `json:"title"`
	Explanation           string  `json:"explanation"`
	Scaffold              string  `json:"scaffold,omitempty"`
	TargetURL             string  `json:"target_url,omitempty"`
	Priority              int     `json:"priority"` // 1 (highest) to 5
	Effort                Effort  `json:"effort"`
	EstimatedImpactPoints float64 `json:"estimated_impact_points"`
	AffectedPillar        Pillar  `json:"affected_pillar"`
}

// ActionCenter groups fixes for presentation.
type ActionCenter struct {
	QuickWins    []Fix            `json:"quick_wins,omitempty"`
	HighPriority []Fix            `json:"high_priority,omitempty"`
	ByCategory   map[Pillar][]Fix `json:"by_category,omitempty"`
}
