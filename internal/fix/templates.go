package fix

import (
	"github.com/findable-hq/findable/internal/model"
)

// template is the static part of a fix; impact comes from the
// precomputed lookup table below.
type template struct {
	title       string
	explanation string
	scaffold    string
	priority    int
	effort      model.Effort
	pillar      model.Pillar
}

var templates = map[string]template{
	model.ReasonSiteInaccessible: {
		title:       "Make the site reachable by crawlers",
		explanation: "No pages could be crawled. The site appears inaccessible to crawlers: check DNS, TLS, robots.txt, and any bot-blocking middleware (WAF, CDN challenge pages).",
		priority:    1,
		effort:      model.EffortHigh,
		pillar:      model.PillarTechnical,
	},
	model.ReasonEmptyShell: {
		title:       "Implement server-side rendering",
		explanation: "Pages render as empty framework shells. AI crawlers do not execute JavaScript; without server-side rendering or prerendering they see no content at all.",
		priority:    1,
		effort:      model.EffortHigh,
		pillar:      model.PillarTechnical,
	},
	model.ReasonRobotsBlocksAI: {
		title:       "Allow AI crawlers in robots.txt",
		explanation: "robots.txt blocks one or more AI crawlers. Blocked bots cannot read the site directly, leaving only indirect visibility through search results.",
		scaffold:    "User-agent: GPTBot\nAllow: /\n\nUser-agent: ClaudeBot\nAllow: /\n\nUser-agent: PerplexityBot\nAllow: /\n",
		priority:    1,
		effort:      model.EffortLow,
		pillar:      model.PillarTechnical,
	},
	model.ReasonMissingLLMSTxt: {
		title:       "Publish an llms.txt file",
		explanation: "An llms.txt at the site root gives AI crawlers a curated map of the most important pages and what each covers.",
		scaffold:    "# [COMPANY_NAME]\n\n> [ONE_SENTENCE_DESCRIPTION]\n\n## Key pages\n\n- [About](/about): [WHAT_IT_COVERS]\n- [Pricing](/pricing): [WHAT_IT_COVERS]\n- [FAQ](/faq): [WHAT_IT_COVERS]\n",
		priority:    2,
		effort:      model.EffortLow,
		pillar:      model.PillarTechnical,
	},
	model.ReasonSlowTTFB: {
		title:       "Reduce time to first byte",
		explanation: "Median TTFB is high. Crawlers budget per-site fetch time; slow origins get fewer pages crawled and refreshed less often. Add caching or a CDN in front of the origin.",
		priority:    3,
		effort:      model.EffortMedium,
		pillar:      model.PillarTechnical,
	},
	model.ReasonJSOnlyContent: {
		title:       "Serve core content without JavaScript",
		explanation: "Significant content only appears after JavaScript runs. Move primary copy into the initial HTML response.",
		priority:    2,
		effort:      model.EffortHigh,
		pillar:      model.PillarTechnical,
	},
	model.ReasonNoHTTPS: {
		title:       "Serve all pages over HTTPS",
		explanation: "Some pages are served over plain HTTP. Crawlers treat non-HTTPS content as lower trust.",
		priority:    2,
		effort:      model.EffortMedium,
		pillar:      model.PillarTechnical,
	},
	model.ReasonHeadingHierarchy: {
		title:       "Fix the heading hierarchy",
		explanation: "Pages lack a single H1 or skip heading levels. A clean H1→H2→H3 outline is how extraction systems segment a page into answerable sections.",
		scaffold:    "<h1>[PAGE_TOPIC]</h1>\n<h2>[FIRST_SUBTOPIC]</h2>\n<h3>[DETAIL]</h3>\n",
		priority:    2,
		effort:      model.EffortMedium,
		pillar:      model.PillarStructure,
	},
	model.ReasonNoAnswerBlock: {
		title:       "Add an answer block after each H1",
		explanation: "Place a standalone 40-80 word paragraph directly after the H1 that answers the page's core question. This is the shape answer engines quote verbatim.",
		scaffold:    "[COMPANY_NAME] is [WHAT_IT_IS] that helps [AUDIENCE] [OUTCOME]. It [KEY_DIFFERENTIATOR]. Plans start at [PRICE], and [CALL_TO_ACTION].",
		priority:    2,
		effort:      model.EffortLow,
		pillar:      model.PillarStructure,
	},
	model.ReasonLowReadability: {
		title:       "Break up long paragraphs and sentences",
		explanation: "Keep paragraphs to four sentences and sentences near twenty words. Dense walls of text extract poorly.",
		priority:    4,
		effort:      model.EffortMedium,
		pillar:      model.PillarStructure,
	},
	model.ReasonNoFAQ: {
		title:       "Add an FAQ section",
		explanation: "FAQ content maps directly onto how users phrase questions to AI systems. Add a page or section with question-formatted headings and concise answers.",
		scaffold:    "## [QUESTION_USERS_ASK]?\n\n[DIRECT_ANSWER_IN_2_3_SENTENCES]\n",
		priority:    2,
		effort:      model.EffortLow,
		pillar:      model.PillarStructure,
	},
	model.ReasonLinkDensity: {
		title:       "Tune internal linking",
		explanation: "Aim for 5-10 internal links per page so crawlers can discover and relate the site's pages.",
		priority:    4,
		effort:      model.EffortLow,
		pillar:      model.PillarStructure,
	},
	model.ReasonNoExtractableFormat: {
		title:       "Use lists and tables for enumerable facts",
		explanation: "Pricing tiers, feature comparisons, and step sequences extract far better as tables and lists than as prose.",
		priority:    4,
		effort:      model.EffortLow,
		pillar:      model.PillarStructure,
	},
	model.ReasonMissingFAQSchema: {
		title:       "Add FAQPage schema",
		explanation: "FAQPage markup is the highest-yield schema type for AI citation. Mark up existing Q&A content with JSON-LD.",
		scaffold:    `{"@context":"https://schema.org","@type":"FAQPage","mainEntity":[{"@type":"Question","name":"[QUESTION]","acceptedAnswer":{"@type":"Answer","text":"[ANSWER]"}}]}`,
		priority:    2,
		effort:      model.EffortLow,
		pillar:      model.PillarSchema,
	},
	model.ReasonMissingArticleSchema: {
		title:       "Add Article schema with author",
		explanation: "Mark up articles with Article schema including the author property so content is attributable.",
		scaffold:    `{"@context":"https://schema.org","@type":"Article","headline":"[HEADLINE]","author":{"@type":"Person","name":"[AUTHOR_NAME]"},"dateModified":"[ISO_DATE]"}`,
		priority:    3,
		effort:      model.EffortLow,
		pillar:      model.PillarSchema,
	},
	model.ReasonMissingDateModified: {
		title:       "Expose dateModified in schema",
		explanation: "Publish dateModified so AI systems can judge freshness instead of assuming content is stale.",
		priority:    3,
		effort:      model.EffortLow,
		pillar:      model.PillarSchema,
	},
	model.ReasonMissingOrgSchema: {
		title:       "Add Organization schema",
		explanation: "Organization markup on the home page anchors the brand entity: name, logo, founding date, and official links.",
		scaffold:    `{"@context":"https://schema.org","@type":"Organization","name":"[COMPANY_NAME]","url":"[HOMEPAGE_URL]","logo":"[LOGO_URL]","foundingDate":"[YEAR]","sameAs":["[LINKEDIN_URL]","[X_URL]"]}`,
		priority:    3,
		effort:      model.EffortLow,
		pillar:      model.PillarSchema,
	},
	model.ReasonSchemaErrors: {
		title:       "Fix schema validation errors",
		explanation: "Some structured data objects fail validation and are ignored by consumers. Validate with the schema.org validator and fix required properties.",
		priority:    3,
		effort:      model.EffortLow,
		pillar:      model.PillarSchema,
	},
	model.ReasonNoAuthorBylines: {
		title:       "Add author bylines",
		explanation: "Attribute articles to named authors. Unattributed content carries less weight with answer engines.",
		priority:    3,
		effort:      model.EffortMedium,
		pillar:      model.PillarAuthority,
	},
	model.ReasonNoCredentials: {
		title:       "Surface author credentials",
		explanation: "Add titles, certifications, or short bios to author bylines so expertise is verifiable on the page.",
		priority:    4,
		effort:      model.EffortMedium,
		pillar:      model.PillarAuthority,
	},
	model.ReasonNoCitations: {
		title:       "Cite primary sources",
		explanation: "Link claims to authoritative sources (government, academic, standards bodies). Cited content is treated as grounded.",
		priority:    4,
		effort:      model.EffortMedium,
		pillar:      model.PillarAuthority,
	},
	model.ReasonStaleContent: {
		title:       "Refresh dated content",
		explanation: "Key pages have not been updated in a long time. Review and update them, and reflect the change in dateModified.",
		priority:    3,
		effort:      model.EffortMedium,
		pillar:      model.PillarAuthority,
	},
	model.ReasonNoOriginalData: {
		title:       "Publish original data or analysis",
		explanation: "First-party research (surveys, benchmarks, analyses) is what AI systems cite when they need a source no one else has.",
		priority:    5,
		effort:      model.EffortHigh,
		pillar:      model.PillarAuthority,
	},
	model.ReasonUnansweredQuestion: {
		title:       "Answer a question buyers ask",
		explanation: "The site could not answer a common buyer question. Add a section that addresses it directly, answer first.",
		scaffold:    "## [THE_QUESTION]?\n\n[DIRECT_ANSWER]. [ONE_SUPPORTING_DETAIL]. [WHERE_TO_LEARN_MORE].\n",
		priority:    2,
		effort:      model.EffortLow,
		pillar:      model.PillarCoverage,
	},
}

// impactTable is the precomputed per-reason impact estimate in total
// score points, derived from replaying historical audits with each fix
// class applied. Values are pre-diminishing-returns.
var impactTable = map[string]float64{
	model.ReasonSiteInaccessible:    30,
	model.ReasonEmptyShell:          12,
	model.ReasonRobotsBlocksAI:      8,
	model.ReasonMissingLLMSTxt:      3,
	model.ReasonSlowTTFB:            5,
	model.ReasonJSOnlyContent:       6,
	model.ReasonNoHTTPS:             2,
	model.ReasonHeadingHierarchy:    4,
	model.ReasonNoAnswerBlock:       5,
	model.ReasonLowReadability:      3,
	model.ReasonNoFAQ:               5,
	model.ReasonLinkDensity:         2,
	model.ReasonNoExtractableFormat: 2,
	model.ReasonMissingFAQSchema:    6,
	model.ReasonMissingArticleSchema: 3,
	model.ReasonMissingDateModified: 3,
	model.ReasonMissingOrgSchema:    2,
	model.ReasonSchemaErrors:        2,
	model.ReasonNoAuthorBylines:     4,
	model.ReasonNoCredentials:       2,
	model.ReasonNoCitations:         2,
	model.ReasonStaleContent:        3,
	model.ReasonNoOriginalData:      2,
	model.ReasonUnansweredQuestion:  4,
}
