package model

import "time"

// FindabilityLevel is the coarse progress label for the total score.
type FindabilityLevel string

const (
	LevelNotYetFindable    FindabilityLevel = "Not Yet Findable"
	LevelPartiallyFindable FindabilityLevel = "Partially Findable"
	LevelFindable          FindabilityLevel = "Findable"
	LevelHighlyFindable    FindabilityLevel = "Highly Findable"
	LevelOptimized         FindabilityLevel = "Optimized"
)

// FindabilityForTotal maps a total score to its level and the next
// milestone. A zero milestone means the top band is reached.
func FindabilityForTotal(total float64) (FindabilityLevel, float64) {
	switch {
	case total < 40:
		return LevelNotYetFindable, 40
	case total < 55:
		return LevelPartiallyFindable, 55
	case total < 70:
		return LevelFindable, 70
	case total < 85:
		return LevelHighlyFindable, 85
	default:
		return LevelOptimized, 0
	}
}

// MathLine is one row of the show-the-math breakdown.
type MathLine struct {
	Pillar Pillar  `json:"pillar"`
	Raw    float64 `json:"raw"`
	Weight float64 `json:"weight"`
	Points float64 `json:"points"`
}

// QuestionSummary aggregates the per-question simulation outcomes.
type QuestionSummary struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Partial    int `json:"partial"`
	Unanswered int `json:"unanswered"`
}

// Report is the single per-run output: the Findable Score with its
// explanation and prioritized fixes.
type Report struct {
	RunID            string           `json:"run_id"`
	TotalScore       float64          `json:"total_score"`
	EvaluatedMax     float64          `json:"evaluated_max"`
	EvaluatedPercent float64          `json:"evaluated_percent"`
	Level            FindabilityLevel `json:"level"`
	NextMilestone    float64          `json:"next_milestone,omitempty"`
	PointsToMilestone float64         `json:"points_to_milestone,omitempty"`
	Strengths        []Pillar         `json:"strengths,omitempty"`
	PillarScores     []PillarScore    `json:"pillar_scores"`
	Questions        QuestionSummary  `json:"questions"`
	Fixes            []Fix            `json:"fixes,omitempty"`
	ActionCenter     ActionCenter     `json:"action_center"`
	ShowTheMath      []MathLine       `json:"show_the_math"`
	ShowTheMathText  string           `json:"show_the_math_text"`
	GeneratedAt      time.Time        `json:"generated_at"`
}
