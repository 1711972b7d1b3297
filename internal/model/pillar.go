package model

// Pillar is a named scoring dimension.
type Pillar string

const (
	PillarTechnical         Pillar = "technical"
	PillarStructure         Pillar = "structure"
	PillarSchema            Pillar = "schema"
	PillarAuthority         Pillar = "authority"
	PillarRetrieval         Pillar = "retrieval"
	PillarCoverage          Pillar = "coverage"
	PillarEntityRecognition Pillar = "entity_recognition"
)

// AllPillars returns the pillars in report display order.
func AllPillars() []Pillar {
	return []Pillar{
		PillarTechnical,
		PillarStructure,
		PillarSchema,
		PillarAuthority,
		PillarRetrieval,
		PillarCoverage,
		PillarEntityRecognition,
	}
}

// ProgressLevel is the per-pillar progress label. Progress language is
// deliberate: user-facing fields never use severity words.
type ProgressLevel string

const (
	LevelFull    ProgressLevel = "full"
	LevelPartial ProgressLevel = "partial"
	LevelLimited ProgressLevel = "limited"
)

// LevelForScore maps a raw 0-100 pillar score to its progress level.
func LevelForScore(raw float64) ProgressLevel {
	switch {
	case raw >= 80:
		return LevelFull
	case raw >= 50:
		return LevelPartial
	default:
		return LevelLimited
	}
}

// Issue is a single finding emitted by a pillar analyzer.
type Issue struct {
	Code    string        `json:"code"`
	Level   ProgressLevel `json:"level"`
	Message string        `json:"message"`
}

// ComponentScore is one weighted component inside a pillar.
type ComponentScore struct {
	Name   string  `json:"name"`
	Raw    float64 `json:"raw"`    // 0-100
	Weight float64 `json:"weight"` // percent of the pillar
	Points float64 `json:"points"` // raw * weight / 100
}

// PillarScore is the full result for one pillar of one run.
type PillarScore struct {
	RunID      string           `json:"run_id"`
	Pillar     Pillar           `json:"pillar"`
	Raw        float64          `json:"raw"`    // 0-100
	Weight     float64          `json:"weight"` // percent of the total score
	Points     float64          `json:"points"` // raw * weight / 100
	Level      ProgressLevel    `json:"level"`
	Evaluated  bool             `json:"evaluated"`
	Components []ComponentScore `json:"components,omitempty"`
	Issues     []Issue          `json:"issues,omitempty"`
}

// NewPillarScore builds a PillarScore from components, computing the raw
// score as the weighted sum and assigning the progress level.
func NewPillarScore(runID string, pillar Pillar, components []ComponentScore, issues []Issue) PillarScore {
	raw := 0.0
	for i := range components {
		components[i].Points = components[i].Raw * components[i].Weight / 100
		raw += components[i].Points
	}
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return PillarScore{
		RunID:      runID,
		Pillar:     pillar,
		Raw:        raw,
		Level:      LevelForScore(raw),
		Evaluated:  true,
		Components: components,
		Issues:     issues,
	}
}
