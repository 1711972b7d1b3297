package model

// QuestionSource identifies where a question came from.
type QuestionSource string

const (
	QuestionSourceUniversal QuestionSource = "universal"
	QuestionSourceDerived   QuestionSource = "derived"
	QuestionSourceCustom    QuestionSource = "custom"
)

// QuestionCategory groups questions for calibration analysis.
type QuestionCategory string

const (
	CategoryIdentity    QuestionCategory = "identity"
	CategoryOffering    QuestionCategory = "offering"
	CategoryPricing     QuestionCategory = "pricing"
	CategoryContact     QuestionCategory = "contact"
	CategoryTrust       QuestionCategory = "trust"
	CategoryComparison  QuestionCategory = "comparison"
	CategoryHowTo       QuestionCategory = "how_to"
	CategoryCustom      QuestionCategory = "custom"
)

// Question is a single simulation question. Derived fresh per run from site
// metadata; stable given the same metadata.
type Question struct {
	ID              string           `json:"id"`
	Source          QuestionSource   `json:"source"`
	Text            string           `json:"text"`
	Category        QuestionCategory `json:"category"`
	Difficulty      int              `json:"difficulty"` // 1 (easy) to 3 (hard)
	Weight          float64          `json:"weight"`
	ExpectedSignals []string         `json:"expected_signals,omitempty"`
}

// Answerability is the per-question classification produced by simulation.
type Answerability string

const (
	FullyAnswerable     Answerability = "fully_answerable"
	PartiallyAnswerable Answerability = "partially_answerable"
	Unanswered          Answerability = "unanswered"
)

// RetrievedChunk records one retrieval hit with its raw RRF score.
type RetrievedChunk struct {
	ChunkID  string  `json:"chunk_id"`
	PageURL  string  `json:"page_url"`
	RRFScore float64 `json:"rrf_score"`
}

// SignalEvidence records where a matched signal was found.
type SignalEvidence struct {
	Signal   string `json:"signal"`
	Found    bool   `json:"found"`
	Evidence string `json:"evidence,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
}

// SimResult is the outcome of simulating one question against the run's
// indexes. Score is in [0,1].
type SimResult struct {
	QuestionID    string           `json:"question_id"`
	RunID         string           `json:"run_id"`
	Retrieved     []RetrievedChunk `json:"retrieved"`
	Signals       []SignalEvidence `json:"signals,omitempty"`
	SignalsFound  int              `json:"signals_found"`
	SignalsTotal  int              `json:"signals_total"`
	RelevanceRaw  float64          `json:"relevance_raw"`
	RelevanceNorm float64          `json:"relevance_norm"`
	Confidence    float64          `json:"confidence"`
	Score         float64          `json:"score"`
	Answerability Answerability    `json:"answerability"`
	Error         string           `json:"error,omitempty"`
}
