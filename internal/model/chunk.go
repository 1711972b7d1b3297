package model

// ChunkType classifies a chunk by its source structure. Lists, tables,
// code blocks, and quotes are never fractured by the chunker.
type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeHeading ChunkType = "heading"
	ChunkTypeList    ChunkType = "list"
	ChunkTypeTable   ChunkType = "table"
	ChunkTypeCode    ChunkType = "code"
	ChunkTypeQuote   ChunkType = "quote"
)

// Chunk is a semantically coherent slice of a page, carrying the heading
// context it appeared under. Written once by the chunker.
type Chunk struct {
	ID            string    `json:"id"`
	PageID        string    `json:"page_id"`
	PageURL       string    `json:"page_url"`
	Ordinal       int       `json:"ordinal"`
	Type          ChunkType `json:"type"`
	HeadingPath   []string  `json:"heading_path,omitempty"`
	Text          string    `json:"text"`
	TokenEstimate int       `json:"token_estimate"`
	PositionRatio float64   `json:"position_ratio"`
	ContentHash   string    `json:"content_hash"`
}

// Embedding is the unit-normalized vector for a chunk under a given model.
type Embedding struct {
	ChunkID string    `json:"chunk_id"`
	ModelID string    `json:"model_id"`
	Vector  []float32 `json:"vector"`
}
