// Package simulate runs the question suite against a run's indexes and
// scores how well the site's content answers each question.
package simulate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/model"
	"github.com/findable-hq/findable/internal/retrieve"
)

// ErrRetrievalEmpty means the indexes returned nothing for a question.
// The question scores 0 and the run continues.
var ErrRetrievalEmpty = eris.New("simulate: retrieval returned no chunks")

const (
	defaultTopN         = 7
	defaultBudgetTokens = 6000
)

// Simulator scores questions against one run's retriever. Thresholds are
// snapshotted from the active calibration config at run start.
type Simulator struct {
	retriever    *retrieve.Retriever
	thresholds   model.Thresholds
	topN         int
	budgetTokens int
}

// New creates a Simulator. budgetTokens caps the retrieval context each
// question sees, mirroring the context window of the simulated consumer.
func New(retriever *retrieve.Retriever, thresholds model.Thresholds, topN, budgetTokens int) *Simulator {
	if topN <= 0 {
		topN = defaultTopN
	}
	if budgetTokens <= 0 {
		budgetTokens = defaultBudgetTokens
	}
	return &Simulator{
		retriever:    retriever,
		thresholds:   thresholds,
		topN:         topN,
		budgetTokens: budgetTokens,
	}
}

// Run simulates every question in order. Per-question failures are
// recorded on the result and do not stop the loop.
func (s *Simulator) Run(ctx context.Context, runID string, qs []model.Question) ([]model.SimResult, error) {
	results := make([]model.SimResult, 0, len(qs))
	for _, q := range qs {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "simulate: run")
		}
		res := s.Simulate(ctx, runID, q)
		results = append(results, res)
	}
	return results, nil
}

// Simulate scores one question. The per-question score blends normalized
// retrieval relevance, signal coverage, and source confidence:
//
//	score = 0.4·relevance_norm + 0.4·signal + 0.2·confidence
//
// A question with no expected signals gets the neutral 0.5 signal term,
// never zero.
func (s *Simulator) Simulate(ctx context.Context, runID string, q model.Question) model.SimResult {
	res := model.SimResult{QuestionID: q.ID, RunID: runID}

	retrieved, err := s.retriever.Search(ctx, q.Text, s.topN)
	if err != nil {
		res.Error = err.Error()
		res.Answerability = model.Unanswered
		return res
	}
	if len(retrieved) == 0 {
		zap.L().Debug("simulate: empty retrieval",
			zap.String("question_id", q.ID),
			zap.String("question", q.Text),
		)
		res.Error = ErrRetrievalEmpty.Error()
		res.Answerability = model.Unanswered
		return res
	}
	retrieved = s.trimToBudget(retrieved)
	res.Retrieved = retrieved

	var rawSum float64
	for _, rc := range retrieved {
		rawSum += rc.RRFScore
	}
	res.RelevanceRaw = rawSum / float64(len(retrieved))
	res.RelevanceNorm = retrieve.NormalizeRRF(res.RelevanceRaw)

	signalTerm, matchedChunks := s.evaluateSignals(&res, q, retrieved)
	res.Confidence = s.confidence(matchedChunks, retrieved)

	res.Score = 0.4*res.RelevanceNorm + 0.4*signalTerm + 0.2*res.Confidence
	res.Answerability = s.classify(res.Score)
	return res
}

// trimToBudget drops trailing retrieved chunks once the cumulative token
// estimate crosses the question budget. The top chunk always survives, so
// a single oversized chunk cannot zero out a question.
func (s *Simulator) trimToBudget(retrieved []model.RetrievedChunk) []model.RetrievedChunk {
	used := 0
	for i, rc := range retrieved {
		chunk := s.retriever.Chunk(rc.ChunkID)
		if chunk == nil {
			continue
		}
		used += chunk.TokenEstimate
		if used > s.budgetTokens && i > 0 {
			return retrieved[:i]
		}
	}
	return retrieved
}

// evaluateSignals matches each expected signal against the concatenated
// retrieved text, recording evidence per signal. Returns the signal term
// and the set of chunk IDs that carried a match.
func (s *Simulator) evaluateSignals(res *model.SimResult, q model.Question, retrieved []model.RetrievedChunk) (float64, map[string]bool) {
	matched := make(map[string]bool)
	res.SignalsTotal = len(q.ExpectedSignals)
	if res.SignalsTotal == 0 {
		// Neutral, not zero: absence of expectations is not failure.
		return 0.5, matched
	}

	for _, sig := range q.ExpectedSignals {
		ev := model.SignalEvidence{Signal: sig}
		for _, rc := range retrieved {
			chunk := s.retriever.Chunk(rc.ChunkID)
			if chunk == nil {
				continue
			}
			if found, excerpt := matchSignal(sig, chunk.Text); found {
				ev.Found = true
				ev.Evidence = excerpt
				ev.ChunkID = rc.ChunkID
				matched[rc.ChunkID] = true
				break
			}
		}
		if ev.Found {
			res.SignalsFound++
		}
		res.Signals = append(res.Signals, ev)
	}
	return float64(res.SignalsFound) / float64(res.SignalsTotal), matched
}

// confidence averages the source-quality score of chunks that matched a
// signal, falling back to 0.5 when none did.
func (s *Simulator) confidence(matched map[string]bool, retrieved []model.RetrievedChunk) float64 {
	var sum float64
	var n int
	for _, rc := range retrieved {
		if !matched[rc.ChunkID] {
			continue
		}
		if chunk := s.retriever.Chunk(rc.ChunkID); chunk != nil {
			sum += chunkConfidence(chunk)
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// chunkConfidence estimates how citable a chunk is: earlier position on
// the page and clear heading context both raise it, structural chunk
// types (lists, tables) raise it slightly over free text.
func chunkConfidence(c *model.Chunk) float64 {
	conf := 0.5
	conf += 0.2 * (1 - c.PositionRatio)
	if len(c.HeadingPath) > 0 {
		conf += 0.15
	}
	switch c.Type {
	case model.ChunkTypeList, model.ChunkTypeTable:
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// AggregateSignalCoverage averages the per-question signal term across
// results. Questions with no expected signals contribute the same 0.5
// neutral value used in their own score; using zero here instead has
// historically biased the aggregate by ~10 points.
func AggregateSignalCoverage(results []model.SimResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		if r.SignalsTotal == 0 {
			sum += 0.5
			continue
		}
		sum += float64(r.SignalsFound) / float64(r.SignalsTotal)
	}
	return sum / float64(len(results))
}

func (s *Simulator) classify(score float64) model.Answerability {
	switch {
	case score >= s.thresholds.FullyAnswerable:
		return model.FullyAnswerable
	case score >= s.thresholds.PartiallyAnswerable:
		return model.PartiallyAnswerable
	default:
		return model.Unanswered
	}
}
