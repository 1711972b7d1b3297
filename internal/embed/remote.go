package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/findable-hq/findable/internal/config"
	"github.com/findable-hq/findable/internal/resilience"
)

// bgePrefixes are the model-specific instruction prefixes. Query and
// document texts are embedded into the same space only when each side
// gets its own prefix.
var bgePrefixes = map[Kind]string{
	KindQuery:    "Represent this sentence for searching relevant passages: ",
	KindDocument: "",
}

// RemoteEmbedder calls an embedding HTTP endpoint (BGE-family serving
// layer) in bounded parallel batches behind a circuit breaker.
type RemoteEmbedder struct {
	cfg     config.EmbedConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewRemote creates a RemoteEmbedder from config.
func NewRemote(cfg config.EmbedConfig) *RemoteEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	return &RemoteEmbedder{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("embed: circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (r *RemoteEmbedder) ID() string { return r.cfg.ModelID }

func (r *RemoteEmbedder) Dimensions() int { return r.cfg.Dimensions }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed dispatches batches in parallel up to the configured concurrency
// cap and reassembles results in input order.
func (r *RemoteEmbedder) Embed(ctx context.Context, kind Kind, texts []string) ([][]float32, error) {
	prefix := bgePrefixes[kind]
	out := make([][]float32, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for start := 0; start < len(texts); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch := make([]string, end-start)
			for i, t := range texts[start:end] {
				batch[i] = prefix + t
			}
			vectors, err := r.embedBatch(gCtx, batch)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return eris.Errorf("embed: got %d vectors for %d inputs", len(vectors), len(batch))
			}
			for i, v := range vectors {
				out[start+i] = Normalize(v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts: 3,
		OnRetry:     resilience.RetryLogger("embed", "batch"),
	}
	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([][]float32, error) {
		var vectors [][]float32
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			body, err := json.Marshal(embedRequest{Model: r.cfg.ModelID, Input: batch})
			if err != nil {
				return eris.Wrap(err, "embed: marshal request")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				r.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
			if err != nil {
				return eris.Wrap(err, "embed: create request")
			}
			req.Header.Set("Content-Type", "application/json")
			if r.cfg.Key != "" {
				req.Header.Set("Authorization", "Bearer "+r.cfg.Key)
			}

			resp, err := r.client.Do(req)
			if err != nil {
				return resilience.NewTransientError(err, 0)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(
					eris.Errorf("embed: status %d", resp.StatusCode), resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return eris.Errorf("embed: status %d: %s", resp.StatusCode, string(b))
			}

			var parsed embedResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return eris.Wrap(err, "embed: decode response")
			}
			vectors = make([][]float32, len(parsed.Data))
			for _, d := range parsed.Data {
				if d.Index < 0 || d.Index >= len(vectors) {
					return eris.Errorf("embed: index %d out of range", d.Index)
				}
				vectors[d.Index] = d.Embedding
			}
			return nil
		})
		return vectors, err
	})
}
