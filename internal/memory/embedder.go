package memory

import (
	"context"
	"fmt"
	"math"

	einoollama "github.com/cloudwego/eino-ext/components/embedding/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// Embedder turns text into a fixed-dimension vector. Hibernate/Wake on the
// Store release and re-acquire the concrete embedding.Embedder this wraps.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Release()
	Wake(ctx context.Context) error
}

// EinoEmbedder adapts an eino embedding.Embedder (which embeds batches as
// float64) to the single-text float32 Embedder contract used by the HOT
// store, normalizing the result to unit length.
type EinoEmbedder struct {
	driver string
	cfg    EmbedderConfig
	inner  embedding.Embedder
}

// EmbedderConfig selects and authenticates an embedding driver.
type EmbedderConfig struct {
	Driver  string // "openai" or "ollama"
	Model   string
	APIKey  string
	BaseURL string
}

// NewEinoEmbedder constructs the embedding.Embedder for cfg.Driver. Calling
// it again after Hibernate re-acquires the underlying client (Wake).
func NewEinoEmbedder(ctx context.Context, cfg EmbedderConfig) (*EinoEmbedder, error) {
	e := &EinoEmbedder{driver: cfg.Driver, cfg: cfg}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EinoEmbedder) acquire(ctx context.Context) error {
	switch e.driver {
	case "ollama":
		inner, err := einoollama.NewEmbedder(ctx, &einoollama.EmbeddingConfig{
			BaseURL: e.cfg.BaseURL,
			Model:   e.cfg.Model,
		})
		if err != nil {
			return fmt.Errorf("embedder: construct ollama: %w", err)
		}
		e.inner = inner
	case "openai", "":
		inner, err := einoopenai.NewEmbedder(ctx, &einoopenai.EmbeddingConfig{
			APIKey: e.cfg.APIKey,
			Model:  e.cfg.Model,
		})
		if err != nil {
			return fmt.Errorf("embedder: construct openai: %w", err)
		}
		e.inner = inner
	default:
		return fmt.Errorf("embedder: unknown driver %q", e.driver)
	}
	return nil
}

// Release drops the underlying client, reclaiming its memory. The next
// Wake or EmbedOne call re-acquires it.
func (e *EinoEmbedder) Release() {
	e.inner = nil
}

// Wake re-initializes the underlying client after Release.
func (e *EinoEmbedder) Wake(ctx context.Context) error {
	if e.inner != nil {
		return nil
	}
	return e.acquire(ctx)
}

// EmbedOne embeds a single text and L2-normalizes the result.
func (e *EinoEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if e.inner == nil {
		if err := e.acquire(ctx); err != nil {
			return nil, err
		}
	}

	vecs, err := e.inner.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedder: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder: empty embedding result")
	}

	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return normalize(out), nil
}

// normalize L2-normalizes v in place and returns it.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}
