package memory

import (
	"context"
	"hash/fnv"
)

// fakeEmbedder produces a deterministic low-dimension vector from the
// text's hash, normalized, so similarity tests don't depend on a network
// embedding provider.
type fakeEmbedder struct {
	hibernating bool
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*1103515245 + 12345
		vec[i] = float32(int32(seed)%1000) / 1000.0
	}
	return normalize(vec), nil
}

func (f *fakeEmbedder) Release()                       { f.hibernating = true }
func (f *fakeEmbedder) Wake(ctx context.Context) error { f.hibernating = false; return nil }
