// Package memory implements tiered semantic memory: a write-through
// store with a HOT in-memory vector index and a durable file backing.
package memory

import "time"

// Metadata carries the non-vector attributes of a MemoryEntry.
type Metadata struct {
	Agent       string  `json:"agent,omitempty"`
	Context     string  `json:"context,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Importance  float32 `json:"importance"`
	AccessCount uint64  `json:"access_count"`
}

// Entry is a single semantic memory record. Embedding is L2-normalized
// when present, so cosine similarity reduces to a dot product.
type Entry struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Metadata   Metadata  `json:"metadata"`
	Query      *string   `json:"query,omitempty"`
	Similarity *float32  `json:"similarity,omitempty"`
}

// Filter narrows a Search or ColdMemories call.
type Filter struct {
	Context string
	Kind    string
}

func (f Filter) matches(e *Entry) bool {
	if f.Context != "" && e.Metadata.Context != f.Context {
		return false
	}
	if f.Kind != "" && e.Metadata.Kind != f.Kind {
		return false
	}
	return true
}
