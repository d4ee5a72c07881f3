package memory

import "context"

// Store is the Tiered Memory contract. The local (HOT/file-backed) and
// remote (HTTP+JSON companion service) implementations both satisfy it.
type Store interface {
	// Write accepts an Entry, embedding it if Embedding is absent.
	// Duplicate ids are replaced; entries sharing a non-empty Query
	// supersede the prior entry with that Query.
	Write(ctx context.Context, entry Entry) error

	// Search embeds query, filters by f, scores by dot-product similarity
	// and returns the top_k entries with Similarity populated. Read-path
	// access_count is incremented for every returned entry.
	Search(ctx context.Context, query string, topK int, f Filter) ([]Entry, error)

	// Consolidate ("dreaming") prunes HOT entries failing the retain
	// predicate and returns the number pruned. A no-op below the entry
	// floor and for remote stores.
	Consolidate(ctx context.Context) (int, error)

	// ColdMemories returns entries matching the cold-set predicate,
	// bounded by limit. A no-op (empty) for remote stores.
	ColdMemories(ctx context.Context, limit int) ([]Entry, error)

	// Prune removes entries by id.
	Prune(ctx context.Context, ids []string) error

	// Count returns the number of entries currently held.
	Count(ctx context.Context) (int, error)

	// Persist snapshots the HOT vector to durable storage.
	Persist(ctx context.Context) error

	// Hibernate releases the embedder, preserving entries.
	Hibernate(ctx context.Context) error

	// Wake re-initializes the embedder after Hibernate.
	Wake(ctx context.Context) error
}
