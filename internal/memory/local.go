package memory

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProdByBuddha/agency/internal/errs"
)

// Consolidation ("dreaming") and cold-set policy thresholds. Policy,
// not invariants.
const (
	retainAccessCount   = 5
	retainRecencyWindow = 7 * 24 * time.Hour
	retainImportance    = 0.8
	coldAccessCount     = 2
	coldImportance      = 0.7
	consolidateFloor    = 100
)

// LocalStore is the HOT in-memory vector index with a durable file
// backing, the primary Store implementation.
type LocalStore struct {
	mu       sync.RWMutex
	entries  []*Entry
	byID     map[string]int
	byQuery  map[string]int
	path     string
	embedder Embedder
}

// NewLocalStore constructs a LocalStore persisting to path with embedder.
func NewLocalStore(path string, embedder Embedder) *LocalStore {
	return &LocalStore{
		byID:     make(map[string]int),
		byQuery:  make(map[string]int),
		path:     path,
		embedder: embedder,
	}
}

func generateMemoryID() string {
	id := uuid.New().String()
	return "mem_" + id[:8]
}

// Write implements Store.
func (s *LocalStore) Write(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = generateMemoryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if len(entry.Embedding) == 0 {
		vec, err := s.embedder.EmbedOne(ctx, entry.Content)
		if err != nil {
			return fmt.Errorf("memory: embed on write: %w", err)
		}
		entry.Embedding = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Dedup by query field: an entry sharing a non-empty Query supersedes
	// the prior entry with that Query (indexer-generated entries).
	if entry.Query != nil && *entry.Query != "" {
		if idx, ok := s.byQuery[*entry.Query]; ok {
			old := s.entries[idx]
			delete(s.byID, old.ID)
			e := entry
			s.entries[idx] = &e
			s.byID[e.ID] = idx
			s.byQuery[*entry.Query] = idx
			return nil
		}
	}

	if idx, ok := s.byID[entry.ID]; ok {
		e := entry
		s.entries[idx] = &e
		if entry.Query != nil && *entry.Query != "" {
			s.byQuery[*entry.Query] = idx
		}
		return nil
	}

	e := entry
	s.entries = append(s.entries, &e)
	idx := len(s.entries) - 1
	s.byID[e.ID] = idx
	if entry.Query != nil && *entry.Query != "" {
		s.byQuery[*entry.Query] = idx
	}
	return nil
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

type scored struct {
	entry *Entry
	score float32
}

// Search implements Store.
func (s *LocalStore) Search(ctx context.Context, query string, topK int, f Filter) ([]Entry, error) {
	qvec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	s.mu.RLock()
	candidates := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if f.matches(e) {
			candidates = append(candidates, e)
		}
	}
	s.mu.RUnlock()

	results := parallelScore(candidates, qvec)

	sort.Slice(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	out := make([]Entry, len(results))
	s.mu.Lock()
	for i, r := range results {
		sim := r.score
		cp := *r.entry
		cp.Similarity = &sim
		out[i] = cp

		if idx, ok := s.byID[r.entry.ID]; ok {
			s.entries[idx].Metadata.AccessCount++
		}
	}
	s.mu.Unlock()

	return out, nil
}

// parallelScore computes dot-product similarity across candidates using
// a bounded worker pool. NaN scores are treated as -Inf so they always
// sort last.
func parallelScore(candidates []*Entry, qvec []float32) []scored {
	n := len(candidates)
	results := make([]scored, n)
	if n == 0 {
		return results
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				score := dot(candidates[i].Embedding, qvec)
				if math.IsNaN(float64(score)) {
					score = float32(math.Inf(-1))
				}
				results[i] = scored{entry: candidates[i], score: score}
			}
		}(start, end)
	}
	wg.Wait()
	return results
}

func retain(e *Entry, now time.Time) bool {
	if e.Metadata.AccessCount > retainAccessCount {
		return true
	}
	if now.Sub(e.Timestamp) < retainRecencyWindow {
		return true
	}
	if e.Metadata.Importance > retainImportance {
		return true
	}
	return false
}

// Consolidate implements Store.
func (s *LocalStore) Consolidate(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) < consolidateFloor {
		return 0, nil
	}

	now := time.Now()
	kept := s.entries[:0:0]
	pruned := 0
	for _, e := range s.entries {
		if retain(e, now) {
			kept = append(kept, e)
		} else {
			pruned++
		}
	}
	s.rebuildIndex(kept)
	return pruned, nil
}

func isCold(e *Entry, now time.Time) bool {
	return e.Metadata.AccessCount <= coldAccessCount &&
		now.Sub(e.Timestamp) >= retainRecencyWindow &&
		e.Metadata.Importance < coldImportance
}

// ColdMemories implements Store.
func (s *LocalStore) ColdMemories(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []Entry
	for _, e := range s.entries {
		if isCold(e, now) {
			out = append(out, *e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Prune implements Store.
func (s *LocalStore) Prune(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	toRemove := make(map[string]bool, len(ids))
	for _, id := range ids {
		toRemove[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if !toRemove[e.ID] {
			kept = append(kept, e)
		}
	}
	s.rebuildIndex(kept)
	return nil
}

// rebuildIndex must be called with mu held.
func (s *LocalStore) rebuildIndex(entries []*Entry) {
	s.entries = entries
	s.byID = make(map[string]int, len(entries))
	s.byQuery = make(map[string]int, len(entries))
	for i, e := range entries {
		s.byID[e.ID] = i
		if e.Query != nil && *e.Query != "" {
			s.byQuery[*e.Query] = i
		}
	}
}

// Count implements Store.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Persist implements Store: snapshots the HOT vector, always writing the
// Zstd-wrapped binary form, atomically (tmp file + rename).
func (s *LocalStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	entries := make([]*Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.RUnlock()

	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("memory: persist mkdir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: persist write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("memory: persist rename: %w", err)
	}
	return nil
}

// Load reads the snapshot at path into the HOT vector, detecting format by
// magic bytes. Returns ErrStoreCorrupt-wrapping errors when the snapshot is
// unreadable in every known format.
func (s *LocalStore) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: load read: %w", err)
	}

	entries, err := decodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("memory: snapshot unreadable in all known formats: %w: %w", errs.ErrStoreCorrupt, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildIndex(entries)
	return nil
}

// Hibernate implements Store.
func (s *LocalStore) Hibernate(ctx context.Context) error {
	s.embedder.Release()
	return nil
}

// Wake implements Store.
func (s *LocalStore) Wake(ctx context.Context) error {
	return s.embedder.Wake(ctx)
}
