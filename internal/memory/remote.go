package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ProdByBuddha/agency/internal/errs"
)

// RemoteStore forwards Store operations to a companion memory service
// over HTTP+JSON, gated by AGENCY_USE_REMOTE_MEMORY. Consolidate,
// ColdMemories and Prune are no-ops remotely; the companion service owns
// its own dreaming.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

// NewRemoteStore builds a client targeting host:port.
func NewRemoteStore(host string, port int) *RemoteStore {
	return &RemoteStore{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *RemoteStore) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("remote memory: encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("remote memory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote memory: request: %w: %w", errs.ErrTransientIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote memory: status %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote memory: decode response: %w", err)
	}
	return nil
}

// Write implements Store.
func (r *RemoteStore) Write(ctx context.Context, entry Entry) error {
	return r.post(ctx, "/write", entry, nil)
}

// Search implements Store.
func (r *RemoteStore) Search(ctx context.Context, query string, topK int, f Filter) ([]Entry, error) {
	req := map[string]any{"query": query, "top_k": topK, "context": f.Context, "kind": f.Kind}
	var out []Entry
	if err := r.post(ctx, "/search", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Consolidate is a no-op for the remote store.
func (r *RemoteStore) Consolidate(ctx context.Context) (int, error) { return 0, nil }

// ColdMemories is a no-op for the remote store.
func (r *RemoteStore) ColdMemories(ctx context.Context, limit int) ([]Entry, error) { return nil, nil }

// Prune is a no-op for the remote store.
func (r *RemoteStore) Prune(ctx context.Context, ids []string) error { return nil }

// Count implements Store.
func (r *RemoteStore) Count(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := r.post(ctx, "/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Persist implements Store.
func (r *RemoteStore) Persist(ctx context.Context) error {
	return r.post(ctx, "/persist", nil, nil)
}

// Hibernate is a no-op for the remote store; the companion service owns
// its own embedder lifecycle.
func (r *RemoteStore) Hibernate(ctx context.Context) error { return nil }

// Wake is a no-op for the remote store.
func (r *RemoteStore) Wake(ctx context.Context) error { return nil }
