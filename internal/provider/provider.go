// Package provider implements the model-provider contract: a single
// generate(model_id, prompt, system_prompt?) -> text operation, plus a
// caching wrapper keyed on (model_id, system_prompt, prompt).
package provider

import (
	"context"
	"fmt"
	"sync"
)

// Provider is the model-inference contract. The core depends only on this
// interface; concrete bindings (Eino, a test double) live behind it.
type Provider interface {
	Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error)
}

// CachingProvider wraps a Provider with a read-mostly in-memory cache
// keyed on (model_id, system_prompt, prompt). The lock is never held
// across the underlying call.
type CachingProvider struct {
	inner Provider

	mu    sync.RWMutex
	cache map[cacheKey]string
}

type cacheKey struct {
	modelID      string
	systemPrompt string
	prompt       string
}

// NewCachingProvider wraps inner with a response cache.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		cache: make(map[cacheKey]string),
	}
}

// Generate returns the cached response for (modelID, systemPrompt, prompt)
// if present, otherwise delegates to the wrapped Provider and caches the
// result.
func (c *CachingProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	key := cacheKey{modelID: modelID, systemPrompt: systemPrompt, prompt: prompt}

	c.mu.RLock()
	if v, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	text, err := c.inner.Generate(ctx, modelID, prompt, systemPrompt)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = text
	c.mu.Unlock()

	return text, nil
}

// Registry resolves a model ID to a Provider, lazily constructing
// bindings on first use.
type Registry struct {
	mu        sync.Mutex
	providers map[string]Provider
	factory   func(ctx context.Context, modelID string) (Provider, error)
}

// NewRegistry creates a Registry that lazily builds providers with factory.
func NewRegistry(factory func(ctx context.Context, modelID string) (Provider, error)) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		factory:   factory,
	}
}

// Get returns the Provider bound to modelID, constructing it on first use.
func (r *Registry) Get(ctx context.Context, modelID string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[modelID]; ok {
		return p, nil
	}

	p, err := r.factory(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("provider registry: build %q: %w", modelID, err)
	}
	r.providers[modelID] = p
	return p, nil
}
