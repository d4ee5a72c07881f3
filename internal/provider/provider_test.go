package provider

import (
	"context"
	"testing"
)

type countingProvider struct {
	calls int
	reply string
}

func (c *countingProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	c.calls++
	return c.reply, nil
}

func TestCachingProviderCachesByFullKey(t *testing.T) {
	inner := &countingProvider{reply: "hello"}
	cached := NewCachingProvider(inner)
	ctx := context.Background()

	out, err := cached.Generate(ctx, "m1", "hi", "")
	if err != nil || out != "hello" {
		t.Fatalf("unexpected result: %v %v", out, err)
	}

	out, err = cached.Generate(ctx, "m1", "hi", "")
	if err != nil || out != "hello" {
		t.Fatalf("unexpected result: %v %v", out, err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly one underlying call, got %d", inner.calls)
	}

	// A different system prompt is a different key.
	_, _ = cached.Generate(ctx, "m1", "hi", "sys")
	if inner.calls != 2 {
		t.Fatalf("expected a second underlying call for a distinct key, got %d", inner.calls)
	}
}

func TestRegistryLazyConstruction(t *testing.T) {
	builds := 0
	reg := NewRegistry(func(ctx context.Context, modelID string) (Provider, error) {
		builds++
		return &countingProvider{reply: modelID}, nil
	})

	ctx := context.Background()
	p1, err := reg.Get(ctx, "gpt")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := reg.Get(ctx, "gpt")
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatalf("expected the same provider instance on repeat Get")
	}
	if builds != 1 {
		t.Fatalf("expected exactly one build, got %d", builds)
	}
}
