// Command agency is the CLI entrypoint: it wires the orchestration core
// together and exposes a single-query `ask` path plus a background
// `serve` path that drains the Task Queue and runs the Habit Scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/ProdByBuddha/agency/internal/config"
	"github.com/ProdByBuddha/agency/internal/events"
	"github.com/ProdByBuddha/agency/internal/governor"
	"github.com/ProdByBuddha/agency/internal/memory"
	"github.com/ProdByBuddha/agency/internal/provider"
	"github.com/ProdByBuddha/agency/internal/queue"
	"github.com/ProdByBuddha/agency/internal/reactloop"
	"github.com/ProdByBuddha/agency/internal/sessions"
	"github.com/ProdByBuddha/agency/internal/supervisor"
	"github.com/ProdByBuddha/agency/internal/tools"
)

// defaultModelID names the single model ID this CLI wires every role to.
// The Router/Planner/Reflector/Agent-Loop all address models by string ID
// through the Provider contract; a richer deployment would map distinct
// IDs per agent role.
const defaultModelID = "default"

// criticModelIDs name the two distinct critic models consensus review
// uses. Both resolve to the same underlying chat model here; a real
// deployment would point them at different providers.
const (
	critic1ModelID = "critic-1"
	critic2ModelID = "critic-2"
)

// app bundles everything wired for a single process invocation.
type app struct {
	cfg        config.Config
	supervisor *supervisor.Supervisor
	memStore   memory.Store
	q          *queue.Queue
	governor   *governor.Governor
	bus        *events.Bus
}

// buildChatModel constructs the eino ToolCallingChatModel named by
// cfg.ModelProvider.
func buildChatModel(ctx context.Context, cfg config.Config) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.ModelProvider) {
	case "anthropic":
		return provider.NewAnthropicChatModel(provider.AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  envOr("AGENCY_MODEL_NAME", "claude-sonnet-4-6"),
		}), nil
	case "ollama":
		return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
			BaseURL: envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:   envOr("AGENCY_MODEL_NAME", "llama3"),
		})
	case "openai", "":
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  envOr("AGENCY_MODEL_NAME", "gpt-4o"),
		})
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.ModelProvider)
	}
}

// buildEmbedder constructs the memory embedder, reusing the same
// AGENCY_MODEL_PROVIDER selector for the embedding driver.
func buildEmbedder(ctx context.Context, cfg config.Config) (memory.Embedder, error) {
	driver := "openai"
	if strings.EqualFold(cfg.ModelProvider, "ollama") {
		driver = "ollama"
	}
	return memory.NewEinoEmbedder(ctx, memory.EmbedderConfig{
		Driver:  driver,
		Model:   envOr("AGENCY_EMBED_MODEL", "text-embedding-3-small"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
	})
}

// defaultToolRegistry builds the fixed tool catalog: web_search,
// artifact_manager, code_exec.
func defaultToolRegistry(ctx context.Context, artifactDir string) (*tools.Registry, error) {
	webSearch, err := tools.NewWebSearchTool(ctx)
	if err != nil {
		return nil, fmt.Errorf("build web_search tool: %w", err)
	}
	return tools.NewRegistry(
		webSearch,
		tools.NewArtifactManagerTool(artifactDir),
		tools.NewCodeExecTool(),
	), nil
}

// buildApp wires the components leaves-first: Memory, Queue and the
// Governor before the Router/Planner/Reflector, then the Agent Loop,
// then the Supervisor on top.
func buildApp(ctx context.Context, confirm reactloop.PermissionFunc) (*app, error) {
	cfg := config.Load()

	chatModel, err := buildChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build chat model: %w", err)
	}
	base := provider.NewEinoProvider(chatModel)
	p := provider.NewCachingProvider(base)

	var memStore memory.Store
	if cfg.RemoteMemory {
		memStore = memory.NewRemoteStore(cfg.RemoteMemoryHost, cfg.RemoteMemoryPort)
	} else {
		embedder, eerr := buildEmbedder(ctx, cfg)
		if eerr != nil {
			return nil, fmt.Errorf("build embedder: %w", eerr)
		}
		snapshotPath := envOr("AGENCY_MEMORY_SNAPSHOT", "agency_memory.snapshot")
		local := memory.NewLocalStore(snapshotPath, embedder)
		if lerr := local.Load(ctx); lerr != nil {
			return nil, fmt.Errorf("load memory snapshot: %w", lerr)
		}
		memStore = local
	}

	q, err := queue.Open(envOr("AGENCY_QUEUE_PATH", "agency_tasks.db"))
	if err != nil {
		return nil, fmt.Errorf("open task queue: %w", err)
	}

	gov := governor.New(cfg.MaxConcurrencyPermits)
	bus := events.NewBus(64)

	artifactDir := envOr("AGENCY_ARTIFACT_DIR", filepath.Join(".", "artifacts"))
	reg, err := defaultToolRegistry(ctx, artifactDir)
	if err != nil {
		return nil, err
	}

	sup := supervisor.New(p, reg, supervisor.Config{
		ModelID:        defaultModelID,
		Critic1ModelID: critic1ModelID,
		Critic2ModelID: critic2ModelID,
		MaxPermits:     cfg.MaxConcurrencyPermits,
		MaxRetries:     cfg.MaxRetries,
		Confirm:        confirm,
	}).WithMemory(memStore).WithGovernor(gov).WithEventBus(bus).
		WithSessions(sessions.NewManager(cfg.SessionFilePath))

	if err := sup.LoadSession(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	return &app{cfg: cfg, supervisor: sup, memStore: memStore, q: q, governor: gov, bus: bus}, nil
}

func (a *app) Close() {
	if a.q != nil {
		_ = a.q.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
