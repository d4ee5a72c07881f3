package tools

import (
	"context"
	"encoding/json"
	"fmt"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	einotool "github.com/cloudwego/eino/components/tool"
)

// WebSearchTool wraps the eino-ext DuckDuckGo search component behind the
// orchestration core's own Tool contract, so the hand-rolled Agent Loop
// never has to speak eino's adk/tool wire format directly.
type WebSearchTool struct {
	inner einotool.InvokableTool
}

// NewWebSearchTool constructs a WebSearchTool backed by eino-ext's
// DuckDuckGo search component.
func NewWebSearchTool(ctx context.Context) (*WebSearchTool, error) {
	inner, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search",
		ToolDesc:   "Search the web for a query and return result snippets.",
		MaxResults: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("web_search: construct duckduckgo tool: %w", err)
	}
	return &WebSearchTool{inner: inner}, nil
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for a query and return result snippets."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search query"},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) RequiresConfirmation() bool { return false }

func (t *WebSearchTool) Execute(ctx context.Context, parameters map[string]any) (Output, error) {
	query, _ := parameters["query"].(string)
	if query == "" {
		return Output{Success: false, Error: "missing required parameter: query"}, nil
	}

	argsJSON, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return Output{Success: false, Error: err.Error()}, nil
	}

	result, err := t.inner.InvokableRun(ctx, string(argsJSON))
	if err != nil {
		return Output{Success: false, Error: err.Error()}, nil
	}

	return Output{Success: true, Data: result, Summary: "web search completed"}, nil
}
