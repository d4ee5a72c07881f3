package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactManagerTool writes named text artifacts under a base
// directory.
type ArtifactManagerTool struct {
	baseDir string
}

// NewArtifactManagerTool roots artifact writes at baseDir, creating it if
// necessary.
func NewArtifactManagerTool(baseDir string) *ArtifactManagerTool {
	return &ArtifactManagerTool{baseDir: baseDir}
}

func (t *ArtifactManagerTool) Name() string { return "artifact_manager" }
func (t *ArtifactManagerTool) Description() string {
	return "Save text content as a named artifact file."
}

func (t *ArtifactManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":    map[string]any{"type": "string", "description": "artifact file name"},
			"content": map[string]any{"type": "string", "description": "content to save"},
		},
		"required": []string{"name", "content"},
	}
}

func (t *ArtifactManagerTool) RequiresConfirmation() bool { return false }

func (t *ArtifactManagerTool) Execute(ctx context.Context, parameters map[string]any) (Output, error) {
	name, _ := parameters["name"].(string)
	content, _ := parameters["content"].(string)
	if name == "" {
		return Output{Success: false, Error: "missing required parameter: name"}, nil
	}

	clean := filepath.Base(name)
	if clean == "." || clean == string(filepath.Separator) {
		return Output{Success: false, Error: "invalid artifact name"}, nil
	}

	if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
		return Output{Success: false, Error: fmt.Sprintf("create artifact dir: %v", err)}, nil
	}

	path := filepath.Join(t.baseDir, clean)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Output{Success: false, Error: fmt.Sprintf("write artifact: %v", err)}, nil
	}

	return Output{Success: true, Data: path, Summary: "Saved."}, nil
}
