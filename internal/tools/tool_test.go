package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestArtifactManagerSavesFile(t *testing.T) {
	dir := t.TempDir()
	tool := NewArtifactManagerTool(dir)

	out, err := tool.Execute(context.Background(), map[string]any{
		"name":    "foo.txt",
		"content": "bar",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}

	content, err := os.ReadFile(filepath.Join(dir, "foo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "bar" {
		t.Fatalf("unexpected content: %s", content)
	}
}

func TestArtifactManagerConfinesPathEscape(t *testing.T) {
	dir := t.TempDir()
	tool := NewArtifactManagerTool(dir)

	_, _ = tool.Execute(context.Background(), map[string]any{
		"name":    "../../etc/passwd",
		"content": "x",
	})

	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(dir)), "etc", "passwd")); err == nil {
		t.Fatalf("escaped the base dir")
	}
	// The traversal components are stripped down to the base name, so the
	// write lands inside dir instead of escaping it.
	if _, err := os.Stat(filepath.Join(dir, "passwd")); err != nil {
		t.Fatalf("expected confined write to land in base dir: %v", err)
	}
}

func TestCodeExecToolRequiresConfirmation(t *testing.T) {
	tool := NewCodeExecTool()
	if !tool.RequiresConfirmation() {
		t.Fatalf("expected code_exec to require confirmation")
	}
}

func TestCodeExecToolRunsCommand(t *testing.T) {
	tool := NewCodeExecTool()
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
}

func TestCodeExecToolMissingCommand(t *testing.T) {
	tool := NewCodeExecTool()
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatalf("expected failure on missing command")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(NewArtifactManagerTool(t.TempDir()), NewCodeExecTool())
	if _, ok := reg.Get("artifact_manager"); !ok {
		t.Fatalf("expected artifact_manager registered")
	}
	if _, ok := reg.Get("nope"); ok {
		t.Fatalf("expected missing tool to not be found")
	}
	if len(reg.Names()) != 2 {
		t.Fatalf("expected 2 tool names, got %d", len(reg.Names()))
	}
}
