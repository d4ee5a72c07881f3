package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CodeExecTool runs a caller-supplied shell command and captures its
// output. RequiresConfirmation is true, so every call goes through the
// permission prompt.
type CodeExecTool struct {
	timeout time.Duration
}

// NewCodeExecTool constructs a CodeExecTool with a default 30s timeout.
func NewCodeExecTool() *CodeExecTool {
	return &CodeExecTool{timeout: 30 * time.Second}
}

func (t *CodeExecTool) Name() string { return "code_exec" }
func (t *CodeExecTool) Description() string {
	return "Execute a shell command and capture stdout/stderr."
}

func (t *CodeExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "shell command to run"},
		},
		"required": []string{"command"},
	}
}

func (t *CodeExecTool) RequiresConfirmation() bool { return true }

func (t *CodeExecTool) Execute(ctx context.Context, parameters map[string]any) (Output, error) {
	command, _ := parameters["command"].(string)
	if command == "" {
		return Output{Success: false, Error: "missing required parameter: command"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return Output{Success: false, Error: fmt.Sprintf("command failed: %v: %s", err, out.String())}, nil
	}

	return Output{Success: true, Data: out.String(), Summary: "command executed"}, nil
}
