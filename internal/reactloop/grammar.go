package reactloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ProdByBuddha/agency/internal/orch"
)

// parseReActReply parses the model's reply as line-prefixed segments
// tagged [THOUGHT], [ACTION] {json}, and [ANSWER]. Never panics; returns
// an explicit error on malformed input so callers can retry with an
// injected hint.
func parseReActReply(text string) (orch.ReActStep, error) {
	var step orch.ReActStep
	lines := strings.Split(text, "\n")

	var thoughtParts []string
	var answerParts []string
	inAnswer := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "[THOUGHT]"):
			inAnswer = false
			thoughtParts = append(thoughtParts, strings.TrimSpace(strings.TrimPrefix(trimmed, "[THOUGHT]")))
		case strings.HasPrefix(trimmed, "[ACTION]"):
			inAnswer = false
			payload := strings.TrimSpace(strings.TrimPrefix(trimmed, "[ACTION]"))
			var call orch.ToolCall
			if err := json.Unmarshal([]byte(payload), &call); err != nil {
				return orch.ReActStep{}, fmt.Errorf("reactloop: parse [ACTION] json: %w", err)
			}
			step.Actions = append(step.Actions, call)
		case strings.HasPrefix(trimmed, "[ANSWER]"):
			inAnswer = true
			step.IsFinal = true
			answerParts = append(answerParts, strings.TrimSpace(strings.TrimPrefix(trimmed, "[ANSWER]")))
		case inAnswer:
			answerParts = append(answerParts, trimmed)
		case trimmed != "":
			thoughtParts = append(thoughtParts, trimmed)
		}
	}

	step.Thought = strings.TrimSpace(strings.Join(thoughtParts, " "))
	if step.IsFinal {
		step.Answer = strings.TrimSpace(strings.Join(answerParts, "\n"))
		// An [ANSWER] wins over any [ACTION] in the same reply: terminal
		// steps carry an answer and no actions.
		step.Actions = nil
	}

	if !step.IsFinal && len(step.Actions) == 0 && step.Thought == "" {
		return orch.ReActStep{}, fmt.Errorf("reactloop: empty reply did not match any known grammar segment")
	}

	return step, nil
}
