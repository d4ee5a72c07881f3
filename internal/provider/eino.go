package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoProvider binds the Provider contract onto an eino
// model.ToolCallingChatModel. A single already-built ChatModel serves
// every model ID; Generate does not use modelID to pick a model.
type EinoProvider struct {
	chatModel model.ToolCallingChatModel
}

// NewEinoProvider wraps an already-constructed chat model.
func NewEinoProvider(chatModel model.ToolCallingChatModel) *EinoProvider {
	return &EinoProvider{chatModel: chatModel}
}

// Generate sends a single-turn prompt (optionally preceded by a system
// message) to the wrapped chat model and returns its text content.
func (e *EinoProvider) Generate(ctx context.Context, modelID, prompt, systemPrompt string) (string, error) {
	var msgs []*schema.Message
	if systemPrompt != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: systemPrompt})
	}
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: prompt})

	result, err := e.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("eino provider: generate: %w", err)
	}
	return result.Content, nil
}
