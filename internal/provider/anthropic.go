package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-6"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicChatModel implements eino's model.ToolCallingChatModel over
// anthropics/anthropic-sdk-go. It is narrower than a general-purpose
// binding on purpose: the orchestration core drives models with
// single-shot system+user prompts and feeds tool results back as plain
// text observations inside its own reply grammar, so tool_use/tool_result
// content blocks never arrive as input here. Generate rejects tool-role
// messages outright instead of converting them, and tool schemas are
// converted once at WithTools time rather than on every request.
type AnthropicChatModel struct {
	client    anthropic.Client
	modelName string
	maxTokens int
	tools     []anthropic.ToolUnionParam
}

// AnthropicConfig are the handful of knobs this binding needs.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewAnthropicChatModel constructs an AnthropicChatModel.
func NewAnthropicChatModel(cfg AnthropicConfig) *AnthropicChatModel {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
	)

	return &AnthropicChatModel{client: client, modelName: modelName, maxTokens: maxTokens}
}

// Generate sends the prompt in a single request and returns the assistant
// reply. System messages become the request's system blocks; user and
// assistant messages become text turns. Any other role is an error: tool
// results reach the model as text observations, not content blocks.
func (m *AnthropicChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{MaxTokens: &m.maxTokens}, opts...)
	maxTokens := m.maxTokens
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		maxTokens = *options.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: int64(maxTokens),
		Tools:     m.tools,
	}
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case schema.User:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case schema.Assistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q (tool results travel as text observations)", msg.Role)
		}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: finishReason(resp.StopReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
			},
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args, jerr := json.Marshal(block.Input)
			if jerr != nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:       block.ID,
				Function: schema.FunctionCall{Name: block.Name, Arguments: string(args)},
			})
		}
	}
	return out, nil
}

// Stream satisfies model.ToolCallingChatModel. Nothing here consumes
// token-level streams, so it wraps a single Generate result.
func (m *AnthropicChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(msg, nil)
	sw.Close()
	return sr, nil
}

// WithTools returns a copy bound to the given tool schemas, converting
// each schema once up front. A schema that cannot be expressed fails the
// bind instead of being silently sent empty.
func (m *AnthropicChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		p, err := toolParam(t)
		if err != nil {
			return nil, fmt.Errorf("anthropic: bind tool %q: %w", t.Name, err)
		}
		converted = append(converted, p)
	}
	cp := *m
	cp.tools = converted
	return &cp, nil
}

// toolParam converts one eino tool schema to the SDK's param shape.
func toolParam(t *schema.ToolInfo) (anthropic.ToolUnionParam, error) {
	input := anthropic.ToolInputSchemaParam{}
	if t.ParamsOneOf != nil {
		js, err := t.ParamsOneOf.ToJSONSchema()
		if err != nil {
			return anthropic.ToolUnionParam{}, fmt.Errorf("to json schema: %w", err)
		}
		if js != nil {
			raw, err := json.Marshal(js)
			if err != nil {
				return anthropic.ToolUnionParam{}, fmt.Errorf("marshal schema: %w", err)
			}
			var schemaMap map[string]any
			if err := json.Unmarshal(raw, &schemaMap); err != nil {
				return anthropic.ToolUnionParam{}, fmt.Errorf("unmarshal schema: %w", err)
			}
			input.Properties = schemaMap["properties"]
			if req, ok := schemaMap["required"].([]any); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						input.Required = append(input.Required, s)
					}
				}
			}
		}
	}

	p := anthropic.ToolUnionParamOfTool(input, t.Name)
	if p.OfTool != nil {
		p.OfTool.Description = param.NewOpt(t.Desc)
	}
	return p, nil
}

func finishReason(stop anthropic.StopReason) string {
	switch stop {
	case anthropic.StopReasonToolUse:
		return "tool_calls"
	case anthropic.StopReasonMaxTokens:
		return "length"
	default:
		return "stop"
	}
}

var _ model.ToolCallingChatModel = (*AnthropicChatModel)(nil)
