package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int64
	Timeout         time.Duration
}

// AnthropicModel implements ChatModel with the Messages API.
type AnthropicModel struct {
	client          anthropic.Client
	model           anthropic.Model
	temperature     float64
	maxOutputTokens int64
}

func NewAnthropicModel(cfg AnthropicConfig, httpClient *http.Client) (*AnthropicModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	// Retries stay off so a failed request surfaces once.
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &AnthropicModel{
		client:          anthropic.NewClient(opts...),
		model:           anthropic.Model(model),
		temperature:     cfg.Temperature,
		maxOutputTokens: maxTokens,
	}, nil
}

func (m *AnthropicModel) Complete(ctx context.Context, system string, messages []Message, tools []Tool) (Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       m.model,
		MaxTokens:   m.maxOutputTokens,
		Messages:    toAnthropicMessages(messages),
		Tools:       toAnthropicTools(tools),
		Temperature: anthropic.Float(m.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic API error: %w", err)
	}

	completion := Completion{StopReason: string(resp.StopReason)}
	var text strings.Builder
	for _, blk := range resp.Content {
		switch blk.Type {
		case "text":
			text.WriteString(blk.AsText().Text)
		case "tool_use":
			tu := blk.AsToolUse()
			if tu.ID == "" || tu.Name == "" {
				continue
			}
			completion.ToolCalls = append(completion.ToolCalls, ToolCall{ID: tu.ID, Name: tu.Name, Arguments: tu.Input})
		}
	}
	completion.Text = text.String()
	return completion, nil
}

// toAnthropicMessages maps the neutral history. Consecutive tool results are
// merged into one user turn as the API requires.
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pending []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		case RoleAssistant:
			flush()
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input any = map[string]any{}
				if len(call.Arguments) > 0 && json.Valid(call.Arguments) {
					input = call.Arguments
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return out
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		required, _ := t.InputSchema["required"].([]string)
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.Opt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}
