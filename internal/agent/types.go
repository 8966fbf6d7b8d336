package agent

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one provider-neutral conversation turn.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
	IsError    bool
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Completion is a single model response.
type Completion struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ChatModel is a completion service that supports tool calling.
type ChatModel interface {
	Complete(ctx context.Context, system string, messages []Message, tools []Tool) (Completion, error)
}

// ToolClient lists and executes the tools offered to the model.
type ToolClient interface {
	ListTools(ctx context.Context) ([]Tool, error)
	// CallToolText returns the tool output as text. isError marks output the
	// model should treat as a failure; err is reserved for transport problems.
	CallToolText(ctx context.Context, name string, args map[string]any) (result string, isError bool, err error)
}

// Runner executes one question against a prepared agent.
type Runner interface {
	Run(ctx context.Context, question, schemaText string, sink Sink) (Result, error)
}

type Result struct {
	FinalAnswer string
	Rounds      int
	ToolCalls   int
}
