package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querytrace/querytrace/internal/observability"
)

const (
	defaultMaxIterations = 15
	defaultTopK          = 10
)

type Config struct {
	Logger        *slog.Logger
	Model         ChatModel
	Tools         ToolClient
	Dialect       string
	TopK          int
	MaxIterations int
	RunTimeout    time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Model == nil {
		return errors.New("chat model is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool client is required")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxIterations < 0 {
		return errors.New("max iterations must be greater than 0")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.RunTimeout < 0 {
		return errors.New("run timeout must not be negative")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Agent runs a bounded tool-calling loop: the model proposes SQL, the
// toolbox executes it, and the loop ends when the model answers without
// requesting tools.
type Agent struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{log: cfg.Logger, cfg: cfg}, nil
}

func (a *Agent) Run(ctx context.Context, question, schemaText string, sink Sink) (Result, error) {
	runCtx := ctx
	if a.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()
	}

	tools, err := a.cfg.Tools.ListTools(runCtx)
	if err != nil {
		return Result{}, a.runError(ctx, runCtx, fmt.Errorf("list tools: %w", err))
	}

	system := SystemPrompt(a.cfg.Dialect, a.cfg.TopK, schemaText)
	msgs := []Message{{Role: RoleUser, Content: question}}
	toolCalls := 0

	for round := 1; round <= a.cfg.MaxIterations; round++ {
		a.log.DebugContext(ctx, "agent: starting round", "round", round, "max_rounds", a.cfg.MaxIterations)

		completion, err := a.cfg.Model.Complete(runCtx, system, msgs, tools)
		if err != nil {
			return Result{}, a.runError(ctx, runCtx, fmt.Errorf("completion round %d: %w", round, err))
		}
		observability.IncrementAgentCompletion()
		a.emit(ctx, sink, "on_completion", func() { sink.OnCompletion(completion.Text) })

		msgs = append(msgs, Message{Role: RoleAssistant, Content: completion.Text, ToolCalls: completion.ToolCalls})
		if len(completion.ToolCalls) == 0 {
			a.log.DebugContext(ctx, "agent: no tool calls, returning final answer", "round", round)
			return Result{
				FinalAnswer: strings.TrimSpace(completion.Text),
				Rounds:      round,
				ToolCalls:   toolCalls,
			}, nil
		}

		for _, call := range completion.ToolCalls {
			if err := runCtx.Err(); err != nil {
				return Result{}, a.runError(ctx, runCtx, err)
			}
			content, isErr := a.callTool(runCtx, call)
			toolCalls++
			a.emit(ctx, sink, "on_tool_result", func() { sink.OnToolResult(content) })
			msgs = append(msgs, Message{
				Role:       RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				IsError:    isErr,
			})
		}
	}

	a.log.WarnContext(ctx, "agent: iteration limit reached", "max_rounds", a.cfg.MaxIterations, "tool_calls", toolCalls)
	return Result{}, &Error{Phase: PhaseRun, Err: ErrIterationLimit}
}

// callTool executes one tool call. Failures are reported back to the model as
// "Error: ..." text so it can correct itself.
func (a *Agent) callTool(ctx context.Context, call ToolCall) (string, bool) {
	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			observability.ObserveToolCall(call.Name, true)
			return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Name, err), true
		}
	}

	out, isErr, err := a.cfg.Tools.CallToolText(ctx, call.Name, args)
	switch {
	case err != nil:
		a.log.ErrorContext(ctx, "agent: tool execution error", "tool", call.Name, "tool_id", call.ID, "error", err)
		out, isErr = fmt.Sprintf("Error: %v", err), true
	case isErr:
		out = "Error: " + out
	}
	observability.ObserveToolCall(call.Name, isErr)
	a.log.DebugContext(ctx, "agent: tool executed", "tool", call.Name, "tool_id", call.ID, "is_error", isErr)
	return out, isErr
}

// emit delivers an event to the sink. A panicking sink is logged and the run
// continues.
func (a *Agent) emit(ctx context.Context, sink Sink, hook string, deliver func()) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			observability.IncrementSinkFailure()
			a.log.ErrorContext(ctx, "agent: event sink failed", "hook", hook, "panic", fmt.Sprint(r))
		}
	}()
	deliver()
}

func (a *Agent) runError(parent, runCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &Error{Phase: PhaseRun, Err: fmt.Errorf("%w (%s): %v", ErrRunTimeout, a.cfg.RunTimeout, err)}
	}
	return &Error{Phase: PhaseRun, Err: err}
}
