package agent

import (
	"context"
	"log/slog"
	"time"
)

// ModelFactory returns the chat model for a new run.
type ModelFactory func(ctx context.Context) (ChatModel, error)

// Builder prepares a fresh Agent for every request.
type Builder struct {
	Logger        *slog.Logger
	NewModel      ModelFactory
	Tools         ToolClient
	Dialect       string
	TopK          int
	MaxIterations int
	RunTimeout    time.Duration
}

func (b *Builder) Build(ctx context.Context) (Runner, error) {
	if b.NewModel == nil {
		return nil, &Error{Phase: PhaseInit, Err: ErrMissingAPIKey}
	}
	model, err := b.NewModel(ctx)
	if err != nil {
		return nil, &Error{Phase: PhaseInit, Err: err}
	}
	runner, err := New(Config{
		Logger:        b.Logger,
		Model:         model,
		Tools:         b.Tools,
		Dialect:       b.Dialect,
		TopK:          b.TopK,
		MaxIterations: b.MaxIterations,
		RunTimeout:    b.RunTimeout,
	})
	if err != nil {
		return nil, &Error{Phase: PhaseInit, Err: err}
	}
	return runner, nil
}
