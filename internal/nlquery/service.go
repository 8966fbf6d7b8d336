package nlquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/querytrace/querytrace/internal/agent"
	"github.com/querytrace/querytrace/internal/observability"
)

// Pinger checks that the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SchemaSource returns the schema text handed to the agent.
type SchemaSource interface {
	Schema(ctx context.Context) (string, error)
}

// AgentBuilder prepares a run-ready agent for one request.
type AgentBuilder interface {
	Build(ctx context.Context) (agent.Runner, error)
}

type Response struct {
	Steps        []Step   `json:"steps"`
	FinalAnswer  string   `json:"final_answer"`
	LLMResponses []string `json:"llm_responses"`
	SQLQueries   []string `json:"sql_queries"`
}

type Service struct {
	DB     Pinger
	Schema SchemaSource
	Agents AgentBuilder
	Logger *slog.Logger
}

func NewService(db Pinger, schema SchemaSource, agents AgentBuilder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{DB: db, Schema: schema, Agents: agents, Logger: logger}
}

// pipeline is the per-request state. Nothing in it outlives Answer.
type pipeline struct {
	svc      *Service
	question string
	recorder *agent.Recorder
	outcomes []Outcome

	schemaText string
	runner     agent.Runner
	result     agent.Result
	answer     string
}

// Answer runs the question through the pipeline. On failure the returned
// Response still carries the trace up to the failing stage and the error is
// a *StageError.
func (s *Service) Answer(ctx context.Context, question string) (Response, error) {
	started := time.Now()
	p := &pipeline{svc: s, question: question, recorder: agent.NewRecorder()}

	stages := []struct {
		stage Stage
		run   func(context.Context) (string, error)
	}{
		{StageConnect, p.connect},
		{StageRetrieveSchema, p.retrieveSchema},
		{StageAgentInit, p.initAgent},
		{StageGenerateQuery, p.generate},
		{StageExecuteQuery, p.execute},
		{StageFinalAnswer, p.finalize},
	}

	var failure *StageError
	for _, st := range stages {
		if failure = p.step(ctx, st.stage, st.run); failure != nil {
			break
		}
	}

	completions, toolResults := p.recorder.Drain()
	resp := Response{
		Steps:        Assemble(p.outcomes),
		LLMResponses: completions,
		SQLQueries:   toolResults,
	}
	if failure != nil {
		observability.ObserveQuery(string(failure.Stage), time.Since(started))
		return resp, failure
	}
	resp.FinalAnswer = p.answer
	observability.ObserveQuery("success", time.Since(started))
	return resp, nil
}

func (p *pipeline) step(ctx context.Context, stage Stage, run func(context.Context) (string, error)) *StageError {
	log := p.svc.Logger.With("stage", string(stage))
	log.DebugContext(ctx, "pipeline: stage started")

	started := time.Now()
	detail, err := run(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	observability.ObserveStage(string(stage), err == nil, time.Since(started))
	p.outcomes = append(p.outcomes, Outcome{Stage: stage, Detail: detail, Err: err})
	if err != nil {
		log.WarnContext(ctx, "pipeline: stage failed", "error", err)
		return &StageError{Stage: stage, Err: err}
	}
	log.DebugContext(ctx, "pipeline: stage completed", "elapsed", time.Since(started))
	return nil
}

func (p *pipeline) connect(ctx context.Context) (string, error) {
	if p.svc.DB == nil {
		return "", errors.New("database is not configured")
	}
	if err := p.svc.DB.PingContext(ctx); err != nil {
		return "", fmt.Errorf("ping database: %w", err)
	}
	return "", nil
}

func (p *pipeline) retrieveSchema(ctx context.Context) (string, error) {
	if p.svc.Schema == nil {
		return "", errors.New("schema provider is not configured")
	}
	text, err := p.svc.Schema.Schema(ctx)
	if err != nil {
		return "", err
	}
	p.schemaText = text
	return "", nil
}

func (p *pipeline) initAgent(ctx context.Context) (string, error) {
	if p.svc.Agents == nil {
		return "", errors.New("agent builder is not configured")
	}
	runner, err := p.svc.Agents.Build(ctx)
	if err != nil {
		return "", err
	}
	if runner == nil {
		return "", errors.New("agent builder returned no agent")
	}
	p.runner = runner
	return "", nil
}

func (p *pipeline) generate(ctx context.Context) (string, error) {
	result, err := p.runner.Run(ctx, p.question, p.schemaText, p.recorder)
	if err != nil {
		return "", err
	}
	p.result = result
	return fmt.Sprintf("Generated SQL for the question: '%s' (%d model completions, %d tool calls).",
		p.question, result.Rounds, result.ToolCalls), nil
}

func (p *pipeline) execute(context.Context) (string, error) {
	if strings.TrimSpace(p.result.FinalAnswer) == "" {
		return "", errors.New("agent produced no output")
	}
	return "", nil
}

func (p *pipeline) finalize(context.Context) (string, error) {
	answer, err := FormatAnswer(p.result.FinalAnswer)
	if err != nil {
		return "", err
	}
	p.answer = answer
	return "", nil
}

// FormatAnswer trims the agent output and checks it can be returned as text.
func FormatAnswer(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", errors.New("final answer is not valid UTF-8")
	}
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", errors.New("final answer is empty")
	}
	return answer, nil
}
