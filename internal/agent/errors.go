package agent

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseInit Phase = "init"
	PhaseRun  Phase = "run"
)

var (
	ErrIterationLimit = errors.New("agent stopped after reaching the iteration limit")
	ErrRunTimeout     = errors.New("agent stopped after reaching the time limit")
	ErrMissingAPIKey  = errors.New("completion service api key is not configured")
)

// Error is returned by Builder.Build (PhaseInit) and Agent.Run (PhaseRun).
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPhase reports whether err is an agent Error of the given phase.
func IsPhase(err error, phase Phase) bool {
	var agentErr *Error
	return errors.As(err, &agentErr) && agentErr.Phase == phase
}
