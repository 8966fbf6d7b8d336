package nlquery

import (
	"errors"
	"fmt"
)

var (
	ErrConnection       = errors.New("database connection error")
	ErrAgentInit        = errors.New("agent initialization error")
	ErrQueryGeneration  = errors.New("query generation error")
	ErrQueryExecution   = errors.New("query execution error")
	ErrAnswerFormatting = errors.New("answer formatting error")
)

// StageError reports the stage at which a request stopped. It matches both
// the category sentinel of its stage and the underlying cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage.category(), e.Err}
}

// Message is the fixed user-facing text for the failed stage.
func (e *StageError) Message() string {
	return e.Stage.message()
}
