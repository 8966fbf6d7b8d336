package nlquery

import "fmt"

type Stage string

const (
	StageConnect        Stage = "connect"
	StageRetrieveSchema Stage = "retrieve_schema"
	StageAgentInit      Stage = "agent_init"
	StageGenerateQuery  Stage = "generate_query"
	StageExecuteQuery   Stage = "execute_query"
	StageFinalAnswer    Stage = "final_answer"
)

// Step is one entry of the execution trace returned to callers.
type Step struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Outcome is the result of one stage. Detail overrides the default success
// text; Err marks the stage as failed.
type Outcome struct {
	Stage  Stage
	Detail string
	Err    error
}

type stageLabels struct {
	ok       string
	okDetail string
	failed   string
	category error
	message  string
}

var labels = map[Stage]stageLabels{
	StageConnect: {
		ok:       "Connected to Database",
		okDetail: "Database connection established.",
		failed:   "Error Connecting to Database",
		category: ErrConnection,
		message:  "Database connection error.",
	},
	StageRetrieveSchema: {
		ok:       "Retrieved Schema",
		okDetail: "Successfully retrieved the database schema.",
		failed:   "Error Retrieving Schema",
		category: ErrConnection,
		message:  "Database connection error.",
	},
	StageAgentInit: {
		failed:   "Error Initializing Agent",
		category: ErrAgentInit,
		message:  "Agent initialization error.",
	},
	StageGenerateQuery: {
		ok:       "SQL Query Generated",
		okDetail: "Generated SQL for the question.",
		failed:   "Error Generating SQL Query",
		category: ErrQueryGeneration,
		message:  "Error generating SQL query.",
	},
	StageExecuteQuery: {
		ok:       "SQL Query Executed",
		okDetail: "SQL query executed successfully.",
		failed:   "Error Executing SQL Query",
		category: ErrQueryExecution,
		message:  "Error executing SQL query.",
	},
	StageFinalAnswer: {
		ok:       "Final Answer Generated",
		okDetail: "Final answer generated successfully.",
		failed:   "Error Generating Final Answer",
		category: ErrAnswerFormatting,
		message:  "Error generating final answer.",
	},
}

func (s Stage) category() error {
	if l, ok := labels[s]; ok {
		return l.category
	}
	return fmt.Errorf("unknown stage %q", string(s))
}

func (s Stage) message() string {
	if l, ok := labels[s]; ok {
		return l.message
	}
	return "Internal error."
}

// Assemble converts stage outcomes into the ordered trace. The trace always
// opens with the connection attempt and ends at the first failed stage.
// Stages without a success label (agent initialization) only appear when
// they fail.
func Assemble(outcomes []Outcome) []Step {
	steps := []Step{{
		Step:   "Connecting to Database",
		Detail: "Establishing connection to the database to retrieve schema.",
	}}
	for _, outcome := range outcomes {
		l := labels[outcome.Stage]
		if outcome.Err != nil {
			steps = append(steps, Step{Step: l.failed, Detail: outcome.Err.Error()})
			return steps
		}
		if l.ok == "" {
			continue
		}
		detail := outcome.Detail
		if detail == "" {
			detail = l.okDetail
		}
		steps = append(steps, Step{Step: l.ok, Detail: detail})
	}
	return steps
}
