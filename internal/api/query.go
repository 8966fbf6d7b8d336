package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/querytrace/querytrace/internal/auth"
	"github.com/querytrace/querytrace/internal/nlquery"
)

type questionRequest struct {
	Question string `json:"question"`
}

var stageErrorCodes = map[error]string{
	nlquery.ErrConnection:       "DATABASE_CONNECTION_ERROR",
	nlquery.ErrAgentInit:        "AGENT_INIT_ERROR",
	nlquery.ErrQueryGeneration:  "QUERY_GENERATION_ERROR",
	nlquery.ErrQueryExecution:   "QUERY_EXECUTION_ERROR",
	nlquery.ErrAnswerFormatting: "ANSWER_FORMATTING_ERROR",
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query pipeline is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request questionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	response, err := deps.Answerer.Answer(r.Context(), request.Question)
	if err != nil {
		writeStageError(deps, w, r, response, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func writeStageError(deps Dependencies, w http.ResponseWriter, r *http.Request, response nlquery.Response, err error) {
	var stageErr *nlquery.StageError
	if !errors.As(err, &stageErr) {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "query pipeline failed", "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "internal error", false, nil)
		return
	}

	code := "INTERNAL"
	for sentinel, candidate := range stageErrorCodes {
		if errors.Is(err, sentinel) {
			code = candidate
			break
		}
	}
	writeError(r.Context(), w, http.StatusInternalServerError, code, stageErr.Message(), false, map[string]any{
		"stage": string(stageErr.Stage),
		"steps": response.Steps,
	})
}
