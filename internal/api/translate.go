package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlscribe/sqlscribe/internal/loop"
	"github.com/sqlscribe/sqlscribe/internal/model"
	"github.com/sqlscribe/sqlscribe/internal/validate"
)

type translateRequest struct {
	Question    string `json:"question"`
	MaxAttempts int    `json:"max_attempts"`
}

type attemptPayload struct {
	Index      int                  `json:"index"`
	SQL        string               `json:"sql"`
	Violations []validate.Violation `json:"violations"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "translation is not configured", false, nil)
		return
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if req.MaxAttempts < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MAX_ATTEMPTS", "max_attempts must not be negative", false, nil)
		return
	}

	outcome, err := deps.Translator.Translate(r.Context(), req.Question, req.MaxAttempts)
	if err != nil {
		if errors.Is(err, model.ErrUnavailable) {
			writeError(r.Context(), w, http.StatusBadGateway, "MODEL_UNAVAILABLE", "language model backend is unreachable", true, map[string]any{"details": err.Error()})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
		return
	}

	switch outcome.State {
	case loop.StateAccepted:
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": outcome.SessionID,
			"sql":        outcome.SQL,
			"attempts":   len(outcome.Attempts),
		})
	case loop.StateExhausted:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "VALIDATION_EXHAUSTED", "no valid SQL produced within the attempt limit", false, map[string]any{
			"session_id": outcome.SessionID,
			"last_sql":   outcome.SQL,
			"attempts":   attemptPayloads(outcome.Attempts),
		})
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "UNEXPECTED_STATE", "translation finished in an unexpected state", false, map[string]any{
			"session_id": outcome.SessionID,
			"state":      string(outcome.State),
		})
	}
}

func attemptPayloads(attempts []loop.Attempt) []attemptPayload {
	payloads := make([]attemptPayload, 0, len(attempts))
	for _, attempt := range attempts {
		sql := attempt.Result.SQL
		if sql == "" {
			sql = strings.TrimSpace(attempt.Raw)
		}
		payloads = append(payloads, attemptPayload{
			Index:      attempt.Index,
			SQL:        sql,
			Violations: attempt.Result.Violations,
		})
	}
	return payloads
}
