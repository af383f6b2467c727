// Package loop drives the generate-then-validate rounds for one question.
// The exit conditions are data, not control flow: attempt index against the
// configured maximum, and pass against fail.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sqlscribe/sqlscribe/internal/model"
	"github.com/sqlscribe/sqlscribe/internal/observability"
	"github.com/sqlscribe/sqlscribe/internal/prompt"
	"github.com/sqlscribe/sqlscribe/internal/validate"
)

type State string

const (
	StateDrafting   State = "drafting"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// Attempt is one generate-then-validate round. Attempts are append-only:
// once recorded they are never mutated, only quoted into the next prompt and
// surfaced for diagnostics.
type Attempt struct {
	Index  int             `json:"index"`
	Prompt string          `json:"-"`
	Raw    string          `json:"-"`
	Result validate.Result `json:"result"`
}

// Outcome is the terminal result of a session. SQL is the accepted statement
// when State is StateAccepted, or the last (invalid) candidate when
// StateExhausted; the caller decides whether to surface the latter.
type Outcome struct {
	SessionID string    `json:"session_id"`
	State     State     `json:"state"`
	SQL       string    `json:"sql"`
	Attempts  []Attempt `json:"attempts"`
}

type Engine struct {
	Model       model.Client
	Prompts     *prompt.Builder
	Validator   *validate.Validator
	MaxAttempts int
	Logger      *slog.Logger
}

// Run executes the correction loop for one question. Strictly sequential: an
// attempt's model call and validation finish before the next attempt starts,
// because each retry prompt depends on the previous attempt's violations.
// Model faults abort the session; validation failures never do.
func (e *Engine) Run(ctx context.Context, question string) (Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Outcome{}, fmt.Errorf("question is required")
	}
	if e.MaxAttempts <= 0 {
		return Outcome{}, fmt.Errorf("max attempts must be positive, got %d", e.MaxAttempts)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessionID := uuid.NewString()
	logger = logger.With(slog.String("session_id", sessionID))

	var prev *prompt.Feedback
	attempts := make([]Attempt, 0, e.MaxAttempts)

	for index := 1; index <= e.MaxAttempts; index++ {
		if err := ctx.Err(); err != nil {
			return Outcome{SessionID: sessionID, Attempts: attempts}, err
		}

		rendered := e.Prompts.Build(question, prev)
		logger.Debug("drafting candidate",
			slog.Int("attempt", index),
			slog.Int("max_attempts", e.MaxAttempts),
			slog.String("state", string(StateDrafting)),
		)

		observability.IncrementTranslationAttempt()
		start := time.Now()
		raw, err := e.Model.Generate(ctx, rendered)
		observability.ObserveModelLatency(time.Since(start))
		if err != nil {
			observability.IncrementSessionOutcome("model_unavailable")
			return Outcome{SessionID: sessionID, Attempts: attempts},
				fmt.Errorf("attempt %d: %w", index, err)
		}

		result := e.Validator.Check(ctx, raw)
		attempt := Attempt{Index: index, Prompt: rendered, Raw: raw, Result: result}
		attempts = append(attempts, attempt)

		if result.OK() {
			logger.Info("validation passed",
				slog.Int("attempt", index),
				slog.String("state", string(StateAccepted)),
			)
			observability.IncrementSessionOutcome("accepted")
			return Outcome{
				SessionID: sessionID,
				State:     StateAccepted,
				SQL:       result.SQL,
				Attempts:  attempts,
			}, nil
		}

		messages := result.Messages()
		logger.Warn("validation failed",
			slog.Int("attempt", index),
			slog.String("state", string(StateValidating)),
			slog.Any("violations", messages),
		)
		for _, violation := range result.Violations {
			observability.IncrementValidationViolation(string(violation.Kind))
		}

		candidate := result.SQL
		if candidate == "" {
			candidate = strings.TrimSpace(raw)
		}
		prev = &prompt.Feedback{SQL: candidate, Violations: messages}
	}

	logger.Warn("all attempts exhausted",
		slog.Int("attempts", len(attempts)),
		slog.String("state", string(StateExhausted)),
	)
	observability.IncrementSessionOutcome("exhausted")

	last := attempts[len(attempts)-1]
	candidate := last.Result.SQL
	if candidate == "" {
		candidate = strings.TrimSpace(last.Raw)
	}
	return Outcome{
		SessionID: sessionID,
		State:     StateExhausted,
		SQL:       candidate,
		Attempts:  attempts,
	}, nil
}

// Translate runs the loop with an optional per-invocation attempt override.
// A zero maxAttempts keeps the engine's configured value.
func (e *Engine) Translate(ctx context.Context, question string, maxAttempts int) (Outcome, error) {
	engine := *e
	if maxAttempts != 0 {
		engine.MaxAttempts = maxAttempts
	}
	return engine.Run(ctx, question)
}
