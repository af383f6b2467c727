package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sqlscribe/sqlscribe/internal/auth"
	"github.com/sqlscribe/sqlscribe/internal/config"
	"github.com/sqlscribe/sqlscribe/internal/loop"
	"github.com/sqlscribe/sqlscribe/internal/model"
	"github.com/sqlscribe/sqlscribe/internal/schema"
	"github.com/sqlscribe/sqlscribe/internal/validate"
)

type fakeTranslator struct {
	outcome     loop.Outcome
	err         error
	question    string
	maxAttempts int
}

func (f *fakeTranslator) Translate(_ context.Context, question string, maxAttempts int) (loop.Outcome, error) {
	f.question = question
	f.maxAttempts = maxAttempts
	return f.outcome, f.err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("sqlscribe-api", func(key string) (string, bool) {
		if key == "SQLSCRIBE_PROFILE" {
			return "test", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func postTranslate(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["service"] != "sqlscribe-api" {
		t.Fatalf("service = %v", payload["service"])
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{
		Readiness: func(context.Context) error { return errors.New("model base url is not configured") },
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestTranslateAccepted(t *testing.T) {
	translator := &fakeTranslator{outcome: loop.Outcome{
		SessionID: "s-1",
		State:     loop.StateAccepted,
		SQL:       "SELECT name FROM Users;",
		Attempts:  []loop.Attempt{{Index: 1}},
	}}
	handler := NewHandler(testConfig(t), Dependencies{Translator: translator})

	rr := postTranslate(t, handler, `{"question":"names of all users"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["sql"] != "SELECT name FROM Users;" {
		t.Fatalf("sql = %v", payload["sql"])
	}
	if payload["session_id"] != "s-1" {
		t.Fatalf("session_id = %v", payload["session_id"])
	}
	if payload["attempts"] != float64(1) {
		t.Fatalf("attempts = %v", payload["attempts"])
	}
	if translator.question != "names of all users" {
		t.Fatalf("translator question = %q", translator.question)
	}
	if translator.maxAttempts != 0 {
		t.Fatalf("maxAttempts = %d, want 0 when omitted", translator.maxAttempts)
	}
}

func TestTranslateExhausted(t *testing.T) {
	translator := &fakeTranslator{outcome: loop.Outcome{
		SessionID: "s-2",
		State:     loop.StateExhausted,
		SQL:       "DROP TABLE Users;",
		Attempts: []loop.Attempt{{
			Index: 1,
			Result: validate.Result{
				SQL: "DROP TABLE Users;",
				Violations: []validate.Violation{{
					Kind:    validate.KindForbiddenKeyword,
					Message: `forbidden keyword "drop" in statement`,
				}},
			},
		}},
	}}
	handler := NewHandler(testConfig(t), Dependencies{Translator: translator})

	rr := postTranslate(t, handler, `{"question":"remove everyone","max_attempts":1}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["error_code"] != "VALIDATION_EXHAUSTED" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
	extra, ok := payload["context"].(map[string]any)
	if !ok {
		t.Fatalf("context = %v", payload["context"])
	}
	if extra["last_sql"] != "DROP TABLE Users;" {
		t.Fatalf("last_sql = %v", extra["last_sql"])
	}
	attempts, ok := extra["attempts"].([]any)
	if !ok || len(attempts) != 1 {
		t.Fatalf("attempts = %v", extra["attempts"])
	}
	if translator.maxAttempts != 1 {
		t.Fatalf("maxAttempts = %d, want 1", translator.maxAttempts)
	}
}

func TestTranslateModelFault(t *testing.T) {
	translator := &fakeTranslator{err: fmt.Errorf("attempt 1: %w", model.ErrUnavailable)}
	handler := NewHandler(testConfig(t), Dependencies{Translator: translator})

	rr := postTranslate(t, handler, `{"question":"list users"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["error_code"] != "MODEL_UNAVAILABLE" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
	if payload["retryable"] != true {
		t.Fatalf("retryable = %v", payload["retryable"])
	}
}

func TestTranslateRejectsBadRequests(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{Translator: &fakeTranslator{}})

	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"question":`, "INVALID_JSON"},
		{"unknown field", `{"question":"x","model":"y"}`, "INVALID_JSON"},
		{"missing question", `{}`, "QUESTION_REQUIRED"},
		{"blank question", `{"question":"   "}`, "QUESTION_REQUIRED"},
		{"negative attempts", `{"question":"x","max_attempts":-1}`, "INVALID_MAX_ATTEMPTS"},
	}
	for _, tc := range cases {
		rr := postTranslate(t, handler, tc.body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.name, rr.Code)
		}
		if payload := decodeBody(t, rr); payload["error_code"] != tc.code {
			t.Fatalf("%s: error_code = %v, want %s", tc.name, payload["error_code"], tc.code)
		}
	}
}

func TestSchemaEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{Registry: schema.Default()})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	tables, ok := payload["tables"].([]any)
	if !ok || len(tables) != 3 {
		t.Fatalf("tables = %v", payload["tables"])
	}
}

func TestAuthProtectsTranslateButNotHealth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true

	validator, err := auth.NewStaticAPIKeyValidator("k1:cli-team")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	translator := &fakeTranslator{outcome: loop.Outcome{
		SessionID: "s-3",
		State:     loop.StateAccepted,
		SQL:       "SELECT name FROM Users;",
		Attempts:  []loop.Attempt{{Index: 1}},
	}}
	handler := NewHandler(cfg, Dependencies{
		Translator:     translator,
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	rr := postTranslate(t, handler, `{"question":"list users"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated translate status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(`{"question":"list users"}`))
	req.Header.Set("X-API-Key", "k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated translate status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
}
