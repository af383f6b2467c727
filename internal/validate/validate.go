// Package validate applies the rule set that gates generated SQL. The checks
// are structural and lexical: they accept or reject a candidate statement,
// they do not judge whether it answers the question.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlscribe/sqlscribe/internal/schema"
)

type Kind string

const (
	KindEmptyOrUnextractable Kind = "empty_or_unextractable"
	KindMissingSelect        Kind = "missing_select"
	KindMissingFrom          Kind = "missing_from"
	KindUnknownTable         Kind = "unknown_table"
	KindForbiddenKeyword     Kind = "forbidden_keyword"
	KindSyntaxError          Kind = "syntax_error"
)

type Violation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result is the outcome of one validation pass. SQL is the extracted
// candidate statement, empty when nothing could be extracted. Violations are
// in check order and the order is stable across runs.
type Result struct {
	SQL        string      `json:"sql"`
	Violations []Violation `json:"violations,omitempty"`
}

func (r Result) OK() bool {
	return len(r.Violations) == 0
}

func (r Result) Messages() []string {
	messages := make([]string, 0, len(r.Violations))
	for _, violation := range r.Violations {
		messages = append(messages, violation.Message)
	}
	return messages
}

// forbiddenKeywords are statement kinds a read-only generator must never
// emit. Ordered so repeated validations report them identically.
var forbiddenKeywords = []string{
	"drop", "delete", "truncate", "update", "insert", "alter", "create", "grant", "revoke",
}

var (
	selectStatementRE = regexp.MustCompile(`(?is)\bselect\b.*?;`)
	selectKeywordRE   = regexp.MustCompile(`(?i)\bselect\b`)
	fromKeywordRE     = regexp.MustCompile(`(?i)\bfrom\b`)
	tableRefRE        = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	forbiddenREs = compileForbidden()
)

func compileForbidden() []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(forbiddenKeywords))
	for _, keyword := range forbiddenKeywords {
		compiled = append(compiled, regexp.MustCompile(`(?i)\b`+keyword+`\b`))
	}
	return compiled
}

type Validator struct {
	registry *schema.Registry
	gate     *SyntaxGate
}

// New builds a validator over the given registry. The gate may be nil, which
// disables the parser check and keeps the lexical ones.
func New(registry *schema.Registry, gate *SyntaxGate) *Validator {
	return &Validator{registry: registry, gate: gate}
}

// Extract isolates the SQL statement from raw model output. Fallback rules,
// in order: first SELECT..; match, then the first semicolon-terminated
// substring, then the whole trimmed string. Returns "" when nothing remains.
func Extract(raw string) string {
	cleaned := stripFences(raw)
	if match := selectStatementRE.FindString(cleaned); match != "" {
		return strings.TrimSpace(match)
	}
	if idx := strings.Index(cleaned, ";"); idx >= 0 {
		candidate := strings.TrimSpace(cleaned[:idx+1])
		if strings.TrimSpace(strings.TrimSuffix(candidate, ";")) == "" {
			return ""
		}
		return candidate
	}
	return cleaned
}

func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}

// Check runs every rule against the candidate and returns the full violation
// set in check order; it never short-circuits. Pure: same input, same result.
func (v *Validator) Check(ctx context.Context, raw string) Result {
	statement := Extract(raw)
	var violations []Violation

	target := statement
	if statement == "" {
		violations = append(violations, Violation{
			Kind:    KindEmptyOrUnextractable,
			Message: "no SQL statement could be extracted from the model output",
		})
		target = strings.TrimSpace(raw)
	}

	if !selectKeywordRE.MatchString(target) {
		violations = append(violations, Violation{Kind: KindMissingSelect, Message: "missing SELECT clause"})
	}
	if !fromKeywordRE.MatchString(target) {
		violations = append(violations, Violation{Kind: KindMissingFrom, Message: "missing FROM clause"})
	}

	if statement == "" {
		return Result{SQL: statement, Violations: violations}
	}

	for _, name := range tableRefs(statement) {
		if _, ok := v.registry.Lookup(name); !ok {
			violations = append(violations, Violation{
				Kind:    KindUnknownTable,
				Message: fmt.Sprintf("unknown table %q is not in the schema", name),
			})
		}
	}

	for i, pattern := range forbiddenREs {
		if pattern.MatchString(statement) {
			violations = append(violations, Violation{
				Kind:    KindForbiddenKeyword,
				Message: fmt.Sprintf("forbidden keyword %q is not allowed in a read-only query", forbiddenKeywords[i]),
			})
		}
	}

	lexical := lexicalSyntaxViolations(statement)
	violations = append(violations, lexical...)
	if len(lexical) == 0 && v.gate != nil {
		if err := v.gate.Parse(ctx, statement); err != nil {
			violations = append(violations, Violation{
				Kind:    KindSyntaxError,
				Message: fmt.Sprintf("sql parser rejected the statement: %v", err),
			})
		}
	}

	return Result{SQL: statement, Violations: violations}
}

func tableRefs(statement string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, match := range tableRefRE.FindAllStringSubmatch(statement, -1) {
		name := match[1]
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, name)
	}
	return refs
}

// lexicalSyntaxViolations covers the cheap well-formedness rules that do not
// need a parser. The parser gate only runs when all of these pass.
func lexicalSyntaxViolations(statement string) []Violation {
	var violations []Violation
	if strings.Count(statement, ";") > 1 {
		violations = append(violations, Violation{
			Kind:    KindSyntaxError,
			Message: "multiple statements detected (more than one semicolon)",
		})
	}
	if !strings.HasSuffix(statement, ";") {
		violations = append(violations, Violation{
			Kind:    KindSyntaxError,
			Message: "statement must end with a semicolon",
		})
	}
	if !balancedBrackets(statement) {
		violations = append(violations, Violation{
			Kind:    KindSyntaxError,
			Message: "mismatched parentheses or brackets",
		})
	}
	if !balancedQuotes(statement) {
		violations = append(violations, Violation{
			Kind:    KindSyntaxError,
			Message: "mismatched quotes",
		})
	}
	return violations
}

func balancedBrackets(statement string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, ch := range statement {
		switch ch {
		case '(', '[', '{':
			stack = append(stack, ch)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func balancedQuotes(statement string) bool {
	return strings.Count(statement, "'")%2 == 0 && strings.Count(statement, `"`)%2 == 0
}
