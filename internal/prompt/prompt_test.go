package prompt

import (
	"strings"
	"testing"

	"github.com/sqlscribe/sqlscribe/internal/schema"
)

func TestBuildIsDeterministic(t *testing.T) {
	builder := NewBuilder(schema.Default())
	first := builder.Build("List all users.", nil)
	second := builder.Build("List all users.", nil)
	if first != second {
		t.Fatal("identical inputs must produce identical prompts")
	}
}

func TestBuildContainsSchemaAndQuestion(t *testing.T) {
	builder := NewBuilder(schema.Default())
	rendered := builder.Build("List all users who placed an order.", nil)

	for _, fragment := range []string{
		"TABLE Users(user_id, name, email)",
		"TABLE Orders(order_id, user_id, product_id, quantity, order_date)",
		"QUESTION:\nList all users who placed an order.",
	} {
		if !strings.Contains(rendered, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, rendered)
		}
	}
	if strings.Contains(rendered, "PREVIOUS SQL") {
		t.Fatal("first-attempt prompt must not contain a retry block")
	}
}

func TestBuildQuotesFeedbackVerbatim(t *testing.T) {
	builder := NewBuilder(schema.Default())
	feedback := &Feedback{
		SQL: "SELECT nothing;",
		Violations: []string{
			"missing FROM clause",
			`unknown table "Invoices" is not in the schema`,
		},
	}
	rendered := builder.Build("List invoices.", feedback)

	if !strings.Contains(rendered, "PREVIOUS SQL:\nSELECT nothing;") {
		t.Fatalf("prompt missing previous SQL:\n%s", rendered)
	}
	for _, message := range feedback.Violations {
		if !strings.Contains(rendered, "- "+message+"\n") {
			t.Fatalf("prompt missing violation %q:\n%s", message, rendered)
		}
	}
}
