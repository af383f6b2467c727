package prompt

import (
	"strings"

	"github.com/sqlscribe/sqlscribe/internal/schema"
)

// Feedback carries the previous attempt's candidate and its validation
// messages into the next prompt.
type Feedback struct {
	SQL        string
	Violations []string
}

type Builder struct {
	registry *schema.Registry
}

func NewBuilder(registry *schema.Registry) *Builder {
	return &Builder{registry: registry}
}

const preamble = `You are an SQL generator assistant. Use ONLY the schema below and produce RAW SQL as the only output (no explanation).`

const rules = `Rules:
1) Output ONLY valid SQL (single statement) and nothing else.
2) Use JOINs when necessary to combine tables.
3) Do NOT use forbidden commands: DROP, DELETE, TRUNCATE, UPDATE, INSERT, ALTER, CREATE, GRANT, REVOKE.
4) Always use table names exactly as in the schema.
5) Keep queries concise and produce valid SQL statements ending with a semicolon.`

const examples = `Examples:
Q: List all users who placed an order.
A: SELECT u.name, u.email
   FROM Users u
   JOIN Orders o ON u.user_id = o.user_id;

Q: Show order id, user name and product name for all orders.
A: SELECT o.order_id, u.name AS user_name, p.name AS product_name
   FROM Orders o
   JOIN Users u ON o.user_id = u.user_id
   JOIN Products p ON o.product_id = p.product_id;

Q: What are the top 5 most expensive products?
A: SELECT name, price
   FROM Products
   ORDER BY price DESC
   LIMIT 5;`

// Build renders the full generation prompt. Identical inputs always produce
// the identical prompt. When prev is non-nil the prompt quotes the previous
// candidate and each of its validation messages verbatim.
func (b *Builder) Build(question string, prev *Feedback) string {
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n\nSchema:\n")
	sb.WriteString(b.registry.PromptText())
	sb.WriteString("\n\n")
	sb.WriteString(rules)
	sb.WriteString("\n\n")
	sb.WriteString(examples)
	sb.WriteString("\n\nNow generate SQL for the question below. Output ONLY the SQL statement.\n\nQUESTION:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n")

	if prev != nil {
		sb.WriteString("\nYour previous attempt failed validation.\n\nPREVIOUS SQL:\n")
		sb.WriteString(strings.TrimSpace(prev.SQL))
		sb.WriteString("\n\nERRORS:\n")
		for _, violation := range prev.Violations {
			sb.WriteString("- ")
			sb.WriteString(violation)
			sb.WriteString("\n")
		}
		sb.WriteString("\nFix every error above and output ONLY the corrected SQL statement.\n")
	}

	return sb.String()
}
