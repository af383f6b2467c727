package validate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sqlscribe/sqlscribe/internal/schema"
)

// SyntaxGate checks that a candidate parses as a generic SQL statement. It
// prepares the statement against an in-memory SQLite database seeded with
// the registry schema; preparing compiles the statement without running it.
type SyntaxGate struct {
	db *sql.DB
}

func NewSyntaxGate(registry *schema.Registry) (*SyntaxGate, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open syntax gate db: %w", err)
	}
	// A single pooled connection keeps the in-memory schema alive.
	db.SetMaxOpenConns(1)

	for _, ddl := range registry.DDL() {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed syntax gate schema: %w", err)
		}
	}
	return &SyntaxGate{db: db}, nil
}

// Parse returns nil when the statement tokenizes and parses. Prepare errors
// about unknown tables or columns are schema findings, not syntax, and are
// reported by the schema check instead; the gate swallows them.
func (g *SyntaxGate) Parse(ctx context.Context, statement string) error {
	stmt, err := g.db.PrepareContext(ctx, statement)
	if err == nil {
		_ = stmt.Close()
		return nil
	}
	message := err.Error()
	if strings.Contains(message, "no such table") || strings.Contains(message, "no such column") {
		return nil
	}
	return err
}

func (g *SyntaxGate) Close() error {
	return g.db.Close()
}
