package schema

import (
	"fmt"
	"strings"
)

// Table is one known table: its name plus its column names in definition order.
type Table struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
}

// Registry is the fixed set of tables the generator may reference. It is
// built once at startup and read-only afterwards, so it is safe to share
// across sessions.
type Registry struct {
	tables []Table
	byName map[string]Table
}

func New(tables []Table) (*Registry, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	registry := &Registry{
		tables: make([]Table, 0, len(tables)),
		byName: make(map[string]Table, len(tables)),
	}
	for _, table := range tables {
		name := strings.TrimSpace(table.Name)
		if name == "" {
			return nil, fmt.Errorf("table name is required")
		}
		key := strings.ToLower(name)
		if _, exists := registry.byName[key]; exists {
			return nil, fmt.Errorf("duplicate table %q", name)
		}
		if len(table.Columns) == 0 {
			return nil, fmt.Errorf("table %q has no columns", name)
		}
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			column = strings.TrimSpace(column)
			if column == "" {
				return nil, fmt.Errorf("table %q has an empty column name", name)
			}
			columns = append(columns, column)
		}
		stored := Table{Name: name, Columns: columns}
		registry.tables = append(registry.tables, stored)
		registry.byName[key] = stored
	}
	return registry, nil
}

// Default returns the built-in demo schema.
func Default() *Registry {
	registry, err := New([]Table{
		{Name: "Users", Columns: []string{"user_id", "name", "email"}},
		{Name: "Orders", Columns: []string{"order_id", "user_id", "product_id", "quantity", "order_date"}},
		{Name: "Products", Columns: []string{"product_id", "name", "price"}},
	})
	if err != nil {
		panic(err)
	}
	return registry
}

// Lookup resolves a table by name, case-insensitively. A missing table is a
// normal not-found result, never an error.
func (r *Registry) Lookup(name string) (Table, bool) {
	table, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return table, ok
}

// Tables returns the tables in definition order.
func (r *Registry) Tables() []Table {
	tables := make([]Table, len(r.tables))
	copy(tables, r.tables)
	return tables
}

func (r *Registry) TableCount() int {
	return len(r.tables)
}

// PromptText renders the schema the way it appears in generation prompts,
// one "TABLE Name(col, col, ...)" line per table.
func (r *Registry) PromptText() string {
	var sb strings.Builder
	for i, table := range r.tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("TABLE %s(%s)", table.Name, strings.Join(table.Columns, ", ")))
	}
	return sb.String()
}

// DDL renders one CREATE TABLE statement per table. Columns are typeless,
// which SQLite accepts; the statements exist only to seed the validator's
// syntax gate.
func (r *Registry) DDL() []string {
	statements := make([]string, 0, len(r.tables))
	for _, table := range r.tables {
		statements = append(statements, fmt.Sprintf("CREATE TABLE %s (%s);", table.Name, strings.Join(table.Columns, ", ")))
	}
	return statements
}
