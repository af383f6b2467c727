package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestIntrospectGroupsColumnsByTable(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("orders", "order_id").
			AddRow("orders", "user_id").
			AddRow("users", "user_id").
			AddRow("users", "email"))

	registry, err := Introspect(context.Background(), db)
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if registry.TableCount() != 2 {
		t.Fatalf("TableCount() = %d", registry.TableCount())
	}
	orders, ok := registry.Lookup("Orders")
	if !ok {
		t.Fatal("orders should be known")
	}
	if len(orders.Columns) != 2 || orders.Columns[0] != "order_id" {
		t.Fatalf("orders columns = %v", orders.Columns)
	}
	assertSQLMock(t, mock)
}

func TestIntrospectFailsOnEmptyDatabase(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}))

	if _, err := Introspect(context.Background(), db); err == nil {
		t.Fatal("Introspect() should fail when no tables are found")
	}
	assertSQLMock(t, mock)
}
