package mysql

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestQuoteIdent_Backticks(t *testing.T) {
	if got := quoteIdent("users"); got != "`users`" {
		t.Errorf("quoteIdent() = %q", got)
	}
}

func TestQuoteIdent_EscapesBacktick(t *testing.T) {
	if got := quoteIdent("weird`name"); got != "`weird``name`" {
		t.Errorf("quoteIdent() = %q", got)
	}
}

func TestTools_DeclaresFourTools(t *testing.T) {
	a := New()
	if len(a.Tools()) != 4 {
		t.Errorf("Tools() returned %d, want 4", len(a.Tools()))
	}
}

func TestQueryTable_BuildsFilteredPaginatedSQLAndScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	query := "SELECT `id`, `name` FROM `users` WHERE `active` = ? ORDER BY `id` DESC LIMIT 10 OFFSET 5"
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Ann"))

	args, _ := json.Marshal(map[string]any{
		"table_name":      "users",
		"select":          []string{"id", "name"},
		"filters":         map[string]any{"active": true},
		"limit":           10,
		"offset":          5,
		"order_by":        "id",
		"order_direction": "desc",
	})

	a := New()
	result, errMsg := a.queryTable(context.Background(), db, args)
	if errMsg != "" {
		t.Fatalf("queryTable() errMsg = %q", errMsg)
	}

	rows := result.(map[string]any)["rows"].([]map[string]any)
	if len(rows) != 1 || rows[0]["name"] != "Ann" {
		t.Errorf("rows = %v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQueryTable_NullFilterValueBecomesIsNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	query := "SELECT \\* FROM `users` WHERE `deleted_at` IS NULL LIMIT 50 OFFSET 0"
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	args, _ := json.Marshal(map[string]any{
		"table_name": "users",
		"filters":    map[string]any{"deleted_at": nil},
	})

	a := New()
	if _, errMsg := a.queryTable(context.Background(), db, args); errMsg != "" {
		t.Fatalf("queryTable() errMsg = %q", errMsg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExecuteSQL_RunsStatementAndScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, total FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}).AddRow(7, 42))

	args, _ := json.Marshal(map[string]string{"sql": "SELECT id, total FROM orders"})

	a := New()
	result, errMsg := a.executeSQL(context.Background(), db, args)
	if errMsg != "" {
		t.Fatalf("executeSQL() errMsg = %q", errMsg)
	}

	rows := result.(map[string]any)["rows"].([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != int64(7) {
		t.Errorf("rows = %v", rows)
	}
}

func TestExecuteSQL_RejectsNonSelectWithoutTouchingDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	args, _ := json.Marshal(map[string]string{"sql": "DELETE FROM users"})

	a := New()
	if _, errMsg := a.executeSQL(context.Background(), db, args); errMsg == "" {
		t.Fatal("executeSQL() errMsg = \"\", want a read-only rejection")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
