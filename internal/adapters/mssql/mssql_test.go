package mssql

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestQuoteIdent_WrapsEachSegment(t *testing.T) {
	if got := quoteIdent("dbo.users"); got != "[dbo].[users]" {
		t.Errorf("quoteIdent() = %q", got)
	}
}

func TestSplitSchemaTable_DefaultsToDbo(t *testing.T) {
	schema, table := splitSchemaTable("users")
	if schema != "dbo" || table != "users" {
		t.Errorf("splitSchemaTable() = (%q, %q)", schema, table)
	}
}

func TestSplitSchemaTable_ExplicitSchema(t *testing.T) {
	schema, table := splitSchemaTable("sales.orders")
	if schema != "sales" || table != "orders" {
		t.Errorf("splitSchemaTable() = (%q, %q)", schema, table)
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

	query := "SELECT \\* FROM \\[orders\\] WHERE \\[status\\] = \\? ORDER BY \\[id\\] DESC OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY"
	mock.ExpectQuery(query).
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(1, "open"))

	args, _ := json.Marshal(map[string]any{
		"table_name":      "orders",
		"filters":         map[string]any{"status": "open"},
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
	if len(rows) != 1 || rows[0]["status"] != "open" {
		t.Errorf("rows = %v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQueryTable_NoOrderByFallsBackToSelectNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	query := regexp.QuoteMeta("SELECT * FROM [users] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 50 ROWS ONLY")
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	args, _ := json.Marshal(map[string]any{"table_name": "users"})

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

	args, _ := json.Marshal(map[string]string{"sql": "DROP TABLE users"})

	a := New()
	if _, errMsg := a.executeSQL(context.Background(), db, args); errMsg == "" {
		t.Fatal("executeSQL() errMsg = \"\", want a read-only rejection")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
