package sqlshared

import (
	"encoding/json"
	"testing"
)

func quote(name string) string { return `"` + name + `"` }
func ph(n int) string          { return "?" }

func TestParseQueryTableArgs_Defaults(t *testing.T) {
	got, err := ParseQueryTableArgs(json.RawMessage(`{"table_name":"users"}`))
	if err != nil {
		t.Fatalf("ParseQueryTableArgs failed: %v", err)
	}
	if got.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got.Limit, DefaultLimit)
	}
	if got.OrderDirection != "asc" {
		t.Errorf("OrderDirection = %q, want asc", got.OrderDirection)
	}
}

func TestParseQueryTableArgs_ClampsLimit(t *testing.T) {
	got, err := ParseQueryTableArgs(json.RawMessage(`{"table_name":"users","limit":10000}`))
	if err != nil {
		t.Fatalf("ParseQueryTableArgs failed: %v", err)
	}
	if got.Limit != MaxLimit {
		t.Errorf("Limit = %d, want %d", got.Limit, MaxLimit)
	}
}

func TestParseQueryTableArgs_NegativeLimitDefaults(t *testing.T) {
	got, err := ParseQueryTableArgs(json.RawMessage(`{"table_name":"users","limit":-5}`))
	if err != nil {
		t.Fatalf("ParseQueryTableArgs failed: %v", err)
	}
	if got.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got.Limit, DefaultLimit)
	}
}

func TestParseQueryTableArgs_RequiresTableName(t *testing.T) {
	_, err := ParseQueryTableArgs(json.RawMessage(`{}`))
	if err == nil {
		t.Error("expected an error for missing table_name")
	}
}

func TestWhereClause_SortsKeysAndBindsValues(t *testing.T) {
	clause, params, err := WhereClause(map[string]any{"b": 2, "a": 1}, quote, ph)
	if err != nil {
		t.Fatalf("WhereClause failed: %v", err)
	}
	if clause != `WHERE "a" = ? AND "b" = ?` {
		t.Errorf("clause = %q", clause)
	}
	if len(params) != 2 || params[0] != 1 || params[1] != 2 {
		t.Errorf("params = %v", params)
	}
}

func TestWhereClause_NilValueBecomesIsNull(t *testing.T) {
	clause, params, err := WhereClause(map[string]any{"a": nil}, quote, ph)
	if err != nil {
		t.Fatalf("WhereClause failed: %v", err)
	}
	if clause != `WHERE "a" IS NULL` {
		t.Errorf("clause = %q", clause)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}
}

func TestWhereClause_RejectsBadIdentifier(t *testing.T) {
	_, _, err := WhereClause(map[string]any{"bad;key": 1}, quote, ph)
	if err == nil {
		t.Error("expected rejection for invalid filter key")
	}
}

func TestSelectClause_DefaultsToStar(t *testing.T) {
	got, err := SelectClause(nil, quote)
	if err != nil {
		t.Fatalf("SelectClause failed: %v", err)
	}
	if got != "*" {
		t.Errorf("SelectClause() = %q, want *", got)
	}
}

func TestOrderClause_EmptyWhenNoOrderBy(t *testing.T) {
	got, err := OrderClause(QueryTableArgs{}, quote)
	if err != nil {
		t.Fatalf("OrderClause failed: %v", err)
	}
	if got != "" {
		t.Errorf("OrderClause() = %q, want empty", got)
	}
}
