package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTools_DeclaresFourTools(t *testing.T) {
	a := New()
	if len(a.Tools()) != 4 {
		t.Errorf("Tools() returned %d, want 4", len(a.Tools()))
	}
}

func TestListTables_FiltersParameterizedAndRPCPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"definitions": {},
			"paths": {
				"/": {},
				"/users": {},
				"/orders": {},
				"/rpc/execute_readonly_query": {},
				"/users/{id}": {}
			}
		}`))
	}))
	defer srv.Close()

	a := New()
	config := map[string]string{"project_url": srv.URL, "service_role_key": "test-key"}

	payload, errMsg := a.Handle(context.Background(), "list_tables", nil, config)
	if errMsg != "" {
		t.Fatalf("Handle() error = %q", errMsg)
	}

	result, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload is %T, want map[string]any", payload)
	}
	tables, ok := result["tables"].([]string)
	if !ok {
		t.Fatalf("tables is %T, want []string", result["tables"])
	}
	if len(tables) != 2 {
		t.Errorf("tables = %v, want exactly [users orders]", tables)
	}
}

func TestExecuteSQL_HintsWhenHelperMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New()
	config := map[string]string{"project_url": srv.URL, "service_role_key": "test-key"}

	payload, errMsg := a.Handle(context.Background(), "execute_sql", []byte(`{"sql":"SELECT 1"}`), config)
	if errMsg != "" {
		t.Fatalf("Handle() should return a hint, not an error; got %q", errMsg)
	}

	result, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload is %T, want map[string]any", payload)
	}
	if _, ok := result["hint"]; !ok {
		t.Errorf("payload = %v, want a hint key", result)
	}
}

func TestExecuteSQL_RejectsWriteStatement(t *testing.T) {
	a := New()
	config := map[string]string{"project_url": "http://unused.example", "service_role_key": "test-key"}

	_, errMsg := a.Handle(context.Background(), "execute_sql", []byte(`{"sql":"DELETE FROM users"}`), config)
	if errMsg == "" {
		t.Error("Handle() should reject a DELETE statement before making any request")
	}
}
