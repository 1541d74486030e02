package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/crypto"
	"github.com/openmcp/data-gateway/internal/store"
	"github.com/openmcp/data-gateway/internal/usage"
)

type fakeAdapter struct {
	tools   []adapters.ToolDefinition
	payload any
	errMsg  string
}

func (f *fakeAdapter) Tools() []adapters.ToolDefinition { return f.tools }

func (f *fakeAdapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	return f.payload, f.errMsg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, s store.Store, adapter adapters.Adapter) *Dispatcher {
	t.Helper()
	masterKey, err := crypto.NewMasterKey([]byte("test-master-key-not-for-prod-01"))
	if err != nil {
		t.Fatalf("NewMasterKey() error = %v", err)
	}
	registry := adapters.NewRegistry(map[string]adapters.Adapter{"stripe": adapter})
	q := usage.New(s, testLogger(), 16, 1)
	t.Cleanup(func() { _ = q.Close(context.Background()) })
	return New(s, masterKey, registry, q, testLogger(), "test-gateway", "0.0.0-test")
}

func seedResolvedEndpoint(s *store.MockStore, active bool, allowedTools []string) store.ResolvedEndpoint {
	ep := store.Endpoint{
		ID:             "ep-1",
		CredentialID:   "cred-1",
		OrganizationID: "org-1",
		ServiceKind:    "stripe",
		Active:         active,
		AllowedTools:   allowedTools,
	}
	cred := store.Credential{
		ID:             "cred-1",
		OrganizationID: "org-1",
		ServiceKind:    "stripe",
		Config:         map[string]string{"secret_key": "sk_test_123"},
	}
	s.SeedEndpoint(ep, cred)
	s.SeedSubscription(store.Subscription{OrganizationID: "org-1", Plan: store.PlanTeam, Status: store.SubscriptionActive})
	return store.ResolvedEndpoint{Endpoint: ep, Credential: cred}
}

func TestDispatch_Initialize(t *testing.T) {
	s := store.NewMockStore()
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, &fakeAdapter{})

	resp, noContent := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "initialize"}, resolved)
	if noContent {
		t.Fatal("initialize should not be a no-content reply")
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("Result is %T, want map[string]any", resp.Result)
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion = %v, want %v", result["protocolVersion"], ProtocolVersion)
	}
}

func TestDispatch_NotificationsInitialized_IsNoContent(t *testing.T) {
	s := store.NewMockStore()
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, &fakeAdapter{})

	resp, noContent := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "notifications/initialized"}, resolved)
	if !noContent {
		t.Error("notifications/initialized should report noContent = true")
	}
	if resp != nil {
		t.Error("notifications/initialized should return a nil response")
	}
}

func TestDispatch_Ping(t *testing.T) {
	s := store.NewMockStore()
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, &fakeAdapter{})

	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: "abc", Method: "ping"}, resolved)
	if resp.Error != nil {
		t.Fatalf("ping returned error %+v", resp.Error)
	}
	if resp.ID != "abc" {
		t.Errorf("ID = %v, want echoed id", resp.ID)
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	s := store.NewMockStore()
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, &fakeAdapter{})

	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "bogus"}, resolved)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
}

func TestDispatch_ToolsList_FiltersByAllowList(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{tools: []adapters.ToolDefinition{
		{Name: "list_charges"}, {Name: "list_customers"},
	}}
	resolved := seedResolvedEndpoint(s, true, []string{"list_charges"})
	d := newTestDispatcher(t, s, adapter)

	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/list"}, resolved)
	result := resp.Result.(map[string]any)
	tools := result["tools"].([]adapters.ToolDefinition)
	if len(tools) != 1 || tools[0].Name != "list_charges" {
		t.Errorf("tools = %v, want exactly [list_charges]", tools)
	}
}

func TestDispatch_ToolsCall_MissingName(t *testing.T) {
	s := store.NewMockStore()
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, &fakeAdapter{})

	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`{}`)}, resolved)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
}

func TestDispatch_ToolsCall_UnknownTool(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{tools: []adapters.ToolDefinition{{Name: "list_charges"}}}
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, adapter)

	params, _ := json.Marshal(map[string]any{"name": "nonexistent_tool"})
	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}, resolved)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
}

func TestDispatch_ToolsCall_NotInAllowList(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{tools: []adapters.ToolDefinition{{Name: "list_charges"}, {Name: "list_customers"}}}
	resolved := seedResolvedEndpoint(s, true, []string{"list_charges"})
	d := newTestDispatcher(t, s, adapter)

	params, _ := json.Marshal(map[string]any{"name": "list_customers"})
	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}, resolved)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
}

func TestDispatch_ToolsCall_SuccessTranslatesPayload(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{
		tools:   []adapters.ToolDefinition{{Name: "list_charges"}},
		payload: map[string]any{"charges": []string{"ch_1"}},
	}
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, adapter)

	params, _ := json.Marshal(map[string]any{"name": "list_charges", "arguments": map[string]any{}})
	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}, resolved)
	if resp.Error != nil {
		t.Fatalf("Error = %+v, want nil", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != false {
		t.Errorf("isError = %v, want false", result["isError"])
	}

	time.Sleep(10 * time.Millisecond) // usage queue drains asynchronously
	if len(s.UsageRecords()) != 1 {
		t.Errorf("UsageRecords() = %d, want 1", len(s.UsageRecords()))
	}
}

func TestDispatch_ToolsCall_AdapterErrorIsSuccessWithIsError(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{
		tools:  []adapters.ToolDefinition{{Name: "list_charges"}},
		errMsg: "stripe API error: status 402",
	}
	resolved := seedResolvedEndpoint(s, true, nil)
	d := newTestDispatcher(t, s, adapter)

	params, _ := json.Marshal(map[string]any{"name": "list_charges"})
	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}, resolved)
	if resp.Error != nil {
		t.Fatalf("Error = %+v, want a successful reply with isError", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["isError"] != true {
		t.Errorf("isError = %v, want true", result["isError"])
	}
}

func TestDispatch_ToolsCall_QuotaExceeded(t *testing.T) {
	s := store.NewMockStore()
	adapter := &fakeAdapter{tools: []adapters.ToolDefinition{{Name: "list_charges"}}}
	ep := store.Endpoint{ID: "ep-1", CredentialID: "cred-1", OrganizationID: "org-free", ServiceKind: "stripe", Active: true}
	cred := store.Credential{ID: "cred-1", OrganizationID: "org-free", ServiceKind: "stripe", Config: map[string]string{"secret_key": "sk_test"}}
	s.SeedEndpoint(ep, cred)
	s.SeedSubscription(store.Subscription{OrganizationID: "org-free", Plan: store.PlanFree, Status: store.SubscriptionCanceled})
	for i := 0; i < 100; i++ {
		_ = s.AppendUsage(context.Background(), store.UsageRecord{OrganizationID: "org-free", CreatedAt: time.Now()})
	}
	resolved := store.ResolvedEndpoint{Endpoint: ep, Credential: cred}
	d := newTestDispatcher(t, s, adapter)

	params, _ := json.Marshal(map[string]any{"name": "list_charges"})
	resp, _ := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}, resolved)
	if resp.Error == nil || resp.Error.Code != CodeQuotaExceeded {
		t.Fatalf("Error = %+v, want code %d", resp.Error, CodeQuotaExceeded)
	}
}
