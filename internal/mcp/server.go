// ABOUTME: MCP JSON-RPC 2.0 dispatcher: parses requests, routes to the
// ABOUTME: service adapter registered for an endpoint, shapes MCP replies.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/crypto"
	"github.com/openmcp/data-gateway/internal/quota"
	"github.com/openmcp/data-gateway/internal/store"
	"github.com/openmcp/data-gateway/internal/usage"
)

// ProtocolVersion is the MCP wire-protocol version this dispatcher speaks.
const ProtocolVersion = "2025-03-26"

// JSON-RPC error code reservations. -32001/-32002 are raised by the gateway
// edge during endpoint resolution, not by this package, but are listed here
// since they belong to the same reservation table.
const (
	CodeParseError       = -32700
	CodeInvalidEnvelope  = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeEndpointNotFound = -32001
	CodeEndpointInactive = -32002
	CodeQuotaExceeded    = -32003
	CodeServerFault      = -32000
)

// Request is one JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 reply. Result and Error are mutually
// exclusive; exactly one is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ParseEnvelope unmarshals the outermost JSON-RPC shape. It does not
// validate Method or Params — callers check JSONRPC == "2.0" themselves,
// since a parse failure and a wrong-version envelope map to different
// error codes.
func ParseEnvelope(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// NewErrorResponse builds a JSON-RPC error reply, echoing id verbatim.
func NewErrorResponse(id any, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// NewResultResponse builds a JSON-RPC success reply, echoing id verbatim.
func NewResultResponse(id any, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// Dispatcher routes a parsed JSON-RPC request against the endpoint it was
// received on. Gateway edge concerns — HTTP framing, endpoint resolution,
// rate limiting — live one layer up; the dispatcher only ever sees an
// endpoint that has already been confirmed to exist and be active.
type Dispatcher struct {
	store      store.Store
	masterKey  *crypto.MasterKey
	registry   *adapters.Registry
	queue      *usage.Queue
	logger     *slog.Logger
	serverName string
	version    string
}

// New constructs a Dispatcher. serverName/version are echoed in the
// initialize reply's serverInfo.
func New(s store.Store, masterKey *crypto.MasterKey, registry *adapters.Registry, queue *usage.Queue, logger *slog.Logger, serverName, version string) *Dispatcher {
	return &Dispatcher{
		store:      s,
		masterKey:  masterKey,
		registry:   registry,
		queue:      queue,
		logger:     logger.With("component", "mcp"),
		serverName: serverName,
		version:    version,
	}
}

// Dispatch handles one JSON-RPC request against resolved. The second return
// value reports whether the caller should reply with HTTP 204 and no body
// (true only for notifications/initialized).
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, resolved store.ResolvedEndpoint) (*Response, bool) {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req), false
	case "notifications/initialized":
		return nil, true
	case "ping":
		return NewResultResponse(req.ID, map[string]any{}), false
	case "tools/list":
		return d.handleToolsList(req, resolved), false
	case "tools/call":
		return d.handleToolsCall(ctx, req, resolved), false
	default:
		return NewErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method)), false
	}
}

func (d *Dispatcher) handleInitialize(req Request) *Response {
	return NewResultResponse(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": d.serverName, "version": d.version},
	})
}

func (d *Dispatcher) handleToolsList(req Request, resolved store.ResolvedEndpoint) *Response {
	adapter, err := d.registry.Lookup(resolved.Endpoint.ServiceKind)
	if err != nil {
		return NewErrorResponse(req.ID, CodeServerFault, fmt.Sprintf("unsupported service kind %q", resolved.Endpoint.ServiceKind))
	}

	var allowed []adapters.ToolDefinition
	for _, t := range adapter.Tools() {
		if resolved.Endpoint.ToolAllowed(t.Name) {
			allowed = append(allowed, t)
		}
	}
	return NewResultResponse(req.ID, map[string]any{"tools": allowed})
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req Request, resolved store.ResolvedEndpoint) *Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return NewErrorResponse(req.ID, CodeInvalidParams, "params.name is required")
	}

	adapter, err := d.registry.Lookup(resolved.Endpoint.ServiceKind)
	if err != nil {
		return NewErrorResponse(req.ID, CodeServerFault, fmt.Sprintf("unsupported service kind %q", resolved.Endpoint.ServiceKind))
	}

	if !toolDeclared(adapter, params.Name) {
		return NewErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name))
	}
	if !resolved.Endpoint.ToolAllowed(params.Name) {
		return NewErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("tool %q is not permitted on this endpoint", params.Name))
	}

	service, err := d.store.SupportedService(ctx, resolved.Endpoint.ServiceKind)
	if err != nil {
		return NewErrorResponse(req.ID, CodeServerFault, "looking up service schema")
	}

	config, err := d.unsealCredentialConfig(resolved.Credential, service)
	if err != nil {
		d.logger.Warn("failed to unseal credential", "credential_id", resolved.Credential.ID, "error", err)
		return NewErrorResponse(req.ID, CodeServerFault, "unable to decrypt credential; re-add credentials")
	}

	sub, err := d.store.LookupSubscription(ctx, resolved.Endpoint.OrganizationID)
	if err != nil {
		return NewErrorResponse(req.ID, CodeServerFault, "looking up subscription")
	}
	if err := quota.CheckDaily(ctx, d.store, resolved.Endpoint.OrganizationID, sub.Plan, time.Now()); err != nil {
		if errors.Is(err, quota.ErrDailyCapExceeded) {
			return NewErrorResponse(req.ID, CodeQuotaExceeded, "daily quota exceeded")
		}
		return NewErrorResponse(req.ID, CodeServerFault, "checking quota")
	}

	started := time.Now()
	payload, errMsg := adapter.Handle(ctx, params.Name, params.Arguments, config)
	duration := time.Since(started)

	d.recordUsage(resolved, params, errMsg, duration, service)

	if errMsg != "" {
		return NewResultResponse(req.ID, toolCallResult(nil, errMsg))
	}
	return NewResultResponse(req.ID, toolCallResult(payload, ""))
}

func toolDeclared(a adapters.Adapter, name string) bool {
	for _, n := range adapters.ToolNames(a) {
		if n == name {
			return true
		}
	}
	return false
}

func (d *Dispatcher) unsealCredentialConfig(cred store.Credential, service store.SupportedService) (map[string]string, error) {
	config := make(map[string]string, len(cred.Config))
	for key, value := range cred.Config {
		field, _ := service.FieldSchema(key)
		plaintext, err := d.masterKey.OpenField(value, field.Encrypted)
		if err != nil {
			return nil, fmt.Errorf("opening field %q: %w", key, err)
		}
		config[key] = plaintext
	}
	return config, nil
}

func (d *Dispatcher) recordUsage(resolved store.ResolvedEndpoint, params toolCallParams, errMsg string, duration time.Duration, service store.SupportedService) {
	status := store.UsageSuccess
	if errMsg != "" {
		status = store.UsageError
	}

	sensitiveKeys := make(map[string]bool)
	for _, f := range service.Fields {
		if f.Encrypted {
			sensitiveKeys[f.Key] = true
		}
	}

	now := time.Now()
	d.queue.SubmitUsage(store.UsageRecord{
		ID:             uuid.NewString(),
		OrganizationID: resolved.Endpoint.OrganizationID,
		CredentialID:   resolved.Credential.ID,
		ServiceKind:    resolved.Endpoint.ServiceKind,
		Tool:           params.Name,
		RequestArgs:    usage.Redact(params.Arguments, sensitiveKeys),
		Status:         status,
		Error:          errMsg,
		DurationMS:     duration.Milliseconds(),
		CreatedAt:      now,
	})
	d.queue.SubmitTouch(resolved.Endpoint.ID, now)
}

func toolCallResult(payload any, errMsg string) map[string]any {
	isError := errMsg != ""

	var text string
	if isError {
		text = marshalOrFallback(map[string]any{"error": errMsg})
	} else {
		text = marshalOrFallback(payload)
	}

	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": isError,
	}
}

func marshalOrFallback(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to encode result"}`
	}
	return string(out)
}
