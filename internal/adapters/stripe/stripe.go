// ABOUTME: Read-only Stripe adapter: thin net/http wrappers around the
// ABOUTME: documented list endpoints, HTTP Basic auth with the secret key.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openmcp/data-gateway/internal/adapters"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second

	apiBase = "https://api.stripe.com/v1"

	// maxLimit is Stripe's documented page-size ceiling for list endpoints.
	maxLimit     = 100
	defaultLimit = 10
)

var tools = []adapters.ToolDefinition{
	{Name: "list_charges", Description: "List charges, optionally filtered by date range", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"limit":          map[string]any{"type": "integer"},
			"starting_after": map[string]any{"type": "string"},
			"created_gte":    map[string]any{"type": "integer"},
			"created_lte":    map[string]any{"type": "integer"},
		},
	}},
	{Name: "list_customers", Description: "List customers", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"limit":          map[string]any{"type": "integer"},
			"starting_after": map[string]any{"type": "string"},
		},
	}},
	{Name: "list_invoices", Description: "List invoices, optionally filtered by customer", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"limit":          map[string]any{"type": "integer"},
			"starting_after": map[string]any{"type": "string"},
			"customer":       map[string]any{"type": "string"},
		},
	}},
	{Name: "list_subscriptions", Description: "List subscriptions, optionally filtered by customer or status", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"limit":          map[string]any{"type": "integer"},
			"starting_after": map[string]any{"type": "string"},
			"customer":       map[string]any{"type": "string"},
			"status":         map[string]any{"type": "string"},
		},
	}},
}

// Adapter implements adapters.Adapter for Stripe's REST API.
type Adapter struct {
	client *http.Client
}

// New constructs the Stripe adapter.
func New() *Adapter {
	return &Adapter{
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

func (a *Adapter) Tools() []adapters.ToolDefinition {
	return tools
}

var _ adapters.Adapter = (*Adapter)(nil)

// clampLimit applies Stripe's list-endpoint clamp: default 10, ceiling 100.
func clampLimit(raw int) int {
	if raw <= 0 {
		return defaultLimit
	}
	if raw > maxLimit {
		return maxLimit
	}
	return raw
}

func (a *Adapter) get(ctx context.Context, config map[string]string, path string, query url.Values) (map[string]any, string) {
	u := apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Sprintf("stripe: building request: %v", err)
	}
	req.SetBasicAuth(config["secret_key"], "")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Sprintf("stripe: request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Sprintf("stripe: decoding response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Sprintf("stripe API error: %s", stripeErrorMessage(body))
	}
	return body, ""
}

func stripeErrorMessage(body map[string]any) string {
	if errObj, ok := body["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return "unknown error"
}

// Handle dispatches a single tool call.
func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch tool {
	case "list_charges":
		return a.listCharges(ctx, config, args)
	case "list_customers":
		return a.listCustomers(ctx, config, args)
	case "list_invoices":
		return a.listInvoices(ctx, config, args)
	case "list_subscriptions":
		return a.listSubscriptions(ctx, config, args)
	default:
		return nil, fmt.Sprintf("stripe: unknown tool %q", tool)
	}
}

type pagingArgs struct {
	Limit         int    `json:"limit"`
	StartingAfter string `json:"starting_after"`
}

func (a *Adapter) listCharges(ctx context.Context, config map[string]string, raw json.RawMessage) (any, string) {
	var wire struct {
		pagingArgs
		CreatedGTE int64 `json:"created_gte"`
		CreatedLTE int64 `json:"created_lte"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "stripe: invalid arguments"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(wire.Limit)))
	if wire.StartingAfter != "" {
		q.Set("starting_after", wire.StartingAfter)
	}
	if wire.CreatedGTE > 0 {
		q.Set("created[gte]", strconv.FormatInt(wire.CreatedGTE, 10))
	}
	if wire.CreatedLTE > 0 {
		q.Set("created[lte]", strconv.FormatInt(wire.CreatedLTE, 10))
	}

	body, errMsg := a.get(ctx, config, "/charges", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return body, ""
}

func (a *Adapter) listCustomers(ctx context.Context, config map[string]string, raw json.RawMessage) (any, string) {
	var wire pagingArgs
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "stripe: invalid arguments"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(wire.Limit)))
	if wire.StartingAfter != "" {
		q.Set("starting_after", wire.StartingAfter)
	}

	body, errMsg := a.get(ctx, config, "/customers", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return body, ""
}

func (a *Adapter) listInvoices(ctx context.Context, config map[string]string, raw json.RawMessage) (any, string) {
	var wire struct {
		pagingArgs
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "stripe: invalid arguments"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(wire.Limit)))
	if wire.StartingAfter != "" {
		q.Set("starting_after", wire.StartingAfter)
	}
	if wire.Customer != "" {
		q.Set("customer", wire.Customer)
	}

	body, errMsg := a.get(ctx, config, "/invoices", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return body, ""
}

func (a *Adapter) listSubscriptions(ctx context.Context, config map[string]string, raw json.RawMessage) (any, string) {
	var wire struct {
		pagingArgs
		Customer string `json:"customer"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "stripe: invalid arguments"
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(wire.Limit)))
	if wire.StartingAfter != "" {
		q.Set("starting_after", wire.StartingAfter)
	}
	if wire.Customer != "" {
		q.Set("customer", wire.Customer)
	}
	if wire.Status != "" {
		q.Set("status", wire.Status)
	}

	body, errMsg := a.get(ctx, config, "/subscriptions", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return body, ""
}
