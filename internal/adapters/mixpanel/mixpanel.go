// ABOUTME: Read-only Mixpanel adapter: thin net/http wrappers around the
// ABOUTME: query API, HTTP Basic auth with the service account credentials.
package mixpanel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openmcp/data-gateway/internal/adapters"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second

	apiBase = "https://mixpanel.com/api/2.0"

	// maxLimit is the clamp this adapter applies to exported event counts;
	// Mixpanel's export API itself is not page-size limited, but a
	// single-call gateway response needs a ceiling.
	maxLimit     = 1000
	defaultLimit = 100
)

var tools = []adapters.ToolDefinition{
	{Name: "query_events", Description: "Query aggregated event counts over a date range", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"event":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"from_date": map[string]any{"type": "string"},
			"to_date":   map[string]any{"type": "string"},
			"unit":      map[string]any{"type": "string", "enum": []string{"minute", "hour", "day", "week", "month"}},
		},
		"required": []string{"from_date", "to_date"},
	}},
	{Name: "query_funnels", Description: "Query a saved funnel's conversion data over a date range", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"funnel_id": map[string]any{"type": "integer"},
			"from_date": map[string]any{"type": "string"},
			"to_date":   map[string]any{"type": "string"},
		},
		"required": []string{"funnel_id", "from_date", "to_date"},
	}},
	{Name: "query_retention", Description: "Query cohort retention over a date range", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"from_date":      map[string]any{"type": "string"},
			"to_date":        map[string]any{"type": "string"},
			"retention_type": map[string]any{"type": "string", "enum": []string{"birth", "compounded"}},
		},
		"required": []string{"from_date", "to_date"},
	}},
	{Name: "export_events", Description: "Export raw event data over a date range, clamped to 1000 events", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"from_date": map[string]any{"type": "string"},
			"to_date":   map[string]any{"type": "string"},
			"event":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"limit":     map[string]any{"type": "integer"},
		},
		"required": []string{"from_date", "to_date"},
	}},
}

// Adapter implements adapters.Adapter for Mixpanel's query API.
type Adapter struct {
	client *http.Client
}

// New constructs the Mixpanel adapter.
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

// clampLimit applies this adapter's export-event ceiling: default 100, max 1000.
func clampLimit(raw int) int {
	if raw <= 0 {
		return defaultLimit
	}
	if raw > maxLimit {
		return maxLimit
	}
	return raw
}

func (a *Adapter) get(ctx context.Context, config map[string]string, base, path string, query url.Values) ([]byte, string) {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Sprintf("mixpanel: building request: %v", err)
	}
	req.SetBasicAuth(config["service_account_username"], config["service_account_secret"])

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Sprintf("mixpanel: request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf strings.Builder
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Sprintf("mixpanel: reading response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Sprintf("mixpanel API error: %s", strings.TrimSpace(buf.String()))
	}
	return []byte(buf.String()), ""
}

// Handle dispatches a single tool call.
func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	projectID := config["project_id"]

	switch tool {
	case "query_events":
		return a.queryEvents(ctx, config, projectID, args)
	case "query_funnels":
		return a.queryFunnels(ctx, config, projectID, args)
	case "query_retention":
		return a.queryRetention(ctx, config, projectID, args)
	case "export_events":
		return a.exportEvents(ctx, config, projectID, args)
	default:
		return nil, fmt.Sprintf("mixpanel: unknown tool %q", tool)
	}
}

func requireDateRange(fromDate, toDate string) string {
	if fromDate == "" || toDate == "" {
		return "mixpanel: from_date and to_date are required"
	}
	return ""
}

func (a *Adapter) queryEvents(ctx context.Context, config map[string]string, projectID string, raw json.RawMessage) (any, string) {
	var wire struct {
		Event    []string `json:"event"`
		FromDate string   `json:"from_date"`
		ToDate   string   `json:"to_date"`
		Unit     string   `json:"unit"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "mixpanel: invalid arguments"
	}
	if errMsg := requireDateRange(wire.FromDate, wire.ToDate); errMsg != "" {
		return nil, errMsg
	}

	unit := wire.Unit
	if unit == "" {
		unit = "day"
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("from_date", wire.FromDate)
	q.Set("to_date", wire.ToDate)
	q.Set("unit", unit)
	for _, e := range wire.Event {
		q.Add("event", e)
	}

	body, errMsg := a.get(ctx, config, apiBase, "/events", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return decodeJSON(body)
}

func (a *Adapter) queryFunnels(ctx context.Context, config map[string]string, projectID string, raw json.RawMessage) (any, string) {
	var wire struct {
		FunnelID int    `json:"funnel_id"`
		FromDate string `json:"from_date"`
		ToDate   string `json:"to_date"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "mixpanel: invalid arguments"
	}
	if wire.FunnelID == 0 {
		return nil, "mixpanel: funnel_id is required"
	}
	if errMsg := requireDateRange(wire.FromDate, wire.ToDate); errMsg != "" {
		return nil, errMsg
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("funnel_id", strconv.Itoa(wire.FunnelID))
	q.Set("from_date", wire.FromDate)
	q.Set("to_date", wire.ToDate)

	body, errMsg := a.get(ctx, config, apiBase, "/funnels", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return decodeJSON(body)
}

func (a *Adapter) queryRetention(ctx context.Context, config map[string]string, projectID string, raw json.RawMessage) (any, string) {
	var wire struct {
		FromDate      string `json:"from_date"`
		ToDate        string `json:"to_date"`
		RetentionType string `json:"retention_type"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "mixpanel: invalid arguments"
	}
	if errMsg := requireDateRange(wire.FromDate, wire.ToDate); errMsg != "" {
		return nil, errMsg
	}

	retentionType := wire.RetentionType
	if retentionType == "" {
		retentionType = "birth"
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("from_date", wire.FromDate)
	q.Set("to_date", wire.ToDate)
	q.Set("retention_type", retentionType)

	body, errMsg := a.get(ctx, config, apiBase, "/retention", q)
	if errMsg != "" {
		return nil, errMsg
	}
	return decodeJSON(body)
}

func (a *Adapter) exportEvents(ctx context.Context, config map[string]string, projectID string, raw json.RawMessage) (any, string) {
	var wire struct {
		FromDate string   `json:"from_date"`
		ToDate   string   `json:"to_date"`
		Event    []string `json:"event"`
		Limit    int      `json:"limit"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, "mixpanel: invalid arguments"
	}
	if errMsg := requireDateRange(wire.FromDate, wire.ToDate); errMsg != "" {
		return nil, errMsg
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("from_date", wire.FromDate)
	q.Set("to_date", wire.ToDate)
	for _, e := range wire.Event {
		q.Add("event", e)
	}

	// The export endpoint lives on a distinct host and returns
	// newline-delimited JSON rather than a single JSON document.
	body, errMsg := a.get(ctx, config, "https://data.mixpanel.com/api/2.0", "/export", q)
	if errMsg != "" {
		return nil, errMsg
	}

	limit := clampLimit(wire.Limit)
	events := make([]any, 0, limit)
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if line == "" || len(events) >= limit {
			continue
		}
		var event any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return map[string]any{"events": events}, ""
}

func decodeJSON(body []byte) (any, string) {
	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Sprintf("mixpanel: decoding response: %v", err)
	}
	return result, ""
}
