// ABOUTME: Supabase REST adapter: list_tables/describe_table derived from
// ABOUTME: the project's OpenAPI spec, query_table via PostgREST filters.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/adapters/sqlshared"
	"github.com/openmcp/data-gateway/internal/sqlguard"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second
)

var tools = []adapters.ToolDefinition{
	{Name: "list_tables", Description: "List tables exposed by the project's PostgREST schema", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
	{Name: "describe_table", Description: "Describe a table's columns from the OpenAPI spec", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{"table_name": map[string]any{"type": "string"}}, "required": []string{"table_name"},
	}},
	{Name: "query_table", Description: "Run a filtered, paginated select against a table via PostgREST", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{
			"table_name": map[string]any{"type": "string"},
			"select": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"filters": map[string]any{"type": "object"},
			"limit": map[string]any{"type": "integer"},
			"offset": map[string]any{"type": "integer"},
			"order_by": map[string]any{"type": "string"},
			"order_direction": map[string]any{"type": "string", "enum": []string{"asc", "desc"}},
		},
		"required": []string{"table_name"},
	}},
	{Name: "execute_sql", Description: "Run a read-only SELECT/WITH statement via the project's execute_readonly_query helper", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{"sql": map[string]any{"type": "string"}}, "required": []string{"sql"},
	}},
}

// Adapter implements adapters.Adapter for Supabase's PostgREST surface.
type Adapter struct {
	client *http.Client
}

// New constructs the Supabase adapter with the shared connect/request
// timeout discipline the SQL adapters use, for operational symmetry even
// though there's no persistent connection to speak of here.
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

func (a *Adapter) do(ctx context.Context, config map[string]string, method, path string, query url.Values, body []byte, extraHeaders map[string]string) (*http.Response, error) {
	base := strings.TrimRight(config["project_url"], "/")
	u := base + path
	if query != nil {
		u += "?" + query.Encode()
	}

	var bodyReader *strings.Reader
	if body != nil {
		bodyReader = strings.NewReader(string(body))
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	key := config["service_role_key"]
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	return a.client.Do(req)
}

func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch tool {
	case "list_tables":
		return a.listTables(ctx, config)
	case "describe_table":
		return a.describeTable(ctx, config, args)
	case "query_table":
		return a.queryTable(ctx, config, args)
	case "execute_sql":
		return a.executeSQL(ctx, config, args)
	default:
		return nil, fmt.Sprintf("supabase: unknown tool %q", tool)
	}
}

// openAPISpec is the subset of the PostgREST-generated OpenAPI document we
// read: per-path definitions keyed by "/table_name".
type openAPISpec struct {
	Definitions map[string]struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
	} `json:"definitions"`
	Paths map[string]json.RawMessage `json:"paths"`
}

func (a *Adapter) fetchSpec(ctx context.Context, config map[string]string) (*openAPISpec, error) {
	resp, err := a.do(ctx, config, http.MethodGet, "/rest/v1/", nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching OpenAPI spec: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("supabase API error: unexpected status %d fetching spec", resp.StatusCode)
	}

	var spec openAPISpec
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decoding OpenAPI spec: %w", err)
	}
	return &spec, nil
}

func (a *Adapter) listTables(ctx context.Context, config map[string]string) (any, string) {
	spec, err := a.fetchSpec(ctx, config)
	if err != nil {
		return nil, err.Error()
	}

	var tables []string
	for p := range spec.Paths {
		name := strings.TrimPrefix(p, "/")
		if name == "" || strings.Contains(name, "{") || strings.HasPrefix(name, "rpc/") {
			continue
		}
		tables = append(tables, name)
	}
	return map[string]any{"tables": tables}, ""
}

func (a *Adapter) describeTable(ctx context.Context, config map[string]string, args json.RawMessage) (any, string) {
	var wire struct {
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(args, &wire); err != nil || wire.TableName == "" {
		return nil, "supabase: table_name is required"
	}

	spec, err := a.fetchSpec(ctx, config)
	if err != nil {
		return nil, err.Error()
	}
	def, ok := spec.Definitions[wire.TableName]
	if !ok {
		return nil, fmt.Sprintf("supabase: table %q not found", wire.TableName)
	}

	var columns []sqlshared.DescribeColumn
	for name, prop := range def.Properties {
		nullable := "YES"
		if strings.Contains(strings.ToLower(prop.Description), "not null") {
			nullable = "NO"
		}
		columns = append(columns, sqlshared.DescribeColumn{
			ColumnName: name,
			DataType:   prop.Type,
			IsNullable: nullable,
		})
	}
	return map[string]any{"columns": columns}, ""
}

func (a *Adapter) queryTable(ctx context.Context, config map[string]string, raw json.RawMessage) (any, string) {
	parsed, err := sqlshared.ParseQueryTableArgs(raw)
	if err != nil {
		return nil, "supabase: " + err.Error()
	}

	query := url.Values{}
	if len(parsed.Select) > 0 {
		cols := make([]string, len(parsed.Select))
		for i, c := range parsed.Select {
			sanitized, err := sqlguard.SanitizeIdentifier(c)
			if err != nil {
				return nil, err.Error()
			}
			cols[i] = sanitized
		}
		query.Set("select", strings.Join(cols, ","))
	}
	for key, value := range parsed.Filters {
		sanitizedKey, err := sqlguard.SanitizeIdentifier(key)
		if err != nil {
			return nil, err.Error()
		}
		if value == nil {
			query.Set(sanitizedKey, "is.null")
			continue
		}
		query.Set(sanitizedKey, fmt.Sprintf("eq.%v", value))
	}
	if parsed.OrderBy != "" {
		orderBy, err := sqlguard.SanitizeIdentifier(parsed.OrderBy)
		if err != nil {
			return nil, err.Error()
		}
		query.Set("order", fmt.Sprintf("%s.%s", orderBy, parsed.OrderDirection))
	}

	rangeHeader := map[string]string{
		"Range":      fmt.Sprintf("%d-%d", parsed.Offset, parsed.Offset+parsed.Limit-1),
		"Range-Unit": "items",
	}
	resp, err := a.do(ctx, config, http.MethodGet, "/rest/v1/"+url.PathEscape(parsed.TableName), query, nil, rangeHeader)
	if err != nil {
		return nil, fmt.Sprintf("supabase: querying table: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Sprintf("supabase API error: status %d querying %s", resp.StatusCode, parsed.TableName)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Sprintf("supabase: decoding response: %v", err)
	}
	return map[string]any{"rows": rows}, ""
}

func (a *Adapter) executeSQL(ctx context.Context, config map[string]string, args json.RawMessage) (any, string) {
	var wire struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(args, &wire); err != nil {
		return nil, "supabase: sql is required"
	}
	if err := sqlguard.CheckReadOnly(wire.SQL); err != nil {
		return nil, err.Error()
	}

	body, err := json.Marshal(map[string]string{"query_text": wire.SQL})
	if err != nil {
		return nil, fmt.Sprintf("supabase: encoding request: %v", err)
	}

	resp, err := a.do(ctx, config, http.MethodPost, "/rest/v1/rpc/execute_readonly_query", nil, body, nil)
	if err != nil {
		return nil, fmt.Sprintf("supabase: executing statement: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The project hasn't installed the helper function; per the
		// documented contract this is a hint, not an error.
		return map[string]any{
			"hint": "execute_readonly_query is not installed on this Supabase project; use query_table instead",
		}, ""
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Sprintf("supabase API error: status %d running execute_sql", resp.StatusCode)
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Sprintf("supabase: decoding response: %v", err)
	}
	return map[string]any{"rows": result}, ""
}

var _ adapters.Adapter = (*Adapter)(nil)
