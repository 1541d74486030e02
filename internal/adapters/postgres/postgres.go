// ABOUTME: Read-only PostgreSQL adapter: list_tables, describe_table,
// ABOUTME: query_table, execute_sql against a per-request unpooled pgx.Conn.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/adapters/sqlshared"
	"github.com/openmcp/data-gateway/internal/sqlguard"
)

const (
	connectTimeout   = 10 * time.Second
	statementTimeout = 30 * time.Second
)

var tools = []adapters.ToolDefinition{
	{Name: "list_tables", Description: "List base tables in the public schema", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
	{Name: "describe_table", Description: "Describe a table's columns", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{"table_name": map[string]any{"type": "string"}}, "required": []string{"table_name"},
	}},
	{Name: "query_table", Description: "Run a filtered, paginated SELECT against a table", InputSchema: map[string]any{
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
	{Name: "execute_sql", Description: "Run an arbitrary read-only SELECT/WITH statement", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{"sql": map[string]any{"type": "string"}}, "required": []string{"sql"},
	}},
}

// Adapter implements adapters.Adapter for PostgreSQL.
type Adapter struct{}

// New constructs the PostgreSQL adapter. Stateless: every call opens its
// own connection.
func New() *Adapter {
	return &Adapter{}
}

// Tools returns the static tool definitions this adapter exposes.
func (a *Adapter) Tools() []adapters.ToolDefinition {
	return tools
}

var _ adapters.Adapter = (*Adapter)(nil)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (a *Adapter) connect(ctx context.Context, config map[string]string) (*pgx.Conn, error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	sslMode := "disable"
	if truthy(config["ssl"]) {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		config["host"], config["port"], config["database"], config["username"], config["password"], sslMode,
	)
	conn, err := pgx.Connect(connCtx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return conn, nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "on":
		return true
	default:
		return false
	}
}

// Handle dispatches a single tool call. It never returns a Go error across
// this boundary — failures come back as the errMsg return value.
func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	conn, err := a.connect(ctx, config)
	if err != nil {
		return nil, err.Error()
	}
	defer conn.Close(context.Background())

	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	switch tool {
	case "list_tables":
		return a.listTables(ctx, conn)
	case "describe_table":
		return a.describeTable(ctx, conn, args)
	case "query_table":
		return a.queryTable(ctx, conn, args)
	case "execute_sql":
		return a.executeSQL(ctx, conn, args)
	default:
		return nil, fmt.Sprintf("postgres: unknown tool %q", tool)
	}
}

func (a *Adapter) listTables(ctx context.Context, conn *pgx.Conn) (any, string) {
	rows, err := conn.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Sprintf("postgres: listing tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Sprintf("postgres: scanning table name: %v", err)
		}
		tables = append(tables, name)
	}
	return map[string]any{"tables": tables}, ""
}

func (a *Adapter) describeTable(ctx context.Context, conn *pgx.Conn, args json.RawMessage) (any, string) {
	var wire struct {
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(args, &wire); err != nil || wire.TableName == "" {
		return nil, "postgres: table_name is required"
	}
	tableName, err := sqlguard.SanitizeIdentifier(wire.TableName)
	if err != nil {
		return nil, err.Error()
	}

	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Sprintf("postgres: describing table: %v", err)
	}
	defer rows.Close()

	var columns []sqlshared.DescribeColumn
	for rows.Next() {
		var col sqlshared.DescribeColumn
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault, &col.CharacterMaximumLength); err != nil {
			return nil, fmt.Sprintf("postgres: scanning column: %v", err)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, fmt.Sprintf("postgres: table %q not found", tableName)
	}
	return map[string]any{"columns": columns}, ""
}

func (a *Adapter) queryTable(ctx context.Context, conn *pgx.Conn, raw json.RawMessage) (any, string) {
	parsed, err := sqlshared.ParseQueryTableArgs(raw)
	if err != nil {
		return nil, "postgres: " + err.Error()
	}
	table, err := sqlguard.SanitizeIdentifier(parsed.TableName)
	if err != nil {
		return nil, err.Error()
	}
	selectClause, err := sqlshared.SelectClause(parsed.Select, quoteIdent)
	if err != nil {
		return nil, err.Error()
	}
	whereClause, params, err := sqlshared.WhereClause(parsed.Filters, quoteIdent, placeholder)
	if err != nil {
		return nil, err.Error()
	}
	orderClause, err := sqlshared.OrderClause(parsed, quoteIdent)
	if err != nil {
		return nil, err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectClause, quoteIdent(table))
	if whereClause != "" {
		b.WriteString(" " + whereClause)
	}
	if orderClause != "" {
		b.WriteString(" " + orderClause)
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", parsed.Limit, parsed.Offset)

	rows, err := conn.Query(ctx, b.String(), params...)
	if err != nil {
		return nil, fmt.Sprintf("postgres: querying table: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("postgres: scanning rows: %v", err)
	}
	return map[string]any{"rows": results}, ""
}

func scanRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	results := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (a *Adapter) executeSQL(ctx context.Context, conn *pgx.Conn, args json.RawMessage) (any, string) {
	var wire struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(args, &wire); err != nil {
		return nil, "postgres: sql is required"
	}
	if err := sqlguard.CheckReadOnly(wire.SQL); err != nil {
		return nil, err.Error()
	}

	rows, err := conn.Query(ctx, wire.SQL)
	if err != nil {
		return nil, fmt.Sprintf("postgres: executing statement: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("postgres: scanning rows: %v", err)
	}
	return map[string]any{"rows": results}, ""
}
