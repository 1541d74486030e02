// ABOUTME: Read-only MySQL adapter over database/sql + go-sql-driver/mysql,
// ABOUTME: one fresh connection per request.
package mysql

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/adapters/sqlshared"
	"github.com/openmcp/data-gateway/internal/sqlguard"
)

const (
	connectTimeout   = 10 * time.Second
	statementTimeout = 30 * time.Second
)

var tools = []adapters.ToolDefinition{
	{Name: "list_tables", Description: "List base tables in the connection's default schema", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
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

// tlsConfigName is registered once, at package init; go-sql-driver/mysql keys
// custom TLS configs by a name referenced from the DSN's tls= parameter.
const tlsConfigName = "gateway-insecure-skip-verify"

func init() {
	_ = driver.RegisterTLSConfig(tlsConfigName, &tls.Config{InsecureSkipVerify: true})
}

// Adapter implements adapters.Adapter for MySQL.
type Adapter struct{}

// New constructs the MySQL adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Tools() []adapters.ToolDefinition {
	return tools
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func placeholder(int) string { return "?" }

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "on":
		return true
	default:
		return false
	}
}

func (a *Adapter) open(config map[string]string) (*sql.DB, error) {
	cfg := driver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", config["host"], config["port"])
	cfg.DBName = config["database"]
	cfg.User = config["username"]
	cfg.Passwd = config["password"]
	cfg.Timeout = connectTimeout
	if truthy(config["ssl"]) {
		// Managed providers frequently present self-signed certificates;
		// the field schema's ssl flag only asks for transport encryption,
		// not chain validation.
		cfg.TLSConfig = tlsConfigName
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	return db, nil
}

func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	db, err := a.open(config)
	if err != nil {
		return nil, err.Error()
	}
	defer db.Close()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		return nil, fmt.Sprintf("mysql: connecting: %v", err)
	}

	ctx, cancel = context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	switch tool {
	case "list_tables":
		return a.listTables(ctx, db)
	case "describe_table":
		return a.describeTable(ctx, db, args)
	case "query_table":
		return a.queryTable(ctx, db, args)
	case "execute_sql":
		return a.executeSQL(ctx, db, args)
	default:
		return nil, fmt.Sprintf("mysql: unknown tool %q", tool)
	}
}

func (a *Adapter) listTables(ctx context.Context, db *sql.DB) (any, string) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Sprintf("mysql: listing tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Sprintf("mysql: scanning table name: %v", err)
		}
		tables = append(tables, name)
	}
	return map[string]any{"tables": tables}, ""
}

func (a *Adapter) describeTable(ctx context.Context, db *sql.DB, args json.RawMessage) (any, string) {
	var wire struct {
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(args, &wire); err != nil || wire.TableName == "" {
		return nil, "mysql: table_name is required"
	}
	tableName, err := sqlguard.SanitizeIdentifier(wire.TableName)
	if err != nil {
		return nil, err.Error()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Sprintf("mysql: describing table: %v", err)
	}
	defer rows.Close()

	var columns []sqlshared.DescribeColumn
	for rows.Next() {
		var col sqlshared.DescribeColumn
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault, &col.CharacterMaximumLength); err != nil {
			return nil, fmt.Sprintf("mysql: scanning column: %v", err)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, fmt.Sprintf("mysql: table %q not found", tableName)
	}
	return map[string]any{"columns": columns}, ""
}

func (a *Adapter) queryTable(ctx context.Context, db *sql.DB, raw json.RawMessage) (any, string) {
	parsed, err := sqlshared.ParseQueryTableArgs(raw)
	if err != nil {
		return nil, "mysql: " + err.Error()
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

	rows, err := db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, fmt.Sprintf("mysql: querying table: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("mysql: scanning rows: %v", err)
	}
	return map[string]any{"rows": results}, ""
}

func (a *Adapter) executeSQL(ctx context.Context, db *sql.DB, args json.RawMessage) (any, string) {
	var wire struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(args, &wire); err != nil {
		return nil, "mysql: sql is required"
	}
	if err := sqlguard.CheckReadOnly(wire.SQL); err != nil {
		return nil, err.Error()
	}

	rows, err := db.QueryContext(ctx, wire.SQL)
	if err != nil {
		return nil, fmt.Sprintf("mysql: executing statement: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("mysql: scanning rows: %v", err)
	}
	return map[string]any{"rows": results}, ""
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

var _ adapters.Adapter = (*Adapter)(nil)
