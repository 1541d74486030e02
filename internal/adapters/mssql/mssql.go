// ABOUTME: Read-only MSSQL adapter over database/sql + go-mssqldb, one
// ABOUTME: fresh connection per request.
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/adapters/sqlshared"
	"github.com/openmcp/data-gateway/internal/sqlguard"
)

const (
	connectTimeout   = 10 * time.Second
	statementTimeout = 30 * time.Second
)

var tools = []adapters.ToolDefinition{
	{Name: "list_tables", Description: "List base tables across non-system schemas, as schema.table", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
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

// systemSchemas are excluded from list_tables.
var systemSchemas = map[string]bool{
	"sys": true, "INFORMATION_SCHEMA": true, "db_owner": true, "db_accessadmin": true,
	"db_securityadmin": true, "db_ddladmin": true, "db_backupoperator": true,
	"db_datareader": true, "db_datawriter": true, "db_denydatareader": true, "db_denydatawriter": true,
	"guest": true,
}

// Adapter implements adapters.Adapter for MSSQL.
type Adapter struct{}

// New constructs the MSSQL adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Tools() []adapters.ToolDefinition {
	return tools
}

func quoteIdent(name string) string {
	// "schema.table" identifiers are quoted segment-by-segment so the dot
	// stays a separator rather than part of a bracketed name.
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
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

func (a *Adapter) dsn(config map[string]string) string {
	encrypt := "disable"
	trustCert := ""
	if truthy(config["ssl"]) {
		// Managed providers commonly present self-signed certificates;
		// trusting the server cert is the documented trade-off for this
		// field, same as the other SQL dialects.
		encrypt = "true"
		trustCert = ";TrustServerCertificate=true"
	}
	return fmt.Sprintf(
		"server=%s;port=%s;database=%s;user id=%s;password=%s;encrypt=%s;dial timeout=10%s",
		config["host"], config["port"], config["database"], config["username"], config["password"], encrypt, trustCert,
	)
}

func (a *Adapter) Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (any, string) {
	db, err := sql.Open("mssql", a.dsn(config))
	if err != nil {
		return nil, fmt.Sprintf("mssql: opening connection: %v", err)
	}
	defer db.Close()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		return nil, fmt.Sprintf("mssql: connecting: %v", err)
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
		return nil, fmt.Sprintf("mssql: unknown tool %q", tool)
	}
}

func (a *Adapter) listTables(ctx context.Context, db *sql.DB) (any, string) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME`)
	if err != nil {
		return nil, fmt.Sprintf("mssql: listing tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Sprintf("mssql: scanning table name: %v", err)
		}
		if systemSchemas[schema] {
			continue
		}
		tables = append(tables, schema+"."+name)
	}
	return map[string]any{"tables": tables}, ""
}

func (a *Adapter) describeTable(ctx context.Context, db *sql.DB, args json.RawMessage) (any, string) {
	var wire struct {
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(args, &wire); err != nil || wire.TableName == "" {
		return nil, "mssql: table_name is required"
	}
	tableName, err := sqlguard.SanitizeIdentifier(wire.TableName)
	if err != nil {
		return nil, err.Error()
	}
	schema, table := splitSchemaTable(tableName)

	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, CHARACTER_MAXIMUM_LENGTH
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err != nil {
		return nil, fmt.Sprintf("mssql: describing table: %v", err)
	}
	defer rows.Close()

	var columns []sqlshared.DescribeColumn
	for rows.Next() {
		var col sqlshared.DescribeColumn
		var maxLen sql.NullInt64
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault, &maxLen); err != nil {
			return nil, fmt.Sprintf("mssql: scanning column: %v", err)
		}
		if maxLen.Valid {
			col.CharacterMaximumLength = &maxLen.Int64
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, fmt.Sprintf("mssql: table %q not found", tableName)
	}
	return map[string]any{"columns": columns}, ""
}

func splitSchemaTable(name string) (schema, table string) {
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "dbo", name
}

func (a *Adapter) queryTable(ctx context.Context, db *sql.DB, raw json.RawMessage) (any, string) {
	parsed, err := sqlshared.ParseQueryTableArgs(raw)
	if err != nil {
		return nil, "mssql: " + err.Error()
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

	orderBy := parsed.OrderBy
	orderDirection := strings.ToUpper(parsed.OrderDirection)
	var orderCol string
	if orderBy != "" {
		orderCol, err = sqlguard.SanitizeIdentifier(orderBy)
		if err != nil {
			return nil, err.Error()
		}
	} else {
		// OFFSET/FETCH requires an ORDER BY; fall back to ordering by a
		// constant, which leaves the row order unspecified, when the
		// caller didn't ask for one.
		orderCol = "(SELECT NULL)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectClause, quoteIdent(table))
	if whereClause != "" {
		b.WriteString(" " + whereClause)
	}
	if orderCol == "(SELECT NULL)" {
		fmt.Fprintf(&b, " ORDER BY %s", orderCol)
	} else {
		fmt.Fprintf(&b, " ORDER BY %s %s", quoteIdent(orderCol), orderDirection)
	}
	fmt.Fprintf(&b, " OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", parsed.Offset, parsed.Limit)

	rows, err := db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, fmt.Sprintf("mssql: querying table: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("mssql: scanning rows: %v", err)
	}
	return map[string]any{"rows": results}, ""
}

func (a *Adapter) executeSQL(ctx context.Context, db *sql.DB, args json.RawMessage) (any, string) {
	var wire struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(args, &wire); err != nil {
		return nil, "mssql: sql is required"
	}
	if err := sqlguard.CheckReadOnly(wire.SQL); err != nil {
		return nil, err.Error()
	}

	rows, err := db.QueryContext(ctx, wire.SQL)
	if err != nil {
		return nil, fmt.Sprintf("mssql: executing statement: %v", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Sprintf("mssql: scanning rows: %v", err)
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
