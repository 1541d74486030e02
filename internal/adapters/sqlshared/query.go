package sqlshared

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openmcp/data-gateway/internal/sqlguard"
)

// DefaultLimit and MaxLimit implement the query_table clamping rule: limit
// defaults to DefaultLimit when absent or non-positive, and is clamped to
// MaxLimit otherwise.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// QueryTableArgs is the decoded, defaulted argument set for query_table,
// shared verbatim across the three SQL dialects.
type QueryTableArgs struct {
	TableName      string
	Select         []string
	Filters        map[string]any
	Limit          int
	Offset         int
	OrderBy        string
	OrderDirection string
}

// ParseQueryTableArgs decodes tools/call arguments for query_table and
// applies its limit/offset/order-direction defaults.
func ParseQueryTableArgs(raw json.RawMessage) (QueryTableArgs, error) {
	var wire struct {
		TableName      string         `json:"table_name"`
		Select         []string       `json:"select"`
		Filters        map[string]any `json:"filters"`
		Limit          *int           `json:"limit"`
		Offset         int            `json:"offset"`
		OrderBy        string         `json:"order_by"`
		OrderDirection string         `json:"order_direction"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return QueryTableArgs{}, fmt.Errorf("decoding arguments: %w", err)
	}
	if wire.TableName == "" {
		return QueryTableArgs{}, fmt.Errorf("table_name is required")
	}

	limit := DefaultLimit
	if wire.Limit != nil && *wire.Limit > 0 {
		limit = *wire.Limit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	direction := strings.ToLower(wire.OrderDirection)
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}

	return QueryTableArgs{
		TableName:      wire.TableName,
		Select:         wire.Select,
		Filters:        wire.Filters,
		Limit:          limit,
		Offset:         wire.Offset,
		OrderBy:        wire.OrderBy,
		OrderDirection: direction,
	}, nil
}

// Quoter applies a dialect's native identifier quoting to an already
// sanitized name.
type Quoter func(name string) string

// Placeholder renders the dialect's bound-parameter marker for the nth
// (1-based) parameter. Dialects using positional "?" ignore n.
type Placeholder func(n int) string

// SelectClause renders the sanitized, quoted column list for a query_table
// call, defaulting to "*" when no columns are requested.
func SelectClause(columns []string, quote Quoter) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		sanitized, err := sqlguard.SanitizeIdentifier(col)
		if err != nil {
			return "", err
		}
		quoted[i] = quote(sanitized)
	}
	return strings.Join(quoted, ", "), nil
}

// WhereClause renders "WHERE k1 = ? AND k2 IS NULL ..." (without leading
// space) from an equality filter map, in sorted key order for determinism.
// nil values become IS NULL rather than a bound parameter.
func WhereClause(filters map[string]any, quote Quoter, ph Placeholder) (clause string, params []any, err error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		sanitizedKey, err := sqlguard.SanitizeIdentifier(key)
		if err != nil {
			return "", nil, err
		}
		value := filters[key]
		if value == nil {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", quote(sanitizedKey)))
			continue
		}
		params = append(params, value)
		clauses = append(clauses, fmt.Sprintf("%s = %s", quote(sanitizedKey), ph(len(params))))
	}
	return "WHERE " + strings.Join(clauses, " AND "), params, nil
}

// OrderClause renders "ORDER BY col DIR" (without leading space), or ""
// when no order_by was requested.
func OrderClause(args QueryTableArgs, quote Quoter) (string, error) {
	if args.OrderBy == "" {
		return "", nil
	}
	col, err := sqlguard.SanitizeIdentifier(args.OrderBy)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORDER BY %s %s", quote(col), strings.ToUpper(args.OrderDirection)), nil
}

// DescribeColumn is the shared shape returned by describe_table across all
// three SQL dialects.
type DescribeColumn struct {
	ColumnName             string  `json:"column_name"`
	DataType               string  `json:"data_type"`
	IsNullable             string  `json:"is_nullable"`
	ColumnDefault          *string `json:"column_default"`
	CharacterMaximumLength *int64  `json:"character_maximum_length"`
}
