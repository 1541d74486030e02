// ABOUTME: Static supported-service reference data seeded once at store construction
// ABOUTME: Mirrors the register-once-at-New(), read-only-thereafter discipline used elsewhere in the gateway

package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// sqlDialectFields is the field schema shared by the three SQL adapters:
// they differ only in dialect, never in credential shape.
var sqlDialectFields = []FieldSchema{
	{Key: "host", Type: FieldTypeText, Required: true},
	{Key: "port", Type: FieldTypeText, Required: true},
	{Key: "database", Type: FieldTypeText, Required: true},
	{Key: "username", Type: FieldTypeText, Required: true},
	{Key: "password", Type: FieldTypePassword, Required: true, Encrypted: true},
	{Key: "ssl", Type: FieldTypeCheckbox, Required: false},
}

var sqlDialectTools = []string{"list_tables", "describe_table", "query_table", "execute_sql"}

// builtinServices are the six services the gateway ships adapters for,
// seeded as static reference rows the way a supported-service catalog would
// be hand-maintained by the dashboard team.
var builtinServices = []SupportedService{
	{Kind: "postgresql", Fields: sqlDialectFields, Tools: sqlDialectTools},
	{Kind: "mysql", Fields: sqlDialectFields, Tools: sqlDialectTools},
	{Kind: "mssql", Fields: sqlDialectFields, Tools: sqlDialectTools},
	{
		Kind: "supabase",
		Fields: []FieldSchema{
			{Key: "project_url", Type: FieldTypeURL, Required: true},
			{Key: "service_role_key", Type: FieldTypePassword, Required: true, Encrypted: true},
		},
		Tools: sqlDialectTools,
	},
	{
		Kind: "stripe",
		Fields: []FieldSchema{
			{Key: "secret_key", Type: FieldTypePassword, Required: true, Encrypted: true},
		},
		Tools: []string{"list_charges", "list_customers", "list_invoices", "list_subscriptions"},
	},
	{
		Kind: "mixpanel",
		Fields: []FieldSchema{
			{Key: "project_id", Type: FieldTypeText, Required: true},
			{Key: "service_account_username", Type: FieldTypeText, Required: true},
			{Key: "service_account_secret", Type: FieldTypePassword, Required: true, Encrypted: true},
		},
		Tools: []string{"query_events", "query_funnels", "query_retention", "export_events"},
	},
}

// SeedSupportedServices inserts the builtin service catalog if it is not
// already present. Safe to call on every startup: existing rows are left
// untouched so an operator's own catalog edits (if any) survive a restart.
func (s *SQLiteStore) SeedSupportedServices() error {
	for _, svc := range builtinServices {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM supported_services WHERE kind = ?`, svc.Kind).Scan(&exists)
		if err == nil {
			continue
		}

		fieldsJSON, err := json.Marshal(svc.Fields)
		if err != nil {
			return fmt.Errorf("marshaling field schema for %s: %w", svc.Kind, err)
		}
		toolsJSON, err := json.Marshal(svc.Tools)
		if err != nil {
			return fmt.Errorf("marshaling tool list for %s: %w", svc.Kind, err)
		}

		_, err = s.db.ExecContext(context.Background(),
			`INSERT INTO supported_services (kind, fields_json, tools_json) VALUES (?, ?, ?)`,
			svc.Kind, string(fieldsJSON), string(toolsJSON),
		)
		if err != nil {
			return fmt.Errorf("seeding supported service %s: %w", svc.Kind, err)
		}
		s.logger.Info("seeded supported service", "kind", svc.Kind)
	}
	return nil
}
