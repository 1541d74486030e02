// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Reference metadata store: organizations, credentials, endpoints, subscriptions, usage logs, supported services

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using an embedded SQLite database. It exists
// so the gateway is runnable standalone; production deployments may point
// the gateway at any Store implementation backed by the dashboard's own
// database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// seeds the static supported-service reference rows. Parent directories are
// created if needed. path may be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.SeedSupportedServices(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding supported services: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			plan TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			organization_id TEXT PRIMARY KEY REFERENCES organizations(id),
			plan TEXT NOT NULL,
			status TEXT NOT NULL,
			external_sub_id TEXT NOT NULL DEFAULT '',
			CHECK (status IN ('active', 'canceled', 'past_due', 'trialing', 'incomplete'))
		);

		CREATE TABLE IF NOT EXISTS supported_services (
			kind TEXT PRIMARY KEY,
			fields_json TEXT NOT NULL,
			tools_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id),
			service_kind TEXT NOT NULL REFERENCES supported_services(kind),
			display_name TEXT NOT NULL,
			config_json TEXT NOT NULL,
			trial_queries_used INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_credentials_org ON credentials(organization_id);

		CREATE TABLE IF NOT EXISTS mcp_endpoints (
			id TEXT PRIMARY KEY,
			credential_id TEXT NOT NULL UNIQUE REFERENCES credentials(id),
			organization_id TEXT NOT NULL REFERENCES organizations(id),
			service_kind TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			allowed_tools_json TEXT NOT NULL DEFAULT '[]',
			rate_per_minute INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_endpoints_org ON mcp_endpoints(organization_id);

		CREATE TABLE IF NOT EXISTS usage_logs (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			credential_id TEXT NOT NULL,
			service_kind TEXT NOT NULL,
			tool TEXT NOT NULL,
			request_args TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			CHECK (status IN ('success', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_usage_org_created ON usage_logs(organization_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// ResolveEndpoint looks up the endpoint and its bound credential together,
// as they stood at the same instant (single query, single snapshot read
// under SQLite's implicit read transaction).
func (s *SQLiteStore) ResolveEndpoint(ctx context.Context, endpointID string) (ResolvedEndpoint, error) {
	query := `
		SELECT e.id, e.credential_id, e.organization_id, e.service_kind, e.active,
		       e.allowed_tools_json, e.rate_per_minute, e.last_accessed_at,
		       c.display_name, c.config_json, c.trial_queries_used
		FROM mcp_endpoints e
		JOIN credentials c ON c.id = e.credential_id
		WHERE e.id = ?
	`

	var (
		res              ResolvedEndpoint
		active           int
		allowedToolsJSON string
		configJSON       string
		lastAccessedAt   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, endpointID).Scan(
		&res.Endpoint.ID,
		&res.Endpoint.CredentialID,
		&res.Endpoint.OrganizationID,
		&res.Endpoint.ServiceKind,
		&active,
		&allowedToolsJSON,
		&res.Endpoint.RatePerMinute,
		&lastAccessedAt,
		&res.Credential.DisplayName,
		&configJSON,
		&res.Credential.TrialQueriesUsed,
	)
	if err == sql.ErrNoRows {
		return ResolvedEndpoint{}, ErrNotFound
	}
	if err != nil {
		return ResolvedEndpoint{}, fmt.Errorf("querying endpoint: %w", err)
	}

	res.Endpoint.Active = active != 0
	res.Credential.ID = res.Endpoint.CredentialID
	res.Credential.OrganizationID = res.Endpoint.OrganizationID
	res.Credential.ServiceKind = res.Endpoint.ServiceKind

	if err := json.Unmarshal([]byte(allowedToolsJSON), &res.Endpoint.AllowedTools); err != nil {
		return ResolvedEndpoint{}, fmt.Errorf("decoding allowed_tools: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &res.Credential.Config); err != nil {
		return ResolvedEndpoint{}, fmt.Errorf("decoding credential config: %w", err)
	}
	if lastAccessedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastAccessedAt.String)
		if err != nil {
			return ResolvedEndpoint{}, fmt.Errorf("parsing last_accessed_at: %w", err)
		}
		res.Endpoint.LastAccessedAt = t
	}

	return res, nil
}

// LookupSubscription returns the organization's plan and billing status.
func (s *SQLiteStore) LookupSubscription(ctx context.Context, organizationID string) (Subscription, error) {
	query := `SELECT organization_id, plan, status, external_sub_id FROM subscriptions WHERE organization_id = ?`

	var sub Subscription
	err := s.db.QueryRowContext(ctx, query, organizationID).Scan(
		&sub.OrganizationID, &sub.Plan, &sub.Status, &sub.ExternalSubID,
	)
	if err == sql.ErrNoRows {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

// CountRequestsSince counts usage-log entries for the organization created
// at or after since.
func (s *SQLiteStore) CountRequestsSince(ctx context.Context, organizationID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM usage_logs WHERE organization_id = ? AND created_at >= ?`

	var count int
	err := s.db.QueryRowContext(ctx, query, organizationID, since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage logs: %w", err)
	}
	return count, nil
}

// IncrementTrialCounter performs the compare-and-swap described in Store's
// doc comment: an UPDATE predicated on the expected current value, never a
// blind read-modify-write.
func (s *SQLiteStore) IncrementTrialCounter(ctx context.Context, credentialID string, expectedCurrent int) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET trial_queries_used = ? WHERE id = ? AND trial_queries_used = ?`,
		expectedCurrent+1, credentialID, expectedCurrent,
	)
	if err != nil {
		return 0, fmt.Errorf("updating trial counter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 1 {
		return expectedCurrent + 1, nil
	}

	var current int
	err = s.db.QueryRowContext(ctx, `SELECT trial_queries_used FROM credentials WHERE id = ?`, credentialID).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading current trial counter: %w", err)
	}
	return current, ErrConflict
}

// AppendUsage writes a usage log entry.
func (s *SQLiteStore) AppendUsage(ctx context.Context, record UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_logs (
			id, organization_id, credential_id, service_kind, tool,
			request_args, status, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID, record.OrganizationID, record.CredentialID, record.ServiceKind, record.Tool,
		record.RequestArgs, record.Status, record.Error, record.DurationMS,
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// TouchEndpoint updates the endpoint's last_accessed_at timestamp.
func (s *SQLiteStore) TouchEndpoint(ctx context.Context, endpointID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mcp_endpoints SET last_accessed_at = ? WHERE id = ?`,
		now.UTC().Format(time.RFC3339), endpointID,
	)
	if err != nil {
		return fmt.Errorf("touching endpoint: %w", err)
	}
	return nil
}

// SupportedService looks up static reference data for a service kind.
func (s *SQLiteStore) SupportedService(ctx context.Context, kind string) (SupportedService, error) {
	var fieldsJSON, toolsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields_json, tools_json FROM supported_services WHERE kind = ?`, kind,
	).Scan(&fieldsJSON, &toolsJSON)
	if err == sql.ErrNoRows {
		return SupportedService{}, ErrNotFound
	}
	if err != nil {
		return SupportedService{}, fmt.Errorf("querying supported service: %w", err)
	}

	svc := SupportedService{Kind: kind}
	if err := json.Unmarshal([]byte(fieldsJSON), &svc.Fields); err != nil {
		return SupportedService{}, fmt.Errorf("decoding field schema: %w", err)
	}
	if err := json.Unmarshal([]byte(toolsJSON), &svc.Tools); err != nil {
		return SupportedService{}, fmt.Errorf("decoding tool list: %w", err)
	}
	return svc, nil
}

var _ Store = (*SQLiteStore)(nil)
