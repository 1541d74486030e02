// ABOUTME: Store interface and data types for the gateway's metadata lookups
// ABOUTME: Defines Endpoint, Credential, Organization, Subscription, SupportedService, UsageRecord and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by IncrementTrialCounter when the stored value has
// moved since the caller last read it (the compare half of compare-and-swap
// failed).
var ErrConflict = errors.New("conflict")

// Plan is an organization's billing plan, which determines its daily request
// cap (see quota.DailyLimit).
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanTeam     Plan = "team"
	PlanLifetime Plan = "lifetime"
)

// SubscriptionStatus mirrors the billing provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// HasActiveBilling reports whether the organization has a paid subscription
// in force. Organizations without one are subject to the per-credential
// trial cap (quota.CheckTrial).
func (s SubscriptionStatus) HasActiveBilling() bool {
	return s == SubscriptionActive
}

// FieldType is the declared shape of one entry in a SupportedService's field
// schema. The gateway only branches on Encrypted; Type is informational,
// carried through for the dashboard's form rendering.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypePassword FieldType = "password"
	FieldTypeURL      FieldType = "url"
	FieldTypeCheckbox FieldType = "checkbox"
)

// FieldSchema describes one named entry a credential's config map may carry
// for a given service.
type FieldSchema struct {
	Key       string
	Type      FieldType
	Required  bool
	Encrypted bool
}

// SupportedService is static reference data: a service kind, its ordered
// field schema, and the tool names an adapter for that service may expose.
type SupportedService struct {
	Kind   string
	Fields []FieldSchema
	Tools  []string
}

// FieldSchema looks up the schema entry for a field by key, reporting
// whether it exists.
func (s SupportedService) FieldSchema(key string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Organization owns credentials, endpoints, a subscription, and usage logs.
type Organization struct {
	ID   string
	Plan Plan
}

// Subscription is read, never mutated, by the gateway.
type Subscription struct {
	OrganizationID string
	Plan           Plan
	Status         SubscriptionStatus
	ExternalSubID  string
}

// Credential holds a service kind, a display name, and a config map whose
// values marked "encrypted" in the service's field schema are sealed
// ciphertext at rest. The service kind never changes after creation.
type Credential struct {
	ID               string
	OrganizationID   string
	ServiceKind      string
	DisplayName      string
	Config           map[string]string
	TrialQueriesUsed int
}

// Endpoint is the opaque public identifier bound 1:1 to a Credential.
type Endpoint struct {
	ID             string
	CredentialID   string
	OrganizationID string
	ServiceKind    string
	Active         bool
	AllowedTools   []string // empty means "all tools for the service"
	RatePerMinute  int      // 0 means no edge rate limiting
	LastAccessedAt time.Time
}

// ToolAllowed reports whether tool is permitted on this endpoint. An empty
// allow-list permits every tool the adapter declares.
func (e Endpoint) ToolAllowed(tool string) bool {
	if len(e.AllowedTools) == 0 {
		return true
	}
	for _, t := range e.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// ResolvedEndpoint is the atomic result of ResolveEndpoint: the endpoint
// together with the credential it is bound to, as they stood at the moment
// of the read. The gateway relies on these being consistent with each
// other — it never re-reads one without the other mid-request.
type ResolvedEndpoint struct {
	Endpoint   Endpoint
	Credential Credential
}

// UsageStatus is the outcome recorded for one tool invocation.
type UsageStatus string

const (
	UsageSuccess UsageStatus = "success"
	UsageError   UsageStatus = "error"
)

// UsageRecord is one append-only entry in the usage log.
type UsageRecord struct {
	ID             string
	OrganizationID string
	CredentialID   string
	ServiceKind    string
	Tool           string
	RequestArgs    string // redacted/truncated JSON, see internal/usage
	Status         UsageStatus
	Error          string
	DurationMS     int64
	CreatedAt      time.Time
}

// Store is the gateway's entire authorization boundary: every read bypasses
// tenant row filters on the underlying metadata database, so the interface
// below is the only thing standing between one tenant's data and another's.
//
// Implementations must make ResolveEndpoint atomic with respect to the
// endpoint and its bound credential — the gateway never observes one
// without the other at the same instant.
type Store interface {
	// ResolveEndpoint looks up the endpoint and its bound credential
	// together. Returns ErrNotFound if the endpoint does not exist.
	// Inactive endpoints are returned (not an error) so callers can
	// distinguish "not found" (-32001) from "inactive" (-32002); callers
	// check ResolvedEndpoint.Endpoint.Active themselves.
	ResolveEndpoint(ctx context.Context, endpointID string) (ResolvedEndpoint, error)

	// LookupSubscription returns the organization's current plan and
	// billing status.
	LookupSubscription(ctx context.Context, organizationID string) (Subscription, error)

	// CountRequestsSince counts usage-log entries for the organization
	// created at or after since.
	CountRequestsSince(ctx context.Context, organizationID string, since time.Time) (int, error)

	// IncrementTrialCounter performs a compare-and-swap on the
	// credential's trial_queries_used counter: if the stored value
	// equals expectedCurrent, it is set to expectedCurrent+1 and the new
	// value is returned. If the stored value differs, it returns
	// ErrConflict and the value actually stored, so the caller can retry
	// once against the fresh value instead of blindly re-reading.
	IncrementTrialCounter(ctx context.Context, credentialID string, expectedCurrent int) (current int, err error)

	// AppendUsage writes a usage log entry. Fire-and-forget from the
	// caller's point of view: failures are logged, never surfaced to the
	// MCP client.
	AppendUsage(ctx context.Context, record UsageRecord) error

	// TouchEndpoint updates last_accessed_at. Fire-and-forget.
	TouchEndpoint(ctx context.Context, endpointID string, now time.Time) error

	// SupportedService looks up static reference data for a service
	// kind. Returns ErrNotFound for an unknown kind.
	SupportedService(ctx context.Context, kind string) (SupportedService, error)

	// Close releases any resources held by the store.
	Close() error
}
