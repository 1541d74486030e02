package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openmcp/data-gateway/internal/store"
)

// TrialLimit is the per-credential ceiling on trial_queries_used for
// organizations without an active paid subscription. A single named
// constant, per the design note that calls out this exact requirement.
const TrialLimit = 10

// DailyLimit returns the per-day request cap for a plan and whether the
// plan is unlimited. An unlimited plan short-circuits CheckDaily.
func DailyLimit(plan store.Plan) (limit int, unlimited bool) {
	switch plan {
	case store.PlanFree:
		return 100, false
	case store.PlanStarter:
		return 10_000, false
	case store.PlanLifetime:
		return 10_000, false
	case store.PlanPro:
		return 100_000, false
	case store.PlanTeam:
		return 0, true
	default:
		return 100, false
	}
}

// ErrDailyCapExceeded is returned by CheckDaily when the organization has
// used its full allotment of requests for the current day.
var ErrDailyCapExceeded = errors.New("quota: daily request cap exceeded")

// ErrTrialLimitReached is returned by CheckTrial when the credential's
// trial counter is already at or beyond TrialLimit.
var ErrTrialLimitReached = errors.New("quota: limit_reached")

// CheckDaily enforces the organization's daily cap (gate #1). It counts
// usage-log entries since local midnight of now and compares against the
// plan's limit. Unlimited plans (team) never deny.
func CheckDaily(ctx context.Context, s store.Store, organizationID string, plan store.Plan, now time.Time) error {
	limit, unlimited := DailyLimit(plan)
	if unlimited {
		return nil
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := s.CountRequestsSince(ctx, organizationID, midnight)
	if err != nil {
		return fmt.Errorf("quota: counting requests: %w", err)
	}
	if count >= limit {
		return ErrDailyCapExceeded
	}
	return nil
}

// CheckTrial enforces the per-credential trial cap (gate #2). It is only
// called from the test-connection path — production tools/call traffic
// applies only CheckDaily. hasActiveBilling bypasses this gate entirely.
//
// current is the trial_queries_used value the caller last read (typically
// from the same ResolveEndpoint call that produced the credential). The
// increment is attempted via the store's compare-and-swap; on a single
// conflict, it retries once against the fresh value the store reports,
// exactly as the design note requires ("retry once; on a second conflict
// ... deny").
func CheckTrial(ctx context.Context, s store.Store, credentialID string, current int, hasActiveBilling bool) (newValue int, err error) {
	if hasActiveBilling {
		return current, nil
	}
	if current >= TrialLimit {
		return current, ErrTrialLimitReached
	}

	newValue, err = s.IncrementTrialCounter(ctx, credentialID, current)
	if err == nil {
		return newValue, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return 0, fmt.Errorf("quota: incrementing trial counter: %w", err)
	}

	// Retry once against the value the store reports as current.
	current = newValue
	if current >= TrialLimit {
		return current, ErrTrialLimitReached
	}
	newValue, err = s.IncrementTrialCounter(ctx, credentialID, current)
	if err == nil {
		return newValue, nil
	}
	if errors.Is(err, store.ErrConflict) {
		return newValue, ErrTrialLimitReached
	}
	return 0, fmt.Errorf("quota: incrementing trial counter: %w", err)
}
