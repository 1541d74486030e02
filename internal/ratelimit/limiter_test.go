package ratelimit

import "testing"

func TestAllow_ZeroCapacityDisablesLimiting(t *testing.T) {
	l := New()
	for i := 0; i < 1000; i++ {
		if !l.Allow("ep-1", 0) {
			t.Fatal("Allow() with capacity 0 should never refuse")
		}
	}
}

func TestAllow_ExhaustsBucketThenRefuses(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		if !l.Allow("ep-1", 5) {
			t.Fatalf("Allow() call %d should succeed within capacity", i)
		}
	}
	if l.Allow("ep-1", 5) {
		t.Error("Allow() should refuse once the bucket is exhausted")
	}
}

func TestAllow_SeparateEndpointsHaveIndependentBuckets(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("ep-a", 3) {
			t.Fatalf("ep-a call %d should succeed", i)
		}
	}
	if l.Allow("ep-a", 3) {
		t.Error("ep-a should be exhausted")
	}
	if !l.Allow("ep-b", 3) {
		t.Error("ep-b should have its own untouched bucket")
	}
}

func TestAllow_CapacityChangeClampsExistingTokens(t *testing.T) {
	l := New()
	if !l.Allow("ep-1", 10) {
		t.Fatal("first call should succeed")
	}
	// Lowering capacity below the current token count should clamp
	// rather than let a stale high-water-mark bucket through.
	for i := 0; i < 2; i++ {
		l.Allow("ep-1", 2)
	}
	if l.Allow("ep-1", 2) {
		t.Error("Allow() should refuse after the lowered capacity is exhausted")
	}
}
