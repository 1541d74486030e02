package mixpanel

import "testing"

func TestTools_DeclaresFourTools(t *testing.T) {
	a := New()
	if len(a.Tools()) != 4 {
		t.Errorf("Tools() returned %d, want 4", len(a.Tools()))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{
		0:     defaultLimit,
		-1:    defaultLimit,
		500:   500,
		1000:  1000,
		50000: maxLimit,
	}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRequireDateRange(t *testing.T) {
	if got := requireDateRange("", "2024-01-01"); got == "" {
		t.Error("requireDateRange() with empty from_date should error")
	}
	if got := requireDateRange("2024-01-01", ""); got == "" {
		t.Error("requireDateRange() with empty to_date should error")
	}
	if got := requireDateRange("2024-01-01", "2024-01-31"); got != "" {
		t.Errorf("requireDateRange() with valid range = %q, want empty", got)
	}
}
