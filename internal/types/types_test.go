package types

import (
	"encoding/json"
	"testing"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input string
		want  Direction
		valid bool
	}{
		{"higher_is_better", HigherIsBetter, true},
		{"lower_is_better", LowerIsBetter, true},
		{"higher", HigherIsBetter, true},
		{"min", LowerIsBetter, true},
		{"", "", false},
		{"sideways", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDirection(tt.input)
		if ok != tt.valid || got != tt.want {
			t.Errorf("ParseDirection(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.valid)
		}
	}
}

func TestAvailabilityUsable(t *testing.T) {
	tests := []struct {
		a      Availability
		usable bool
	}{
		{AvailabilityLocal, true},
		{AvailabilityAvailable, true},
		{AvailabilityDownloading, false},
		{AvailabilityError, false},
	}

	for _, tt := range tests {
		if got := tt.a.Usable(); got != tt.usable {
			t.Errorf("%s.Usable() = %v, want %v", tt.a, got, tt.usable)
		}
	}
}

func TestHealthHealthy(t *testing.T) {
	if !(Health{}).Healthy() {
		t.Error("expected empty health status to count as healthy")
	}
	if (Health{Status: HealthUnhealthy}).Healthy() {
		t.Error("expected unhealthy status to be unhealthy")
	}
}

func TestReasonCodeSticky(t *testing.T) {
	tests := []struct {
		r      ReasonCode
		sticky bool
	}{
		{ReasonExplicit, true},
		{ReasonLastUsed, true},
		{ReasonDefault, true},
		{ReasonFirstAvailable, false},
		{ReasonNone, false},
	}

	for _, tt := range tests {
		if got := tt.r.Sticky(); got != tt.sticky {
			t.Errorf("%s.Sticky() = %v, want %v", tt.r, got, tt.sticky)
		}
	}
}

func TestBudgetScopeMatches(t *testing.T) {
	tests := []struct {
		scope    BudgetScope
		provider string
		model    string
		want     bool
	}{
		{BudgetScope{}, "openai", "gpt-4o", true},
		{BudgetScope{Providers: []string{"openai"}}, "openai", "gpt-4o", true},
		{BudgetScope{Providers: []string{"openai"}}, "anthropic", "claude", false},
		{BudgetScope{Models: []string{"gpt-4o"}}, "openai", "gpt-4o-mini", false},
		{BudgetScope{Providers: []string{"openai"}, Models: []string{"gpt-4o"}}, "openai", "gpt-4o", true},
	}

	for _, tt := range tests {
		if got := tt.scope.Matches(tt.provider, tt.model); got != tt.want {
			t.Errorf("%+v.Matches(%q, %q) = %v, want %v", tt.scope, tt.provider, tt.model, got, tt.want)
		}
	}
}

func TestIndexKeepsFirstOccurrence(t *testing.T) {
	idx := Index([]Candidate{{ID: "a"}, {ID: "b"}, {ID: "a"}})
	if idx["a"] != 0 || idx["b"] != 1 {
		t.Errorf("unexpected index: %v", idx)
	}
}

func TestResolutionJSON_NoSelectionIsNull(t *testing.T) {
	b, err := json.Marshal(Resolution{Reason: ReasonNone, Excluded: []Exclusion{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"active_id":null,"reason_code":"none","excluded_reasons":[]}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}

	id := "m1"
	r := Resolution{ActiveID: &id, Reason: ReasonExplicit}
	if !r.Selected() || r.Active() != "m1" {
		t.Errorf("expected m1 to be selected, got %+v", r)
	}
}
