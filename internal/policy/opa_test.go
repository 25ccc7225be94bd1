package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/types"
)

func testCfg() func() config.PolicyConfig {
	return func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           true,
			EvaluationTimeout: 100 * time.Millisecond,
		}
	}
}

const providerPolicy = `
package advisor.eligibility

import rego.v1

default allow := true
default reason := ""

deny contains msg if {
	input.candidate.provider == "blocked-cloud"
	msg := "provider blocked-cloud is not approved"
}

allow := false if {
	count(deny) > 0
}

reason := concat("; ", deny) if {
	count(deny) > 0
}
`

func loadTestEvaluator(t *testing.T, policy string) *Evaluator {
	t.Helper()
	e := NewEvaluator(testCfg())
	if err := e.LoadFromModules(map[string]string{"test.rego": policy}); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return e
}

var _ eligibility.Check = (*Evaluator)(nil)

func TestEvaluator_AllowByDefault(t *testing.T) {
	e := loadTestEvaluator(t, providerPolicy)

	r := e.Evaluate(context.Background(), types.Candidate{ID: "m1", Provider: "local"})
	if !r.Pass {
		t.Errorf("expected pass, got %+v", r)
	}
	if r.Check != "policy" {
		t.Errorf("expected check name 'policy', got %s", r.Check)
	}
}

func TestEvaluator_DenyProvider(t *testing.T) {
	e := loadTestEvaluator(t, providerPolicy)

	r := e.Evaluate(context.Background(), types.Candidate{ID: "m2", Provider: "blocked-cloud"})
	if r.Pass {
		t.Fatal("expected candidate from blocked provider to be rejected")
	}
	if !strings.Contains(r.Reason, "not approved") {
		t.Errorf("expected reason from policy, got %q", r.Reason)
	}
}

func TestEvaluator_NoPoliciesLoaded_FailClosed(t *testing.T) {
	e := NewEvaluator(testCfg())

	if r := e.Evaluate(context.Background(), types.Candidate{ID: "m1"}); r.Pass {
		t.Error("expected rejection when no policies loaded (fail closed)")
	}
}

func TestEvaluator_Disabled(t *testing.T) {
	e := NewEvaluator(func() config.PolicyConfig { return config.PolicyConfig{Enabled: false} })
	if e.Enabled() {
		t.Error("expected evaluator to be disabled")
	}
}

func TestEvaluator_TimeInput(t *testing.T) {
	offHours := `
package advisor.eligibility

import rego.v1

default allow := true
default reason := ""

allow := false if {
	input.candidate.provider != "local"
	input.time.day == "Sunday"
}

reason := "remote providers are off on Sundays" if {
	not allow
}
`
	e := loadTestEvaluator(t, offHours)
	e.now = func() time.Time { return time.Date(2026, 10, 11, 12, 0, 0, 0, time.UTC) } // Sunday

	if r := e.Evaluate(context.Background(), types.Candidate{ID: "r", Provider: "openai"}); r.Pass {
		t.Error("expected remote candidate to be rejected on Sunday")
	}
	if r := e.Evaluate(context.Background(), types.Candidate{ID: "l", Provider: "local"}); !r.Pass {
		t.Errorf("expected local candidate to pass, got %+v", r)
	}
}

func TestEvaluator_CompileError(t *testing.T) {
	e := NewEvaluator(testCfg())
	if err := e.LoadFromModules(map[string]string{"bad.rego": "package advisor.eligibility\nallow := ("}); err == nil {
		t.Error("expected compile error for malformed policy")
	}
}

func TestLoad_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "eligibility.rego"), []byte(providerPolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "eligibility_test.rego"), []byte("not rego"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# policies"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewEvaluator(func() config.PolicyConfig {
		return config.PolicyConfig{Enabled: true, BundlePath: dir}
	})
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r := e.Evaluate(context.Background(), types.Candidate{ID: "m", Provider: "local"}); !r.Pass {
		t.Errorf("expected pass after loading directory, got %+v", r)
	}
}
