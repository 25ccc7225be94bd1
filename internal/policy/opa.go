package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/types"
	"github.com/open-policy-agent/opa/rego"
)

const query = "[data.advisor.eligibility.allow, data.advisor.eligibility.reason]"

// Input is the document a policy sees for one candidate.
type Input struct {
	Candidate CandidateInput `json:"candidate"`
	Time      TimeInput      `json:"time"`
}

type CandidateInput struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	Availability string   `json:"availability"`
	Healthy      bool     `json:"healthy"`
}

type TimeInput struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator is an eligibility check backed by Rego policies under the
// advisor.eligibility package. It fails closed.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
	now      func() time.Time
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg, now: time.Now}
}

func (e *Evaluator) Name() string  { return "policy" }
func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the configured bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from module sources keyed by file name.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Decide runs the policy against input.
func (e *Evaluator) Decide(ctx context.Context, input Input) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return false, "no policies loaded", nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	arr, ok := results[0].Expressions[0].Value.([]any)
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}

// Evaluate implements eligibility.Check.
func (e *Evaluator) Evaluate(ctx context.Context, c types.Candidate) eligibility.Result {
	now := e.now().UTC()
	input := Input{
		Candidate: CandidateInput{
			ID:           c.ID,
			Provider:     c.Provider,
			Model:        c.Model,
			Capabilities: c.Capabilities,
			Availability: string(c.Availability),
			Healthy:      c.Health.Healthy(),
		},
		Time: TimeInput{Hour: now.Hour(), Day: now.Weekday().String()},
	}

	allowed, reason, err := e.Decide(ctx, input)
	if err != nil {
		slog.Error("policy evaluation failed", "candidate_id", c.ID, "error", err)
		return eligibility.Result{Check: "policy", Reason: "policy evaluation failed"}
	}
	if !allowed {
		if reason == "" {
			reason = "denied"
		}
		return eligibility.Result{Check: "policy", Reason: "denied by policy: " + reason}
	}
	return eligibility.Result{Check: "policy", Pass: true}
}
