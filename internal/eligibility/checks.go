package eligibility

import (
	"context"
	"fmt"
	"strings"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// HealthCheck rejects candidates whose last health report is unhealthy.
type HealthCheck struct{}

func (HealthCheck) Name() string  { return "health" }
func (HealthCheck) Enabled() bool { return true }

func (HealthCheck) Evaluate(_ context.Context, c types.Candidate) Result {
	if c.Health.Healthy() {
		return Result{Check: "health", Pass: true}
	}
	reason := "unhealthy"
	if len(c.Health.Issues) > 0 {
		reason = "unhealthy: " + strings.Join(c.Health.Issues, "; ")
	}
	return Result{Check: "health", Reason: reason}
}

// AvailabilityCheck rejects candidates that are downloading or errored.
type AvailabilityCheck struct{}

func (AvailabilityCheck) Name() string  { return "availability" }
func (AvailabilityCheck) Enabled() bool { return true }

func (AvailabilityCheck) Evaluate(_ context.Context, c types.Candidate) Result {
	// Sources that do not track availability leave it empty.
	if c.Availability == "" || c.Availability.Usable() {
		return Result{Check: "availability", Pass: true}
	}
	return Result{Check: "availability", Reason: "not available: " + string(c.Availability)}
}

// Host describes the machine candidates must run on. Zero memory sizes mean
// unknown and skip the corresponding requirement.
type Host struct {
	CPUFeatures []string
	HasGPU      bool
	RAMBytes    int64
	VRAMBytes   int64
}

// HardwareCheck rejects candidates whose requirements the host cannot meet.
type HardwareCheck struct {
	host func() Host
}

func NewHardwareCheck(host func() Host) *HardwareCheck {
	return &HardwareCheck{host: host}
}

func (h *HardwareCheck) Name() string  { return "compatibility" }
func (h *HardwareCheck) Enabled() bool { return h.host != nil }

func (h *HardwareCheck) Evaluate(_ context.Context, c types.Candidate) Result {
	host := h.host()
	req := c.Requirements
	var problems []string

	if missing := missingFeatures(req.CPUFeatures, host.CPUFeatures); len(missing) > 0 {
		problems = append(problems, "missing cpu features: "+strings.Join(missing, ", "))
	}
	if req.RequiresGPU && !host.HasGPU {
		problems = append(problems, "requires gpu")
	}
	if req.MinRAMBytes > 0 && host.RAMBytes > 0 && host.RAMBytes < req.MinRAMBytes {
		problems = append(problems, fmt.Sprintf("needs %d bytes ram, host has %d", req.MinRAMBytes, host.RAMBytes))
	}
	if req.MinVRAMBytes > 0 && host.VRAMBytes > 0 && host.VRAMBytes < req.MinVRAMBytes {
		problems = append(problems, fmt.Sprintf("needs %d bytes vram, host has %d", req.MinVRAMBytes, host.VRAMBytes))
	}
	if req.MinVRAMBytes > 0 && !host.HasGPU {
		problems = append(problems, "requires vram but host has no gpu")
	}

	if len(problems) == 0 {
		return Result{Check: "compatibility", Pass: true}
	}
	return Result{Check: "compatibility", Reason: "incompatible: " + strings.Join(problems, "; ")}
}

func missingFeatures(required, available []string) []string {
	have := make(map[string]bool, len(available))
	for _, f := range available {
		have[strings.ToLower(f)] = true
	}
	var missing []string
	for _, f := range required {
		if !have[strings.ToLower(f)] {
			missing = append(missing, f)
		}
	}
	return missing
}
