package types

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type Availability string

const (
	AvailabilityLocal       Availability = "local"
	AvailabilityAvailable   Availability = "available"
	AvailabilityDownloading Availability = "downloading"
	AvailabilityError       Availability = "error"
)

// Usable returns true for states in which the model can serve requests now.
func (a Availability) Usable() bool {
	return a == AvailabilityLocal || a == AvailabilityAvailable
}

func ParseAvailability(s string) (Availability, bool) {
	switch Availability(s) {
	case AvailabilityLocal, AvailabilityAvailable, AvailabilityDownloading, AvailabilityError:
		return Availability(s), true
	default:
		return "", false
	}
}

// Health is the last health report for a candidate.
type Health struct {
	Status HealthStatus `json:"status" yaml:"status"`
	Issues []string     `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Healthy reports whether the candidate is considered healthy. An empty
// status counts as healthy so that discovery sources without a health probe
// do not exclude every model.
func (h Health) Healthy() bool {
	return h.Status == "" || h.Status == HealthHealthy
}

// Requirements describes what a candidate needs from the host to run.
type Requirements struct {
	CPUFeatures  []string `json:"cpu_features,omitempty" yaml:"cpu_features,omitempty"`
	RequiresGPU  bool     `json:"requires_gpu" yaml:"requires_gpu"`
	MinRAMBytes  int64    `json:"min_ram_bytes,omitempty" yaml:"min_ram_bytes,omitempty"`
	MinVRAMBytes int64    `json:"min_vram_bytes,omitempty" yaml:"min_vram_bytes,omitempty"`
}

// Candidate is a model/provider pair eligible for ranking or selection.
type Candidate struct {
	ID           string       `json:"id" yaml:"id"`
	Provider     string       `json:"provider" yaml:"provider"`
	Model        string       `json:"model" yaml:"model"`
	Capabilities []string     `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
	Health       Health       `json:"health" yaml:"health"`
	Availability Availability `json:"availability" yaml:"availability"`
}

// Index returns the position of each candidate ID in the pool.
func Index(pool []Candidate) map[string]int {
	idx := make(map[string]int, len(pool))
	for i, c := range pool {
		if _, dup := idx[c.ID]; !dup {
			idx[c.ID] = i
		}
	}
	return idx
}
