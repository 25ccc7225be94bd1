package scoring

import (
	"fmt"
	"sort"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// Matrix holds one aggregated value per (candidate, metric) for a pool,
// together with the declared direction of each metric. Candidates keep the
// order of the pool they were built from.
type Matrix struct {
	order      []string
	values     map[string]map[string]float64
	directions map[string]types.Direction
	excluded   map[string]string
}

// BuildMatrix aggregates raw samples per candidate. Several samples for the
// same metric are averaged. Samples without a declared direction are ignored,
// and a metric whose samples disagree on direction is excluded entirely.
func BuildMatrix(pool []types.Candidate, samples map[string][]types.MetricSample) *Matrix {
	m := &Matrix{
		order:      make([]string, 0, len(pool)),
		values:     make(map[string]map[string]float64, len(pool)),
		directions: make(map[string]types.Direction),
		excluded:   make(map[string]string),
	}

	seen := make(map[string]bool, len(pool))
	undeclared := make(map[string]bool)
	for _, c := range pool {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		m.order = append(m.order, c.ID)

		for _, s := range samples[c.ID] {
			if s.Name == "" {
				continue
			}
			if !s.Direction.Valid() {
				undeclared[s.Name] = true
				continue
			}
			prev, ok := m.directions[s.Name]
			if ok && prev != s.Direction {
				m.excluded[s.Name] = fmt.Sprintf("conflicting directions %s and %s", prev, s.Direction)
				continue
			}
			m.directions[s.Name] = s.Direction
		}
	}
	for name := range undeclared {
		if _, declared := m.directions[name]; !declared {
			m.excluded[name] = "direction not declared"
		}
	}
	for name := range m.excluded {
		delete(m.directions, name)
	}

	for _, id := range m.order {
		sum := make(map[string]float64)
		count := make(map[string]int)
		for _, s := range samples[id] {
			if _, ok := m.directions[s.Name]; !ok || !s.Direction.Valid() {
				continue
			}
			sum[s.Name] += s.Value
			count[s.Name]++
		}
		row := make(map[string]float64, len(sum))
		for name, total := range sum {
			row[name] = total / float64(count[name])
		}
		m.values[id] = row
	}
	return m
}

// Candidates returns candidate IDs in pool order.
func (m *Matrix) Candidates() []string { return m.order }

func (m *Matrix) Len() int { return len(m.order) }

func (m *Matrix) Value(candidateID, metric string) (float64, bool) {
	v, ok := m.values[candidateID][metric]
	return v, ok
}

func (m *Matrix) Direction(metric string) (types.Direction, bool) {
	d, ok := m.directions[metric]
	return d, ok
}

// Has reports whether at least one candidate carries a scorable value for metric.
func (m *Matrix) Has(metric string) bool {
	for _, id := range m.order {
		if _, ok := m.values[id][metric]; ok {
			return true
		}
	}
	return false
}

// Column returns the values present for metric across the pool.
func (m *Matrix) Column(metric string) []float64 {
	var col []float64
	for _, id := range m.order {
		if v, ok := m.values[id][metric]; ok {
			col = append(col, v)
		}
	}
	return col
}

// Metrics returns the names of all scorable metrics, sorted.
func (m *Matrix) Metrics() []string {
	names := make([]string, 0, len(m.directions))
	for name := range m.directions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Excluded maps a metric name to the reason it cannot be scored.
func (m *Matrix) Excluded() map[string]string { return m.excluded }
