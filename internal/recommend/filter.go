package recommend

import (
	"strings"

	"github.com/af-corp/aegis-advisor/internal/types"
)

// DefaultCapabilityKeywords maps a task capability to the words that signal
// it in a model's declared capability list.
var DefaultCapabilityKeywords = map[string][]string{
	"chat":          {"chat", "conversation", "dialogue", "assistant"},
	"code":          {"code", "programming", "coding", "development"},
	"reasoning":     {"reasoning", "logic", "analysis", "thinking"},
	"creative":      {"creative", "generation", "writing", "story"},
	"summarization": {"summarization", "summary", "abstract"},
	"translation":   {"translation", "multilingual", "language"},
	"embedding":     {"embedding", "similarity", "search", "retrieval"},
	"vision":        {"vision", "image", "visual", "sight"},
	"audio":         {"audio", "speech", "sound", "voice"},
}

// Filter narrows a pool to the candidates relevant for a task.
type Filter struct {
	Capabilities []string `json:"capabilities,omitempty"`
	Providers    []string `json:"providers,omitempty"`
	Exclude      []string `json:"exclude,omitempty"`
}

func (f Filter) Empty() bool {
	return len(f.Capabilities) == 0 && len(f.Providers) == 0 && len(f.Exclude) == 0
}

// Apply returns the candidates matching every criterion of f, in pool order.
// A nil keyword table falls back to DefaultCapabilityKeywords.
func (f Filter) Apply(pool []types.Candidate, keywords map[string][]string) []types.Candidate {
	if f.Empty() {
		return pool
	}
	if keywords == nil {
		keywords = DefaultCapabilityKeywords
	}

	out := make([]types.Candidate, 0, len(pool))
	for _, c := range pool {
		if contains(f.Exclude, c.ID) {
			continue
		}
		if len(f.Providers) > 0 && !contains(f.Providers, c.Provider) {
			continue
		}
		if !hasCapabilities(c.Capabilities, f.Capabilities, keywords) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasCapabilities(declared, required []string, keywords map[string][]string) bool {
	lowered := make([]string, len(declared))
	for i, d := range declared {
		lowered[i] = strings.ToLower(d)
	}
	for _, req := range required {
		if !capabilityMatches(strings.ToLower(req), lowered, keywords) {
			return false
		}
	}
	return true
}

// capabilityMatches accepts a direct match or any keyword of the required
// capability appearing within a declared capability.
func capabilityMatches(required string, declared []string, keywords map[string][]string) bool {
	if contains(declared, required) {
		return true
	}
	words, ok := keywords[required]
	if !ok {
		words = []string{required}
	}
	for _, w := range words {
		for _, d := range declared {
			if strings.Contains(d, w) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
