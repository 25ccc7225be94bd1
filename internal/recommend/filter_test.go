package recommend

import (
	"testing"

	"github.com/af-corp/aegis-advisor/internal/types"
)

func TestFilter_Apply(t *testing.T) {
	pool := []types.Candidate{
		{ID: "coder", Provider: "local", Capabilities: []string{"Programming", "chat"}},
		{ID: "talker", Provider: "openai", Capabilities: []string{"conversation"}},
		{ID: "seer", Provider: "openai", Capabilities: []string{"image-understanding", "chat"}},
		{ID: "bare", Provider: "anthropic", Capabilities: []string{"log"}},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps all", Filter{}, []string{"coder", "talker", "seer", "bare"}},
		{"keyword match", Filter{Capabilities: []string{"code"}}, []string{"coder"}},
		{"chat via keywords", Filter{Capabilities: []string{"chat"}}, []string{"coder", "talker", "seer"}},
		{"multiple capabilities", Filter{Capabilities: []string{"chat", "vision"}}, []string{"seer"}},
		{"provider allow-list", Filter{Providers: []string{"openai"}}, []string{"talker", "seer"}},
		{"exclude", Filter{Exclude: []string{"seer", "bare"}}, []string{"coder", "talker"}},
		{"unknown capability direct only", Filter{Capabilities: []string{"telepathy"}}, []string{}},
		{"short declared word is not a keyword match", Filter{Capabilities: []string{"chat"}, Exclude: []string{"coder", "talker", "seer"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(pool, nil)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d candidates", tt.want, len(got))
			}
			for i, c := range got {
				if c.ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], c.ID)
				}
			}
		})
	}
}

func TestFilter_CustomKeywords(t *testing.T) {
	pool := []types.Candidate{{ID: "a", Capabilities: []string{"sql-generation"}}}
	keywords := map[string][]string{"database": {"sql"}}

	got := Filter{Capabilities: []string{"database"}}.Apply(pool, keywords)
	if len(got) != 1 {
		t.Errorf("expected custom keyword to match, got %d candidates", len(got))
	}
}
