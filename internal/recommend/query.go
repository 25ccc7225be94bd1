package recommend

import (
	"strings"
	"unicode"
)

type queryCue struct {
	capability string
	words      []string
}

// taskCues are checked in order and the first hit wins.
var taskCues = []queryCue{
	{"code", []string{"code", "program", "function", "class", "debug", "compile"}},
	{"reasoning", []string{"explain", "analyze", "analyse", "reason", "why"}},
	{"summarization", []string{"summarize", "summarise", "summary", "brief", "tldr"}},
	{"translation", []string{"translate", "translation"}},
	{"creative", []string{"create", "write", "generate", "story", "poem"}},
}

// modalityCues add a capability on top of the task.
var modalityCues = []queryCue{
	{"vision", []string{"image", "picture", "photo", "visual", "screenshot"}},
	{"audio", []string{"audio", "sound", "music", "voice"}},
}

// CapabilitiesFromQuery infers the capabilities a free-text request needs:
// one task (chat when nothing more specific shows up) plus any modality.
// An empty query yields nil.
func CapabilitiesFromQuery(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}

	caps := []string{"chat"}
	for _, cue := range taskCues {
		if cue.matches(words) {
			caps[0] = cue.capability
			break
		}
	}
	for _, cue := range modalityCues {
		if cue.matches(words) {
			caps = append(caps, cue.capability)
			break
		}
	}
	return caps
}

// matches reports whether any word of the query starts with a cue word, so
// "programming" and "explaining" hit "program" and "explain".
func (c queryCue) matches(words []string) bool {
	for _, w := range words {
		for _, cue := range c.words {
			if strings.HasPrefix(w, cue) {
				return true
			}
		}
	}
	return false
}
