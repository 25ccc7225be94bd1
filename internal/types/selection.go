package types

// ReasonCode explains why a candidate was resolved as active.
type ReasonCode string

const (
	ReasonExplicit       ReasonCode = "explicit"
	ReasonLastUsed       ReasonCode = "last_used"
	ReasonDefault        ReasonCode = "default"
	ReasonFirstAvailable ReasonCode = "first_available"
	ReasonNone           ReasonCode = "none"
)

// Sticky reports whether a resolution with this reason should be remembered
// as the session's last used model.
func (r ReasonCode) Sticky() bool {
	return r == ReasonExplicit || r == ReasonLastUsed || r == ReasonDefault
}

// SelectionState is the persisted per-session selection input. The resolved
// active model is derived from it and never stored.
type SelectionState struct {
	SessionID      string `json:"session_id"`
	ExplicitChoice string `json:"explicit_choice,omitempty"`
	LastUsedID     string `json:"last_used_id,omitempty"`
	DefaultID      string `json:"default_id,omitempty"`
	// Version is bumped on every successful write and used for compare-and-set.
	Version int64 `json:"version"`
}

// Exclusion lists why a candidate could not be selected.
type Exclusion struct {
	CandidateID string   `json:"candidate_id"`
	Reasons     []string `json:"reasons"`
}

// Resolution is the outcome of resolving the active model for a session.
type Resolution struct {
	// ActiveID is nil, encoded as null, when nothing is selectable.
	ActiveID *string     `json:"active_id"`
	Reason   ReasonCode  `json:"reason_code"`
	Excluded []Exclusion `json:"excluded_reasons"`
}

func (r Resolution) Selected() bool { return r.ActiveID != nil }

// Active returns the selected id, or "" when nothing is selected.
func (r Resolution) Active() string {
	if r.ActiveID == nil {
		return ""
	}
	return *r.ActiveID
}
