package domain

import "strings"

// State is a step of one sync run.
type State string

const (
	StateIdle        State = "idle"
	StateStaging     State = "staging"
	StateUploading   State = "uploading"
	StateListing     State = "listing"
	StateLinkMinting State = "link_minting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var stateLabels = map[State]string{
	StateIdle:        "Waiting",
	StateStaging:     "Downloading images",
	StateUploading:   "Uploading",
	StateListing:     "Listing remote folder",
	StateLinkMinting: "Creating links",
	StateDone:        "Done",
	StateFailed:      "Failed",
}

// StateLabel returns a human-readable label for a run state.
func StateLabel(s State) string {
	if label, ok := stateLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// ParseState returns the state for a given name (case-insensitive).
func ParseState(name string) (State, bool) {
	s := State(strings.ToLower(strings.TrimSpace(name)))
	_, ok := stateLabels[s]

	return s, ok
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
