package domain

import "time"

// SyncRequest is what a host submits to start one run.
type SyncRequest struct {
	InputPath  string `json:"input_path"`
	Root       string `json:"root"`
	Credential string `json:"credential,omitempty"`
}

// SyncRun tracks a single execution of the sync workflow.
type SyncRun struct {
	ID           string     `json:"id" db:"id"`
	Root         string     `json:"root" db:"root"`
	InputPath    string     `json:"input_path" db:"input_path"`
	Status       State      `json:"status" db:"status"`
	LinkCount    int        `json:"link_count" db:"link_count"`
	ErrorKind    Kind       `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Elapsed returns the run duration so far, or the total once completed.
func (r *SyncRun) Elapsed(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// RunLink is one stored (name, link) pair of a finished run.
type RunLink struct {
	RunID    string `json:"-" db:"run_id"`
	Position int    `json:"-" db:"position"`
	Name     string `json:"name" db:"name"`
	URL      string `json:"url" db:"url"`
}
