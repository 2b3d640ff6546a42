package catalog

import "time"

// RunStatus represents the lifecycle of one collection run.
type RunStatus string

const (
	// RunStatusQueued means the run was accepted but has not started.
	RunStatusQueued RunStatus = "queued"
	// RunStatusRunning means the run is resolving, crawling or fetching.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded means a report was exported.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed means the run aborted before producing a report.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCanceled means the operator canceled the run.
	RunStatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Run is the externally visible record of a collection run.
type Run struct {
	ID        string        `json:"run_id"`
	Query     string        `json:"query"`
	Status    RunStatus     `json:"status"`
	SeriesURL string        `json:"series_url,omitempty"`
	Title     string        `json:"title,omitempty"`
	Resolved  int           `json:"resolved"`
	Total     int           `json:"total"`
	Exhausted []string      `json:"exhausted,omitempty"`
	Failed    []string      `json:"failed,omitempty"`
	Delay     time.Duration `json:"delay_ns,omitempty"`
	Location  string        `json:"location,omitempty"`
	ErrorText string        `json:"error,omitempty"`
	Created   time.Time     `json:"created"`
	Started   *time.Time    `json:"started,omitempty"`
	Finished  *time.Time    `json:"finished,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (r Run) Clone() Run {
	out := r
	out.Exhausted = append([]string(nil), r.Exhausted...)
	out.Failed = append([]string(nil), r.Failed...)
	if r.Started != nil {
		ts := *r.Started
		out.Started = &ts
	}
	if r.Finished != nil {
		ts := *r.Finished
		out.Finished = &ts
	}
	return out
}
