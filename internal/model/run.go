package model

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is the outcome of one mirrored resource.
type Entry struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// Path is the local file, empty when nothing was assigned.
	Path string `json:"path,omitempty"`

	// Kind is the resource variant name (html, css, generic, ...).
	Kind string `json:"kind"`

	// Status is the outcome.
	Status Status `json:"status"`

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Bytes is the number of bytes written.
	Bytes int64 `json:"bytes"`

	// Digest is the hex BLAKE2b-256 of the downloaded body.
	Digest string `json:"digest,omitempty"`

	// Depth is the number of links followed from the start page.
	Depth int `json:"depth"`

	// Error describes the failure for problem statuses.
	Error string `json:"error,omitempty"`

	// Time is when the outcome was recorded.
	Time time.Time `json:"time"`
}

// Run is one mirroring run of a start URL.
// Record may be called from many goroutines; the other methods are meant
// for after the run, but are safe at any time.
type Run struct {
	// ID identifies the run in the history database.
	ID string `json:"id"`

	// StartURL is the page the run started from.
	StartURL string `json:"start_url"`

	// Project is the project name, the directory the mirror is written to.
	Project string `json:"project"`

	// ProjectPath is the absolute project directory.
	ProjectPath string `json:"project_path"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended; zero while running.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Error is the root failure that ended the run, if any.
	Error string `json:"error,omitempty"`

	// Entries lists every recorded outcome in recording order.
	Entries []Entry `json:"entries"`

	mu sync.Mutex
}

// NewRun creates a run with a fresh random ID.
func NewRun(startURL, project, projectPath string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		StartURL:    startURL,
		Project:     project,
		ProjectPath: projectPath,
		StartedAt:   time.Now(),
		Entries:     make([]Entry, 0),
	}
}

// Record appends an entry, stamping its time when unset.
func (r *Run) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
}

// Finish marks the run as ended. err is the root failure, or nil.
func (r *Run) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

// Snapshot returns a copy of the recorded entries.
func (r *Run) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.Entries)
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
