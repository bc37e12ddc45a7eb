package model

import (
	"sort"
	"time"
)

// Summary condenses a Run for display.
type Summary struct {
	RunID     string        `json:"run_id"`
	StartURL  string        `json:"start_url"`
	Project   string        `json:"project"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Counts maps each status name to its number of entries.
	Counts map[string]int `json:"counts"`

	// Kinds maps each resource kind to its number of entries.
	Kinds map[string]int `json:"kinds"`

	// Total is the number of entries.
	Total int `json:"total"`

	// Bytes is the number of bytes written.
	Bytes int64 `json:"bytes"`

	// Problems lists the entries with a problem status, ordered by URL.
	Problems []Entry `json:"problems,omitempty"`

	// Error is the root failure, if any.
	Error string `json:"error,omitempty"`
}

// Summarize computes the Summary of r.
func (r *Run) Summarize() Summary {
	entries := r.Snapshot()

	s := Summary{
		RunID:     r.ID,
		StartURL:  r.StartURL,
		Project:   r.Project,
		StartedAt: r.StartedAt,
		Duration:  r.Duration(),
		Counts:    make(map[string]int, len(AllStatuses)),
		Kinds:     make(map[string]int),
		Total:     len(entries),
	}
	r.mu.Lock()
	s.Error = r.Error
	r.mu.Unlock()

	for _, e := range entries {
		s.Counts[e.Status.String()]++
		s.Kinds[e.Kind]++
		s.Bytes += e.Bytes
		if e.Status.IsProblem() {
			s.Problems = append(s.Problems, e)
		}
	}
	sort.Slice(s.Problems, func(i, j int) bool { return s.Problems[i].URL < s.Problems[j].URL })
	return s
}

// Count returns the number of entries with status st.
func (s Summary) Count(st Status) int {
	return s.Counts[st.String()]
}

// OK reports whether the run ended without a root failure.
func (s Summary) OK() bool {
	return s.Error == ""
}
