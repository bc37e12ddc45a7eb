package model

import (
	"fmt"
	"strings"
)

// Status is the outcome of one resource.
type Status int

const (
	// StatusSaved means the content was downloaded and written.
	StatusSaved Status = iota

	// StatusCached means an earlier run already mirrored the file and it
	// was not fetched again.
	StatusCached

	// StatusSkipped means nothing was written: the file already existed
	// and overwriting is off, or a files-only reference returned HTML.
	StatusSkipped

	// StatusPlaceholder means the server answered with an error status and
	// a notice was saved in place of the content.
	StatusPlaceholder

	// StatusFailed means the resource could not be retrieved at all.
	StatusFailed

	// StatusDenied means the access policy refused the URL.
	StatusDenied
)

var statusNames = map[Status]string{
	StatusSaved:       "saved",
	StatusCached:      "cached",
	StatusSkipped:     "skipped",
	StatusPlaceholder: "placeholder",
	StatusFailed:      "failed",
	StatusDenied:      "denied",
}

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusSaved, StatusCached, StatusSkipped, StatusPlaceholder, StatusFailed, StatusDenied,
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsProblem reports whether the status needs the user's attention.
func (s Status) IsProblem() bool {
	return s == StatusPlaceholder || s == StatusFailed || s == StatusDenied
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}
