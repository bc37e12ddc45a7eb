package resource

import "errors"

var (
	// ErrInvalidURL is returned for URLs that cannot be fetched.
	ErrInvalidURL = errors.New("invalid url")

	// ErrAccessDenied is returned when the access policy refuses a URL.
	ErrAccessDenied = errors.New("access denied by policy")

	// ErrTransport is returned when the request could not be completed.
	ErrTransport = errors.New("transport error")

	// ErrUnknownKind is returned by ParseKind for unknown names.
	ErrUnknownKind = errors.New("unknown resource kind")
)
