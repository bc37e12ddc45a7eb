package urlpath

import "errors"

var (
	// ErrInvalidURL is returned when a URL cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnknownLayout is returned by ParseLayout for unrecognized names.
	ErrUnknownLayout = errors.New("unknown tree layout")
)
