package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the parent of every validation error. A run that
// fails validation never issues a request.
var ErrConfiguration = errors.New("configuration error")

// Configuration validation errors.
// These errors are returned by Config.Validate() and wrap ErrConfiguration,
// so callers can test for the category or for the specific problem with
// errors.Is().
var (
	// ErrNoStartURL is returned when neither a start URL nor a list of
	// targets is configured.
	ErrNoStartURL = configError("no start URL specified: provide a URL or use --list")

	// ErrInvalidStartURL is returned when a start URL is not an absolute
	// http or https URL.
	ErrInvalidStartURL = configError("invalid start URL: must be an absolute http(s) URL")

	// ErrNoOutputFolder is returned when the output folder is empty.
	ErrNoOutputFolder = configError("no output folder specified")

	// ErrNoProjectName is returned when a run has no project name and none
	// can be derived from its start URL.
	ErrNoProjectName = configError("no project name specified")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = configError("invalid timeout: must be positive")

	// ErrInvalidCloseTimeout is returned when the close timeout is negative.
	ErrInvalidCloseTimeout = configError("invalid close timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = configError("invalid batch size: must be positive")

	// ErrInvalidWorkers is returned when a concurrent mode has no workers.
	ErrInvalidWorkers = configError("invalid worker count: must be positive")

	// ErrInvalidQueueSize is returned when the pool queue size is negative.
	ErrInvalidQueueSize = configError("invalid queue size: must be non-negative")

	// ErrInvalidDelay is returned when the per-host delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = configError("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = configError("invalid max body size: must be non-negative")

	// ErrUnknownConcurrencyMode is returned for a mode other than sync,
	// spawn or pool.
	ErrUnknownConcurrencyMode = configError("unknown concurrency mode")

	// ErrUnknownTreeLayout is returned for a layout other than
	// hierarchical or linear.
	ErrUnknownTreeLayout = configError("unknown tree layout")

	// ErrUnknownReportFormat is returned for a report format other than
	// text, json or markdown.
	ErrUnknownReportFormat = configError("unknown report format")
)

// configError creates a sentinel that wraps ErrConfiguration.
func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}
