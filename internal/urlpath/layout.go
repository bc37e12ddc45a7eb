package urlpath

import (
	"fmt"
	"strings"
)

// Layout selects how resolved files are arranged below the base directory.
type Layout int

const (
	// Hierarchical mirrors host and URL path segments as directories.
	Hierarchical Layout = iota

	// Linear places every file directly in the base directory.
	Linear
)

// String returns the configuration name of the layout.
func (l Layout) String() string {
	switch l {
	case Hierarchical:
		return "hierarchical"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout converts a configuration name into a Layout.
// An empty name selects Hierarchical.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hierarchical":
		return Hierarchical, nil
	case "linear":
		return Linear, nil
	default:
		return Hierarchical, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
}
