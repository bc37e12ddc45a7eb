package index

import (
	"maps"
	"sync"

	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Index is a race-free URL to path table.
type Index struct {
	mu      sync.Mutex
	entries map[string]string
}

// New creates an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]string)}
}

// Lookup returns the path already assigned to rawURL.
func (i *Index) Lookup(rawURL string) (string, bool) {
	key := keyOf(rawURL)

	i.mu.Lock()
	defer i.mu.Unlock()

	path, ok := i.entries[key]
	return path, ok
}

// Reserve claims path for rawURL before any network I/O starts.
// It returns the path now assigned to rawURL and true when this call made
// the reservation. When another caller got there first, the earlier path is
// returned with false and the caller must not process the resource again.
func (i *Index) Reserve(rawURL, path string) (string, bool) {
	key := keyOf(rawURL)

	i.mu.Lock()
	defer i.mu.Unlock()

	if existing, ok := i.entries[key]; ok {
		return existing, false
	}
	i.entries[key] = path
	return path, true
}

// Record assigns path to every alias that has no entry yet. It is called
// after a fetch with the requested URL and each redirect hop.
func (i *Index) Record(urls []string, path string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, u := range urls {
		if u == "" {
			continue
		}
		key := keyOf(u)
		if _, ok := i.entries[key]; !ok {
			i.entries[key] = path
		}
	}
}

// Release drops the reservation of rawURL if it still points at path, so
// a reference that was claimed but will not be mirrored can be offered
// again later.
func (i *Index) Release(rawURL, path string) {
	key := keyOf(rawURL)

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.entries[key] == path {
		delete(i.entries, key)
	}
}

// Len returns the number of aliases known.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Snapshot returns a copy of the current entries.
func (i *Index) Snapshot() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return maps.Clone(i.entries)
}

// keyOf falls back to the raw string for URLs that do not parse.
func keyOf(rawURL string) string {
	if key, err := urlpath.Normalize(rawURL); err == nil {
		return key
	}
	return rawURL
}
