// Package index maps every URL a resource is known by to the one local path
// assigned to it.
//
// The index is the single structure shared by every worker of a run. Each
// mutation is one atomic check-then-insert under a mutex: the first path
// stored for a URL wins and is never replaced or evicted within the run.
// Keys are normalized with urlpath.Normalize, so trivially different
// spellings of one URL (host case, default port, fragment) share an entry.
package index
