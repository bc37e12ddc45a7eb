package urlpath

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Relative returns target relative to the directory holding from, with
// forward slashes and each segment URL-escaped so the result can be
// embedded in markup. An empty from returns target itself.
func Relative(target, from string) string {
	if from == "" {
		return escapePath(filepath.ToSlash(target))
	}
	rel, err := filepath.Rel(filepath.Dir(from), target)
	if err != nil {
		return escapePath(filepath.ToSlash(target))
	}
	return escapePath(filepath.ToSlash(rel))
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
