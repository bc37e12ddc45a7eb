package urlpath

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of resolved paths a Resolver remembers.
const DefaultCacheSize = 4096

// Resolver memoizes Resolve. It is safe for concurrent use.
// A nil *Resolver resolves without caching.
type Resolver struct {
	cache *lru.Cache[Input, string]
}

// NewResolver creates a Resolver that keeps up to size entries.
// A non-positive size selects DefaultCacheSize.
func NewResolver(size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[Input, string](size)
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: cache}, nil
}

// Resolve returns the canonical path for in, from cache when possible.
func (r *Resolver) Resolve(in Input) (string, error) {
	if r == nil {
		return Resolve(in)
	}
	if p, ok := r.cache.Get(in); ok {
		return p, nil
	}
	p, err := Resolve(in)
	if err != nil {
		return "", err
	}
	r.cache.Add(in, p)
	return p, nil
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return r.cache.Len()
}
