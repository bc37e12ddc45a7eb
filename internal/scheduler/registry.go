package scheduler

import (
	"maps"
	"strings"

	"github.com/nao1215/pagemirror/internal/extract"
	"github.com/nao1215/pagemirror/internal/resource"
)

// Registry maps the tag a reference was found under to the resource kind
// that handles it.
type Registry struct {
	kinds    map[string]resource.Kind
	fallback resource.Kind
}

// NewRegistry returns the default mapping. Links to other pages (a, form,
// iframe, frame, area) stay absolute unless crawl is true, in which case
// they become pages of the mirror.
func NewRegistry(crawl bool) *Registry {
	page := resource.KindAbsoluteURL
	if crawl {
		page = resource.KindHTML
	}
	return &Registry{
		kinds: map[string]resource.Kind{
			"link":               resource.KindCSS,
			"style":              resource.KindCSS,
			"script":             resource.KindJS,
			"img":                resource.KindGeneric,
			"meta":               resource.KindGeneric,
			"input":              resource.KindGeneric,
			"body":               resource.KindGeneric,
			"a":                  page,
			"form":               page,
			"iframe":             page,
			"frame":              page,
			"area":               page,
			"source":             resource.KindGenericOnly,
			"video":              resource.KindGenericOnly,
			"audio":              resource.KindGenericOnly,
			"track":              resource.KindGenericOnly,
			"embed":              resource.KindGenericOnly,
			"object":             resource.KindGenericOnly,
			extract.TagCSSImport: resource.KindCSS,
			extract.TagCSSURL:    resource.KindGeneric,
		},
		fallback: resource.KindGeneric,
	}
}

// KindFor returns the kind registered for tag, or the fallback.
func (r *Registry) KindFor(tag string) resource.Kind {
	if k, ok := r.kinds[strings.ToLower(tag)]; ok {
		return k
	}
	return r.fallback
}

// Set registers kind for tag.
func (r *Registry) Set(tag string, kind resource.Kind) {
	r.kinds[strings.ToLower(strings.TrimSpace(tag))] = kind
}

// Disable maps every tag to KindVoid.
func (r *Registry) Disable(tags ...string) {
	for _, tag := range tags {
		r.Set(tag, resource.KindVoid)
	}
}

// SetFallback sets the kind of unregistered tags.
func (r *Registry) SetFallback(kind resource.Kind) {
	r.fallback = kind
}

// Kinds returns a copy of the registered mapping.
func (r *Registry) Kinds() map[string]resource.Kind {
	return maps.Clone(r.kinds)
}
