// Package resource models one unit of mirroring work.
//
// A Resource is created for every reference discovered in a document. Its
// Kind selects how it is fetched, how its children are discovered and how
// it is referenced from its parent:
//
//   - KindHTML parses the page, hands every reference to the Handler,
//     rewrites it in place and saves the rewritten page.
//   - KindCSS and KindJS do the same over url(...) and @import text.
//   - KindGeneric streams the body to disk.
//   - KindGenericOnly behaves as KindGeneric unless the body is HTML.
//   - KindVoid and KindAbsoluteURL never perform network I/O; the parent
//     keeps the absolute URL.
//   - KindBase64 is fetched but never saved; the parent embeds a data URI.
//
// The shared collaborators of a run (transport, access policy, storage,
// handler) are carried by a Session so that independent runs can coexist.
package resource
