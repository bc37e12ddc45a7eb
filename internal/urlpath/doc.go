// Package urlpath maps remote URLs to local file paths.
//
// The mapping is a pure function of its inputs: the same URL, crawl base,
// base directory, tree layout and content-type hint always produce a
// byte-identical path. The Dedup Index and repeated runs over the same
// output folder rely on this.
//
// # Layouts
//
// Hierarchical layout mirrors the URL structure on disk:
//
//	https://example.com/css/site.css -> <base>/example.com/css/site.css
//
// Linear layout flattens every file into the base directory and appends a
// CRC-32 checksum of the normalized URL to keep names unique:
//
//	https://example.com/css/site.css -> <base>/site_1c291ca3.css
//
// # Sanitizing
//
// Every path segment is NFC-normalized, stripped of characters that are
// unsafe on common filesystems, collapsed on whitespace and trimmed of
// leading/trailing dots. Windows device names (CON, NUL, COM1, LPT9, ...)
// are prefixed with an underscore so they never appear literally.
//
// The package also hosts the same-site policy shared by the scheduler and
// the crawl orchestrator, see SameSite and WithinBase.
package urlpath
