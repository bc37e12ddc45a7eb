// Package transport performs the HTTP requests of a mirror run.
//
// Client.Request distinguishes connection failures, which are returned as
// errors, from HTTP error statuses, which are returned in the Response.
// Every Response carries the final URL and the redirect chain that led to
// it, so the caller can record each hop as an alias of the same resource.
//
// Requests can be routed through a SOCKS5 proxy (golang.org/x/net/proxy),
// share a cookie jar scoped with the public suffix list and have their
// bodies capped at a maximum size.
package transport
