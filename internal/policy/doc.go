// Package policy decides whether a URL may be fetched and how fast.
//
// Access rules come from each host's robots.txt, parsed with
// github.com/temoto/robotstxt. The file is fetched once per scheme and
// host; concurrent first requests for the same host share one fetch
// through golang.org/x/sync/singleflight. A robots.txt that is missing or
// cannot be fetched allows everything.
//
// Wait blocks before each request until the host's minimum interval has
// passed since the previous one. The interval is the larger of the
// configured delay and the host's Crawl-delay, enforced with one
// golang.org/x/time/rate limiter per host.
package policy
