// Package crawl mirrors a whole site by driving page resources through the
// scheduler.
//
// # Architecture
//
// The Crawler is registered as the scheduler's frontier. Pages discovered
// while mirroring a page are offered to the Crawler instead of being
// dispatched right away; admitted pages are queued and dispatched in
// breadth-first order once the current wave of work has drained.
//
// The Crawler keeps its own visited set, independent of the dedup index:
// the index stops a URL from being fetched twice, the visited set bounds
// how many pages the crawl admits at all.
//
// # Limits
//
//   - max depth: links followed from the start page (0 keeps only the start
//     page, negative is unlimited)
//   - max pages: pages admitted including the start page (non-positive is
//     unlimited)
//   - ignore and follow patterns: glob patterns matched against URL paths
//   - pages on other sites are never admitted
//
// Refused pages are not mirrored; links to them keep their absolute URL.
//
// # Usage
//
//	c := crawl.New(sched, crawl.WithMaxDepth(3), crawl.WithMaxPages(500))
//	err := c.Run(ctx, root)
package crawl
