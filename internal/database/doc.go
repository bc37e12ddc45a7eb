// Package database provides SQLite-based storage for pagemirror.
//
// The CacheDB stores:
//   - Asset records: where an earlier run saved a URL, with its digest
//     and size, so later runs can skip assets that are still on disk
//   - Run records: the summary of every finished run for history listings
//
// We use SQLite via modernc.org/sqlite: the database is a single file,
// the driver is CGO-free and WAL mode lets several mirroring runs read
// the cache while one writes.
package database
