// Package storage writes mirrored files to the local filesystem.
//
// Files are written to a temporary sibling first and renamed into place,
// so a reader never observes a partially written mirror file. Parent
// directories are created on demand.
package storage
