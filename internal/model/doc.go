// Package model defines the bookkeeping types of a mirroring run.
//
// This package contains the following main types:
//   - Entry: the outcome of one mirrored resource
//   - Run: one mirroring run and every Entry recorded during it
//   - Summary: counters derived from a Run for reports
//
// Models live in their own package because the scheduler, the database
// and the report writers all need them; keeping them here prevents import
// cycles. Every type serializes to JSON for reports and the run history.
package model
