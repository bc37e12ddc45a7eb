// Package pipeline drives mirroring runs.
//
// A Pipeline executes Steps in order for one model.Run:
//
//	PrepareStep -> MirrorStep, then the finalizers HistoryStep -> ReportStep
//
// The main steps stop at the first error. The run is then finished with
// that error and the finalizers always execute, so a failed run is still
// recorded and reported. BatchProcessor runs one pipeline per start URL
// with bounded concurrency.
package pipeline
