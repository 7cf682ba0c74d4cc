// Package progress carries per-unit scrape milestones from the orchestrator
// to whoever is watching a run. Events go through a non-blocking Hub that
// batches them on a background goroutine and fans them out to sinks such as
// the console, structured logs, Prometheus, or the run store.
package progress
