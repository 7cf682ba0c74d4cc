// Package scrape runs the two-level fetch pipeline: an outer pool of unit
// workers, each driving an inner pool of detail workers, with results merged
// and deduplicated on the orchestrator goroutine.
package scrape
