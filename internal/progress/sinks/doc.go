// Package sinks implements progress consumers: console status lines,
// structured logs, Prometheus collectors, a channel for live subscribers,
// and the run store used by the HTTP API.
package sinks
