// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to queue a scrape run, GET /v1/runs to list runs.
//   - GET /v1/runs/{run_id}, /units and /result?format=json|csv|xlsx.
//   - POST /v1/runs/{run_id}/cancel to stop a queued or running run.
package api
