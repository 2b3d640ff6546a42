// Package api hosts the HTTP control surface for collection runs. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to start a run, GET /v1/runs to list runs.
//   - GET /v1/runs/{run_id} for progress and POST /v1/runs/{run_id}/cancel.
//
// Only one run is active at a time; a second start request gets 409.
package api
