// Package api serves a read-only HTTP view of the last harvest's artifacts.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/races and /v1/summary for the stored dataset and run summary.
package api
