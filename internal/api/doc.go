// Package api hosts the optional status server for a running scan. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/slots and /v1/slots/{slot} for the per-slot progress board.
//   - GET /v1/summary for run totals and outcome counts.
package api
