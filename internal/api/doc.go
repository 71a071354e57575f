// Package api hosts the HTTP triggers for the pipeline. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/directory runs the directory stage once.
//   - POST /v1/pubsub/push runs the detail stage for one Pub/Sub push delivery.
package api
