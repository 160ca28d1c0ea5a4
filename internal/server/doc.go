// Package server implements the HTTP API using Echo.
//
// Routes: auth (session login), API (brands/booths/ingredients/menu/sales/reports),
// event streams (SSE), health/metrics/version.
// Handlers split by domain: handlers_auth.go, handlers_api.go, handlers_stream.go, handlers_health.go.
package server
