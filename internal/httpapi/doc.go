// Package httpapi exposes media streaming, subtitle downloads, uploads and
// job administration over HTTP.
//
// Routes are registered on a gorilla/mux router. Everything under /api is
// guarded by an optional bearer token; /metrics serves the Prometheus
// registry without authentication.
package httpapi
