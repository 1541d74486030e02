// Package gateway implements the public HTTP edge of the managed MCP
// gateway.
//
// # Overview
//
// Gateway owns the HTTP listener, the metadata store, the per-endpoint
// rate limiter, and the MCP dispatcher. Every request names an endpoint
// id in its path (/gateway/{endpoint_id}); GET probes health, POST carries
// a JSON-RPC 2.0 envelope that the package resolves against the store
// before handing it to internal/mcp.
//
// # Lifecycle
//
// New builds every component and the http.Server; Run blocks serving
// until its context is canceled or the server fails, then calls Shutdown,
// which drains the fire-and-forget usage queue within a grace period
// before closing the store.
package gateway
