// ABOUTME: HTTP gateway edge: resolves endpoints, applies the per-endpoint
// ABOUTME: rate limiter, and hands JSON-RPC requests to the MCP dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmcp/data-gateway/internal/adapters"
	"github.com/openmcp/data-gateway/internal/adapters/mixpanel"
	"github.com/openmcp/data-gateway/internal/adapters/mssql"
	"github.com/openmcp/data-gateway/internal/adapters/mysql"
	"github.com/openmcp/data-gateway/internal/adapters/postgres"
	"github.com/openmcp/data-gateway/internal/adapters/stripe"
	"github.com/openmcp/data-gateway/internal/adapters/supabase"
	"github.com/openmcp/data-gateway/internal/config"
	"github.com/openmcp/data-gateway/internal/crypto"
	"github.com/openmcp/data-gateway/internal/mcp"
	"github.com/openmcp/data-gateway/internal/ratelimit"
	"github.com/openmcp/data-gateway/internal/store"
	"github.com/openmcp/data-gateway/internal/usage"
)

// ServerName identifies this gateway in the MCP initialize reply; the
// version reported alongside it is the one passed to New.
const (
	ServerName = "managed-mcp-gateway"
)

// maxRequestBodyBytes bounds a JSON-RPC POST body so a misbehaving or
// malicious client can't exhaust memory with an unbounded request.
const maxRequestBodyBytes = 1 << 20 // 1 MiB

// Gateway is the public edge: it owns the HTTP listener, the metadata
// store, the per-endpoint rate limiter, and the MCP dispatcher they all
// feed into.
type Gateway struct {
	config     *config.Config
	store      store.Store
	masterKey  *crypto.MasterKey
	registry   *adapters.Registry
	queue      *usage.Queue
	limiter    *ratelimit.Limiter
	dispatcher *mcp.Dispatcher
	logger     *slog.Logger
	httpServer *http.Server
	version    string
}

// New wires every gateway component together: the adapter registry (all
// six supported services), the fire-and-forget usage queue, the
// per-endpoint rate limiter, and the JSON-RPC dispatcher, then builds the
// HTTP server and mux.
func New(cfg *config.Config, s store.Store, version string, logger *slog.Logger) (*Gateway, error) {
	masterKey, err := crypto.MustNewMasterKey([]byte(cfg.Crypto.MasterKeyHex))
	if err != nil {
		return nil, err
	}

	registry := adapters.NewRegistry(map[string]adapters.Adapter{
		"postgresql": postgres.New(),
		"mysql":      mysql.New(),
		"mssql":      mssql.New(),
		"supabase":   supabase.New(),
		"stripe":     stripe.New(),
		"mixpanel":   mixpanel.New(),
	})

	queue := usage.New(s, logger, cfg.Quota.UsageQueueBufferSize, cfg.Quota.UsageQueueWorkers)
	dispatcher := mcp.New(s, masterKey, registry, queue, logger, ServerName, version)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		masterKey:  masterKey,
		registry:   registry,
		queue:      queue,
		limiter:    ratelimit.New(),
		dispatcher: dispatcher,
		logger:     logger.With("component", "gateway"),
		version:    version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gateway/", gw.handleEndpoint)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// handleEndpoint routes GET (health probe) and POST (JSON-RPC) requests
// for /gateway/{endpoint_id}; any other method is a 405.
func (g *Gateway) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	endpointID := r.URL.Path[len("/gateway/"):]
	if endpointID == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		g.handleHealthProbe(w, r, endpointID)
	case http.MethodPost:
		g.handleJSONRPC(w, r, endpointID)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleHealthProbe(w http.ResponseWriter, r *http.Request, endpointID string) {
	resolved, err := g.store.ResolveEndpoint(r.Context(), endpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		g.logger.Error("resolving endpoint for health probe", "error", err, "endpoint_id", endpointID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !resolved.Endpoint.Active {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":     ServerName,
		"version":  g.version,
		"status":   "active",
		"service":  resolved.Endpoint.ServiceKind,
		"endpoint": resolved.Endpoint.ID,
	})
}

func (g *Gateway) handleJSONRPC(w http.ResponseWriter, r *http.Request, endpointID string) {
	ctx, cancel := context.WithTimeout(r.Context(), g.config.Server.RequestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, nil, mcp.CodeParseError, "request body too large or unreadable")
		return
	}

	req, err := mcp.ParseEnvelope(body)
	if err != nil {
		writeRPCError(w, nil, mcp.CodeParseError, "malformed JSON-RPC request")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, mcp.CodeInvalidEnvelope, `jsonrpc must be "2.0"`)
		return
	}

	resolved, err := g.store.ResolveEndpoint(ctx, endpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeRPCError(w, req.ID, mcp.CodeEndpointNotFound, "endpoint not found")
			return
		}
		g.logger.Error("resolving endpoint", "error", err, "endpoint_id", endpointID)
		writeRPCError(w, req.ID, mcp.CodeServerFault, "resolving endpoint")
		return
	}
	if !resolved.Endpoint.Active {
		writeRPCError(w, req.ID, mcp.CodeEndpointInactive, "endpoint is inactive")
		return
	}

	if !g.limiter.Allow(resolved.Endpoint.ID, resolved.Endpoint.RatePerMinute) {
		writeRPCError(w, req.ID, mcp.CodeQuotaExceeded, "rate limit exceeded")
		return
	}

	resp, noContent := g.dispatcher.Dispatch(ctx, req, resolved)
	if noContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, http.StatusOK, mcp.NewErrorResponse(id, code, message))
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownGracePeriod)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops accepting new HTTP requests, drains the usage queue within
// ctx's deadline, and closes the store. Errors from each step are collected
// rather than short-circuiting, so a failure in one doesn't mask another.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "usage queue drain", g.queue.Close(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if dropped := g.queue.Dropped(); dropped > 0 {
		g.logger.Warn("usage queue dropped jobs during shutdown", "dropped", dropped)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
