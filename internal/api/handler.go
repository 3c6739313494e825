// Package api serves read-only snapshot and file queries over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"icescan/internal/iceberg"
	"icescan/internal/service/scan"
)

var responseJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// HandlerConfig holds the parameters needed to build the API handler.
type HandlerConfig struct {
	Scan      *scan.Service
	StartTime time.Time
	Logger    *slog.Logger
	// RateLimit, when set, limits each client on the /v1 routes. Its idle
	// sweeper stops when Context is done.
	RateLimit *RateLimitConfig
	Context   context.Context
	// Auth, when set, requires credentials on the /v1 routes.
	Auth *AuthConfig
	// AllowedRoots are the table location prefixes the /v1 routes may read.
	// A table outside every root is rejected, so an empty list serves nothing.
	AllowedRoots []string
}

type handler struct {
	scan   *scan.Service
	start  time.Time
	logger *slog.Logger
	roots  []string
}

// NewHandler builds the router with /health and the /v1 query routes. Every
// /v1 route takes the table root in the "table" query parameter and selects
// the snapshot with "snapshot_id" or "as_of" (latest otherwise).
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{scan: cfg.Scan, start: cfg.StartTime, logger: logger}
	for _, root := range cfg.AllowedRoots {
		if root = strings.TrimSuffix(root, "/"); root != "" {
			h.roots = append(h.roots, root)
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit != nil {
			ctx := cfg.Context
			if ctx == nil {
				ctx = context.Background()
			}
			r.Use(RateLimiter(ctx, *cfg.RateLimit))
		}
		if cfg.Auth != nil {
			r.Use(Authenticator(*cfg.Auth))
		}
		r.Get("/snapshot", h.getSnapshot)
		r.Get("/snapshots", h.listSnapshots)
		r.Get("/manifests", h.listManifests)
		r.Get("/files", h.listFiles)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.start).Seconds()),
	})
}

func (h *handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	table, sel, ok := h.tableAndSelector(w, r)
	if !ok {
		return
	}
	snap, err := h.scan.Snapshot(r.Context(), table, sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return
	}
	snaps, err := h.scan.Snapshots(r.Context(), table)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"table":     table,
		"snapshots": snaps,
	})
}

func (h *handler) listManifests(w http.ResponseWriter, r *http.Request) {
	table, sel, ok := h.tableAndSelector(w, r)
	if !ok {
		return
	}
	res, err := h.scan.Manifests(r.Context(), table, sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	table, sel, ok := h.tableAndSelector(w, r)
	if !ok {
		return
	}
	content := iceberg.ManifestContentData
	if v := r.URL.Query().Get("content"); v != "" {
		ct, err := iceberg.ParseManifestContentType(v)
		if err != nil {
			writeBadRequest(w, r, err.Error())
			return
		}
		content = ct
	}
	res, err := h.scan.Files(r.Context(), table, sel, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// tableAndSelector reads the common query parameters, writing a 400 and
// returning ok=false when they are invalid.
func (h *handler) tableAndSelector(w http.ResponseWriter, r *http.Request) (string, iceberg.Selector, bool) {
	table, ok := h.tableParam(w, r)
	if !ok {
		return "", iceberg.Selector{}, false
	}
	q := r.URL.Query()

	var sel iceberg.Selector
	if v := q.Get("snapshot_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeBadRequest(w, r, "invalid snapshot_id "+strconv.Quote(v))
			return "", iceberg.Selector{}, false
		}
		sel.SnapshotID = &id
	}
	if v := q.Get("as_of"); v != "" {
		ts, err := iceberg.ParseTimestamp(v)
		if err != nil {
			writeBadRequest(w, r, err.Error())
			return "", iceberg.Selector{}, false
		}
		sel.AsOf = &ts
	}
	if sel.SnapshotID != nil && sel.AsOf != nil {
		writeBadRequest(w, r, "snapshot_id and as_of are mutually exclusive")
		return "", iceberg.Selector{}, false
	}
	return table, sel, true
}

// tableParam reads the "table" query parameter, writing a 400 when it is
// missing and a 403 when it lies outside the allowed roots.
func (h *handler) tableParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := r.URL.Query().Get("table")
	if table == "" {
		writeBadRequest(w, r, "query parameter 'table' is required")
		return "", false
	}
	if !h.tableAllowed(table) {
		principal, _ := PrincipalFromContext(r.Context())
		h.logger.Warn("table outside allowed roots", "request_id", chimw.GetReqID(r.Context()), "principal", principal, "table", table)
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":      "table is outside the served locations",
			"code":       "TABLE_NOT_ALLOWED",
			"request_id": chimw.GetReqID(r.Context()),
		})
		return "", false
	}
	return table, true
}

// tableAllowed reports whether table equals or lies beneath a configured
// root. Dot-dot segments are refused outright.
func (h *handler) tableAllowed(table string) bool {
	for _, seg := range strings.Split(table, "/") {
		if seg == ".." {
			return false
		}
	}
	for _, root := range h.roots {
		if table == root || strings.HasPrefix(table, root+"/") {
			return true
		}
	}
	return false
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiErrorFromDomainError(err)
	requestID := chimw.GetReqID(r.Context())
	principal, _ := PrincipalFromContext(r.Context())
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "request_id", requestID, "principal", principal, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Info("request rejected", "request_id", requestID, "principal", principal, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, apiErr.Status, map[string]interface{}{
		"error":      apiErr.Message,
		"code":       apiErr.Code,
		"request_id": requestID,
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":      msg,
		"code":       "INVALID_REQUEST",
		"request_id": chimw.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = responseJSON.NewEncoder(w).Encode(v)
}
