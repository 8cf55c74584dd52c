// Package httpapi exposes the marketplace over REST.
package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/ordzaar/internal/app"
	"github.com/R3E-Network/ordzaar/internal/app/metrics"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/internal/middleware"
	"github.com/R3E-Network/ordzaar/internal/uploads"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// APIPrefix is the mount point of the versioned REST API.
const APIPrefix = "/api/v1"

// Options configures the router.
type Options struct {
	// Auth guards mutating routes. Nil disables authentication.
	Auth    *middleware.AuthMiddleware
	Uploads *uploads.Store
	// Storage names the active backend in /health.
	Storage string
	// AuditPath appends admin and authenticated calls as JSON lines. Empty
	// keeps them in memory only.
	AuditPath string
	Log       *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	auth    *middleware.AuthMiddleware
	uploads *uploads.Store
	storage string
	audit   *auditLog
	log     *logger.Logger
	started time.Time
}

// NewRouter returns a gorilla/mux router exposing the REST API, health,
// metrics, the event stream and uploaded files.
func NewRouter(application *app.Application, opts Options) (*mux.Router, error) {
	if opts.Log == nil {
		opts.Log = logger.NewDefault("httpapi")
	}
	if opts.Auth == nil {
		opts.Auth = middleware.NewAuthMiddleware(nil, opts.Log)
	}
	if opts.Storage == "" {
		opts.Storage = "memory"
	}

	sinks := multiSink{logAuditSink{log: opts.Log}}
	if opts.AuditPath != "" {
		fileSink, err := newFileAuditSink(opts.AuditPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}

	h := &handler{
		app:     application,
		auth:    opts.Auth,
		uploads: opts.Uploads,
		storage: opts.Storage,
		audit:   newAuditLog(500, sinks),
		log:     opts.Log,
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorResponse(w, http.StatusNotFound, string(apperrors.CodeNotFound), "Route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorResponse(w, http.StatusMethodNotAllowed, string(apperrors.CodeBadRequest), "Method not allowed", nil)
	})

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", application.Events).Methods(http.MethodGet)
	if h.uploads != nil {
		r.PathPrefix("/uploads/").Handler(h.uploads.Handler()).Methods(http.MethodGet, http.MethodHead)
	}

	api := r.PathPrefix(APIPrefix).Subrouter()
	h.applicationRoutes(api)
	h.collectionRoutes(api)
	h.ordinalRoutes(api)
	h.userRoutes(api)
	h.marketplaceRoutes(api)
	api.Handle("/admin/audit", h.admin(h.auditEntries)).Methods(http.MethodGet)

	return r, nil
}

// authenticated requires a valid token and records the call.
func (h *handler) authenticated(fn http.HandlerFunc) http.Handler {
	return h.auth.Handler(h.audit.record(fn))
}

// admin requires a token carrying the admin role and records the call.
func (h *handler) admin(fn http.HandlerFunc) http.Handler {
	return h.auth.Handler(h.audit.record(h.auth.RequireAdmin(fn)))
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, h.audit.listLimit(queryInt(r, "limit")))
}

// writeError maps err onto the JSON error envelope.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := apperrors.GetServiceError(err)
	switch {
	case se != nil:
	case errors.Is(err, storage.ErrNotFound):
		se = apperrors.NotFound("Resource not found")
	case errors.Is(err, storage.ErrConflict):
		se = apperrors.Conflict("Duplicate key error", err)
	default:
		se = apperrors.Internal("Server error", err)
	}

	entry := h.log.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": se.HTTPStatus,
	})
	if se.HTTPStatus >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	httputil.WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

func pathVar(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}
