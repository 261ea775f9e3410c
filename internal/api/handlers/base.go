// Package handlers implements the REST API endpoint handlers for pdnsadmin.
//
// REST API Endpoints:
//
// Public API (API key or HTTP Basic, base path /api/v1):
//   - GET    /zones, POST /zones, GET /zones/:id, DELETE /zones/:id
//   - GET    /zones/:id/records, POST /zones/:id/records
//   - GET    /zones/:id/records/:rid, PUT and DELETE likewise
//   - POST   /zones/bulk
//
// Internal API (session cookie plus CSRF token, base path /api/internal):
//   - POST   /login, POST /logout, GET /session
//   - the zone and record routes above, plus /zones/ptr-batch and
//     /zones/:id/export
//   - DNSSEC under /zones/:id/dnssec
//   - API key management under /api-keys
//   - GET|POST /index.php?page=... for legacy page names
//
// Authentication:
//
// API keys are sent as `Authorization: Bearer <key>` or `X-API-Key: <key>`.
// Basic authentication is accepted when api.basic_auth_enabled is set.
//
// @title pdnsadmin API
// @version 1.0
// @description REST API for managing PowerDNS zones, records and DNSSEC keys.
//
// @contact.name pdnsadmin
// @contact.url https://github.com/jroosing/pdnsadmin
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
//
// @securityDefinitions.basic BasicAuth
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/middleware"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/dnssec"
	"github.com/jroosing/pdnsadmin/internal/pdns"
	"github.com/jroosing/pdnsadmin/internal/session"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

// Services are the domain services behind the handlers.
type Services struct {
	Zones    *zones.Service
	Bulk     *bulk.Registrar
	DNSSEC   *dnssec.Service
	APIKeys  *auth.APIKeyService
	Auth     *auth.Authenticator
	Sessions *session.Manager
}

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	db        *database.DB
	svc       Services
	logger    *slog.Logger
	startTime time.Time
}

// New creates a new Handler with the given configuration, database and services.
func New(cfg *config.Config, db *database.DB, svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		db:        db,
		svc:       svc,
		logger:    logger,
		startTime: time.Now(),
	}
}

// DB returns the database connection for handlers that need it.
func (h *Handler) DB() *database.DB {
	return h.db
}

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, models.SuccessResponse{Success: true, Data: data, Message: message})
}

func fail(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: true, Message: message, Code: code})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message, "validation_error")
}

// respondError maps service errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		verr *validation.Error
		perr *pdns.APIError
	)
	switch {
	case errors.As(err, &verr):
		badRequest(c, verr.Error())
	case errors.Is(err, auth.ErrForbidden):
		fail(c, http.StatusForbidden, "You do not have the permission to perform this action", "forbidden")
	case errors.Is(err, dnssec.ErrInvalidToken):
		fail(c, http.StatusForbidden, err.Error(), "invalid_token")
	case errors.Is(err, dnssec.ErrDisabled), errors.Is(err, zones.ErrReverseDisabled):
		fail(c, http.StatusForbidden, err.Error(), "disabled")
	case errors.Is(err, zones.ErrZoneNotFound), errors.Is(err, zones.ErrRecordNotFound),
		errors.Is(err, dnssec.ErrKeyNotFound), errors.Is(err, auth.ErrKeyNotFound),
		errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, zones.ErrZoneExists), errors.Is(err, zones.ErrRecordExists):
		fail(c, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, auth.ErrKeyLimit), errors.Is(err, auth.ErrInvalidKeyName), errors.Is(err, zones.ErrNoReverseZone):
		badRequest(c, err.Error())
	case errors.As(err, &perr):
		if perr.StatusCode == http.StatusNotFound {
			fail(c, http.StatusNotFound, perr.Message, "pdns_error")
			return
		}
		fail(c, http.StatusBadGateway, perr.Message, "pdns_error")
	default:
		h.logger.Error("unexpected error",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error(), "internal_error")
	}
}

// identity returns the caller; the auth middleware guarantees it is set.
func identity(c *gin.Context) *auth.Identity {
	return middleware.Identity(c)
}

func int64Param(c *gin.Context, name, label string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "Invalid "+label)
		return 0, false
	}
	return v, true
}

func zoneID(c *gin.Context) (int64, bool) {
	return int64Param(c, "id", "zone ID")
}

func recordID(c *gin.Context) (int64, bool) {
	return int64Param(c, "rid", "record ID")
}

func keyID(c *gin.Context) (int, bool) {
	v, err := strconv.Atoi(c.Param("key_id"))
	if err != nil || v <= 0 {
		badRequest(c, "Invalid key ID")
		return 0, false
	}
	return v, true
}

func (h *Handler) rowsPerPage() int {
	if h.cfg != nil && h.cfg.Interface.RowsPerPage > 0 {
		return h.cfg.Interface.RowsPerPage
	}
	return 10
}
