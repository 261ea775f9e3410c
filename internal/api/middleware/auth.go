// Package middleware provides HTTP middleware for the pdnsadmin REST API,
// including API key, Basic and session authentication, CSRF checks,
// request metrics and request logging.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/session"
)

const (
	identityKey = "identity"
	sessionKey  = "session"

	// CSRFHeader carries the session CSRF token on mutating requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFField is the form field alternative to CSRFHeader.
	CSRFField = "_token"
)

// Authenticator resolves request credentials to an identity.
type Authenticator interface {
	AuthenticateAPIKey(ctx context.Context, secret string) (*auth.Identity, error)
	AuthenticateBasic(ctx context.Context, username, password string) (*auth.Identity, error)
	IdentityForUser(ctx context.Context, userID int64) (*auth.Identity, error)
}

// Sessions loads server-side sessions.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

func abort(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: true, Message: message, Code: code})
}

func setIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(identityKey, id)
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
}

// Identity returns the authenticated caller, or nil.
func Identity(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return auth.FromContext(c.Request.Context())
}

// Session returns the session of a session-authenticated request, or nil.
func Session(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// RequireAPIEnabled rejects every request when the public API is switched off.
func RequireAPIEnabled(cfg config.APIConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			abort(c, http.StatusForbidden, "API is disabled", "api_disabled")
			return
		}
		c.Next()
	}
}

// apiKeyFromRequest returns the key from `Authorization: Bearer <key>` or
// `X-API-Key: <key>`.
func apiKeyFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// PublicAuth authenticates /api/v1 requests with an API key or, when
// enabled, HTTP Basic credentials.
func PublicAuth(authn Authenticator, cfg config.APIConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		presented := false

		// First success wins: API key, then Basic.
		if key := apiKeyFromRequest(c.Request); key != "" {
			presented = true
			id, err := authn.AuthenticateAPIKey(ctx, key)
			if recordAttempt(c, auth.MethodAPIKey, err) {
				setIdentity(c, id)
				c.Next()
				return
			}
		}
		if user, pass, ok := c.Request.BasicAuth(); ok && cfg.BasicAuthEnabled {
			presented = true
			id, err := authn.AuthenticateBasic(ctx, user, pass)
			if recordAttempt(c, auth.MethodBasic, err) {
				setIdentity(c, id)
				c.Next()
				return
			}
		}

		if cfg.BasicAuthEnabled {
			c.Header("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, cfg.BasicAuthRealm))
		}
		if !presented {
			abort(c, http.StatusUnauthorized, "Unauthorized: Authentication required", "auth_required")
			return
		}
		abort(c, http.StatusUnauthorized, "Unauthorized: Invalid credentials", "invalid_credentials")
	}
}

// recordAttempt counts an authentication attempt and reports whether it
// succeeded. Unexpected failures are attached to the request.
func recordAttempt(c *gin.Context, method auth.Method, err error) bool {
	metrics.AuthAttempts.WithLabelValues(string(method), metrics.Result(err)).Inc()
	if err != nil && !errors.Is(err, auth.ErrInvalidCredentials) {
		_ = c.Error(err)
	}
	return err == nil
}

// SessionAuth authenticates /api/internal requests with the session cookie.
func SessionAuth(authn Authenticator, sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(session.CookieName)
		if err != nil || sid == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized access", "session_required")
			return
		}
		s, err := sessions.Get(c.Request.Context(), sid)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Unauthorized access", "session_required")
			return
		}
		id, err := authn.IdentityForUser(c.Request.Context(), s.UserID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Unauthorized access", "session_required")
			return
		}
		c.Set(sessionKey, s)
		setIdentity(c, id)
		c.Next()
	}
}

// RequireCSRF checks the session CSRF token on state-changing requests.
// It must run after SessionAuth.
func RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		s := Session(c)
		token := c.GetHeader(CSRFHeader)
		if token == "" {
			token = c.PostForm(CSRFField)
		}
		if token == "" {
			token = c.Query(CSRFField)
		}
		if s == nil || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.CSRFToken)) != 1 {
			abort(c, http.StatusForbidden, "Invalid CSRF token", "csrf_invalid")
			return
		}
		c.Next()
	}
}

// RequirePermission rejects callers lacking the permission item. Ueberusers
// pass every check.
func RequirePermission(item string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity(c)
		if id == nil || !id.Permissions.Has(item) {
			abort(c, http.StatusForbidden, "You do not have the permission to perform this action", "forbidden")
			return
		}
		c.Next()
	}
}
