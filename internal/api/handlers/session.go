package handlers

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/middleware"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/session"
)

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	secure := h.cfg != nil && h.cfg.Session.CookieSecure
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, value, maxAge, "/", "", secure, true)
}

func (h *Handler) sessionResponse(id *auth.Identity, s *session.Session) models.SessionResponse {
	perms := id.Permissions.List()
	slices.Sort(perms)
	return models.SessionResponse{
		UserID:      id.UserID,
		Username:    id.Username,
		CSRFToken:   s.CSRFToken,
		Permissions: perms,
		ExpiresIn:   int(h.svc.Sessions.TTL().Seconds()),
	}
}

// Login godoc
// @Summary Log in
// @Description Checks username and password and starts a session. The response carries the CSRF token for later state-changing requests.
// @Tags session
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.SuccessResponse{data=models.SessionResponse}
// @Failure 401 {object} models.ErrorResponse
// @Router /internal/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}
	ctx := c.Request.Context()

	id, err := h.svc.Auth.Login(ctx, req.Username, req.Password)
	metrics.AuthAttempts.WithLabelValues(string(auth.MethodSession), metrics.Result(err)).Inc()
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Warn("login failed", "username", req.Username, "client_ip", c.ClientIP())
		fail(c, http.StatusUnauthorized, "Authentication failed! Invalid username or password.", "invalid_credentials")
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	s, err := h.svc.Sessions.Create(ctx, id.UserID, id.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, s.ID, int(h.svc.Sessions.TTL().Seconds()))
	h.logger.Info("user logged in", "user_id", id.UserID, "username", id.Username)
	ok(c, http.StatusOK, h.sessionResponse(id, s), "")
}

// Logout godoc
// @Summary Log out
// @Tags session
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /internal/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if s := middleware.Session(c); s != nil {
		if err := h.svc.Sessions.Delete(c.Request.Context(), s.ID); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		}
	}
	h.setSessionCookie(c, "", -1)
	ok(c, http.StatusOK, nil, "You have been logged out.")
}

// SessionInfo godoc
// @Summary Current session
// @Tags session
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.SessionResponse}
// @Failure 401 {object} models.ErrorResponse
// @Router /internal/session [get]
func (h *Handler) SessionInfo(c *gin.Context) {
	s := middleware.Session(c)
	if s == nil {
		fail(c, http.StatusUnauthorized, "Unauthorized access", "session_required")
		return
	}
	ok(c, http.StatusOK, h.sessionResponse(identity(c), s), "")
}
