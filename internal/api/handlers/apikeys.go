package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/database"
)

func apiKeyID(c *gin.Context) (int64, bool) {
	v, err := strconv.ParseInt(c.Param("key_id"), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "Invalid API key ID")
		return 0, false
	}
	return v, true
}

func apiKeyResponse(k *database.APIKey, withSecret bool) models.APIKey {
	return models.APIKeyFromDB(*k, time.Now(), withSecret)
}

// ListAPIKeys godoc
// @Summary List API keys
// @Description Returns the caller's API keys; ueberusers see every key
// @Tags api-keys
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=[]models.APIKey}
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/api-keys [get]
func (h *Handler) ListAPIKeys(c *gin.Context) {
	keys, err := h.svc.APIKeys.List(c.Request.Context(), identity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	now := time.Now()
	out := make([]models.APIKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.APIKeyFromDB(k, now, false))
	}
	ok(c, http.StatusOK, out, "")
}

// CreateAPIKey godoc
// @Summary Create API key
// @Description Creates a key; the secret is only returned in this response
// @Tags api-keys
// @Accept json
// @Produce json
// @Param request body models.APIKeyRequest true "Key"
// @Success 201 {object} models.SuccessResponse{data=models.APIKey}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/api-keys [post]
func (h *Handler) CreateAPIKey(c *gin.Context) {
	var req models.APIKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	key, err := h.svc.APIKeys.Create(c.Request.Context(), identity(c), req.Name, req.ExpiresAt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, apiKeyResponse(key, true), "API key has been created successfully.")
}

// UpdateAPIKey godoc
// @Summary Update API key
// @Tags api-keys
// @Accept json
// @Produce json
// @Param key_id path int true "API key ID"
// @Param request body models.APIKeyRequest true "Key"
// @Success 200 {object} models.SuccessResponse{data=models.APIKey}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/api-keys/{key_id} [put]
func (h *Handler) UpdateAPIKey(c *gin.Context) {
	id, valid := apiKeyID(c)
	if !valid {
		return
	}
	var req models.APIKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	key, err := h.svc.APIKeys.Update(c.Request.Context(), identity(c), id, req.Name, req.ExpiresAt, req.Disabled)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, apiKeyResponse(key, false), "API key has been updated successfully.")
}

// DeleteAPIKey godoc
// @Summary Delete API key
// @Tags api-keys
// @Produce json
// @Param key_id path int true "API key ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/api-keys/{key_id} [delete]
func (h *Handler) DeleteAPIKey(c *gin.Context) {
	id, valid := apiKeyID(c)
	if !valid {
		return
	}
	if err := h.svc.APIKeys.Delete(c.Request.Context(), identity(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "API key has been deleted successfully.")
}

// RegenerateAPIKey godoc
// @Summary Regenerate API key secret
// @Tags api-keys
// @Produce json
// @Param key_id path int true "API key ID"
// @Success 200 {object} models.SuccessResponse{data=models.APIKey}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/api-keys/{key_id}/regenerate [post]
func (h *Handler) RegenerateAPIKey(c *gin.Context) {
	id, valid := apiKeyID(c)
	if !valid {
		return
	}
	key, err := h.svc.APIKeys.Regenerate(c.Request.Context(), identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, apiKeyResponse(key, true), "API key has been regenerated successfully.")
}

// ToggleAPIKey godoc
// @Summary Enable or disable API key
// @Tags api-keys
// @Produce json
// @Param key_id path int true "API key ID"
// @Success 200 {object} models.SuccessResponse{data=models.APIKey}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/api-keys/{key_id}/toggle [post]
func (h *Handler) ToggleAPIKey(c *gin.Context) {
	id, valid := apiKeyID(c)
	if !valid {
		return
	}
	key, err := h.svc.APIKeys.Toggle(c.Request.Context(), identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, apiKeyResponse(key, false), "API key status has been changed.")
}

// GetAPIKey godoc
// @Summary Get API key
// @Tags api-keys
// @Produce json
// @Param key_id path int true "API key ID"
// @Success 200 {object} models.SuccessResponse{data=models.APIKey}
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/api-keys/{key_id} [get]
func (h *Handler) GetAPIKey(c *gin.Context) {
	id, valid := apiKeyID(c)
	if !valid {
		return
	}
	key, err := h.svc.APIKeys.Get(c.Request.Context(), identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, apiKeyResponse(key, false), "")
}
