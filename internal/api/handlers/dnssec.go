package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/dnssec"
)

// dnssecService returns the DNSSEC service, answering 403 when DNSSEC is
// not configured.
func (h *Handler) dnssecService(c *gin.Context) (*dnssec.Service, bool) {
	if h.svc.DNSSEC == nil {
		h.respondError(c, dnssec.ErrDisabled)
		return nil, false
	}
	return h.svc.DNSSEC, true
}

// DNSSECStatus godoc
// @Summary DNSSEC status
// @Description Returns whether the zone is signed or presigned, and its cryptokeys
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse{data=models.DNSSECStatusResponse}
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec [get]
func (h *Handler) DNSSECStatus(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	secured, err := svc.IsZoneSecured(ctx, identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	presigned, err := svc.IsZonePresigned(ctx, identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	keys, err := svc.ListKeys(ctx, identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, models.DNSSECStatusResponse{ZoneID: id, Secured: secured, Presigned: presigned, Keys: keys}, "")
}

// SecureZone godoc
// @Summary Sign zone
// @Description Enables DNSSEC for the zone and rectifies it
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/secure [post]
func (h *Handler) SecureZone(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	if err := svc.SecureZone(c.Request.Context(), identity(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Zone has been signed successfully.")
}

// UnsecureZone godoc
// @Summary Unsign zone
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/unsecure [post]
func (h *Handler) UnsecureZone(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	if err := svc.UnsecureZone(c.Request.Context(), identity(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Zone has been unsigned successfully.")
}

// AddKey godoc
// @Summary Add DNSSEC key
// @Description Adds an inactive KSK, ZSK or CSK
// @Tags dnssec
// @Accept json
// @Produce json
// @Param id path int true "Zone ID"
// @Param request body models.AddKeyRequest true "Key parameters"
// @Success 201 {object} models.SuccessResponse{data=dnssec.Key}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/keys [post]
func (h *Handler) AddKey(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	var req models.AddKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	key, err := svc.AddKey(c.Request.Context(), identity(c), id, req.KeyType, req.Algorithm, req.Bits)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, key, "Zone key has been added successfully.")
}

// ActivateKey godoc
// @Summary Activate DNSSEC key
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Param key_id path int true "Key ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/keys/{key_id}/activate [post]
func (h *Handler) ActivateKey(c *gin.Context) {
	h.setKeyActive(c, true)
}

// DeactivateKey godoc
// @Summary Deactivate DNSSEC key
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Param key_id path int true "Key ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/keys/{key_id}/deactivate [post]
func (h *Handler) DeactivateKey(c *gin.Context) {
	h.setKeyActive(c, false)
}

func (h *Handler) setKeyActive(c *gin.Context, active bool) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	kid, valid := keyID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	var err error
	if active {
		err = svc.ActivateKey(ctx, identity(c), id, kid)
	} else {
		err = svc.DeactivateKey(ctx, identity(c), id, kid)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if active {
		ok(c, http.StatusOK, nil, "Zone key has been activated successfully.")
		return
	}
	ok(c, http.StatusOK, nil, "Zone key has been deactivated successfully.")
}

// DeleteKeyConfirmation godoc
// @Summary Prepare DNSSEC key deletion
// @Description Returns the key and a single-use confirmation token. Nothing is deleted.
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Param key_id path int true "Key ID"
// @Success 200 {object} models.SuccessResponse{data=dnssec.DeleteRequest}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/keys/{key_id}/delete [get]
func (h *Handler) DeleteKeyConfirmation(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	kid, valid := keyID(c)
	if !valid {
		return
	}
	req, err := svc.RequestDelete(c.Request.Context(), identity(c), id, kid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, req, "")
}

// DeleteKey godoc
// @Summary Delete DNSSEC key
// @Description Deletes a key with the token from the confirmation step, or cancels the deletion
// @Tags dnssec
// @Accept json
// @Produce json
// @Param id path int true "Zone ID"
// @Param key_id path int true "Key ID"
// @Param request body models.ConfirmDeleteRequest true "Confirmation"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/keys/{key_id}/delete [post]
func (h *Handler) DeleteKey(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	kid, valid := keyID(c)
	if !valid {
		return
	}
	var req models.ConfirmDeleteRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	if req.Cancel {
		if err := svc.CancelDelete(ctx, identity(c), id, kid, req.ConfirmToken); err != nil {
			h.respondError(c, err)
			return
		}
		ok(c, http.StatusOK, nil, "Key deletion has been cancelled.")
		return
	}
	if err := svc.ConfirmDelete(ctx, identity(c), id, kid, req.ConfirmToken); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Zone key has been deleted successfully.")
}

// DSAndDNSKEY godoc
// @Summary DS and DNSKEY records
// @Description Returns DNSKEY and DS records for the zone's KSK and CSK keys
// @Tags dnssec
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse{data=models.DSAndDNSKEYResponse}
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/zones/{id}/dnssec/ds-dnskey [get]
func (h *Handler) DSAndDNSKEY(c *gin.Context) {
	svc, enabled := h.dnssecService(c)
	if !enabled {
		return
	}
	id, valid := zoneID(c)
	if !valid {
		return
	}
	keys, err := svc.DSAndDNSKEY(c.Request.Context(), identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, models.DSAndDNSKEYResponse{ZoneID: id, Keys: keys}, "")
}
