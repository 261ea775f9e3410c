package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

// BulkRegister godoc
// @Summary Bulk zone registration
// @Description Creates one zone per input line. Every line gets its own outcome; a failing line never aborts the batch.
// @Tags zones
// @Accept json
// @Produce json
// @Param request body models.BulkRequest true "Zone names and shared settings"
// @Success 200 {object} models.SuccessResponse{data=models.BulkResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/bulk [post]
func (h *Handler) BulkRegister(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	names := req.Domains
	if len(req.DomainList) > 0 {
		names = strings.Join(req.DomainList, "\n")
	}
	if strings.TrimSpace(names) == "" {
		badRequest(c, "No zone names given")
		return
	}

	res, err := h.svc.Bulk.Register(c.Request.Context(), identity(c), bulk.Request{
		Names:      names,
		Type:       req.Type,
		Master:     req.Master,
		OwnerID:    req.OwnerID,
		TemplateID: req.TemplateID,
	})
	if err != nil && (res == nil || !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)) {
		h.respondError(c, err)
		return
	}
	message := fmt.Sprintf("%d created, %d skipped, %d rejected, %d failed.",
		res.Created, res.Skipped, res.Rejected, res.Failed)
	if err != nil {
		message += " Registration was interrupted."
	}
	ok(c, http.StatusOK, res, message)
}

// PTRBatch godoc
// @Summary Batch PTR creation
// @Description Creates PTR records for hosts .0 to .255 of an IPv4 /24 in the best matching reverse zone
// @Tags records
// @Accept json
// @Produce json
// @Param request body models.PTRBatchRequest true "Network and naming"
// @Success 200 {object} models.SuccessResponse{data=zones.PTRBatchResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/zones/ptr-batch [post]
func (h *Handler) PTRBatch(c *gin.Context) {
	var req models.PTRBatchRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.Zones.CreatePTRBatch(c.Request.Context(), identity(c), zones.PTRBatchRequest{
		NetworkPrefix: req.NetworkPrefix,
		HostPrefix:    req.HostPrefix,
		Domain:        req.Domain,
		TTL:           req.TTL,
		Comment:       req.Comment,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, res, res.Message())
}
