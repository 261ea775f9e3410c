package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/helpers"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

func recordInput(req models.RecordRequest) zones.RecordInput {
	return zones.RecordInput{
		Name:     req.Name,
		Type:     req.Type,
		Content:  req.Content,
		TTL:      req.TTL,
		Prio:     req.Prio,
		Disabled: req.Disabled,
		Comment:  req.Comment,
	}
}

// ListRecords godoc
// @Summary List records
// @Description Returns the records of a zone, SOA and apex NS first by default
// @Tags records
// @Produce json
// @Param id path int true "Zone ID"
// @Param page query int false "Page number (1-based)"
// @Param per_page query int false "Records per page"
// @Param sort_by query string false "Sort column (name, type, content, ttl, prio, disabled)"
// @Param sort_dir query string false "ASC or DESC"
// @Param type query string false "Only records of this type"
// @Param content query string false "Only records whose content contains this text"
// @Success 200 {object} models.SuccessResponse{data=models.RecordListResponse}
// @Security ApiKeyAuth
// @Router /zones/{id}/records [get]
func (h *Handler) ListRecords(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	offset, limit := helpers.Pagination(c.Query("page"), c.Query("per_page"), h.rowsPerPage())

	records, total, err := h.svc.Zones.ListRecords(c.Request.Context(), identity(c), id, zones.RecordListQuery{
		Offset:        offset,
		Limit:         limit,
		SortBy:        c.Query("sort_by"),
		SortDir:       c.Query("sort_dir"),
		TypeFilter:    c.Query("type"),
		ContentFilter: c.Query("content"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := models.RecordListResponse{
		Records:    make([]models.Record, 0, len(records)),
		Pagination: models.NewPagination(total, offset, limit),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, models.RecordFromDB(r))
	}
	ok(c, http.StatusOK, resp, "")
}

// CreateRecord godoc
// @Summary Create record
// @Description Adds a record to a zone. Names are qualified with the zone name.
// @Tags records
// @Accept json
// @Produce json
// @Param id path int true "Zone ID"
// @Param request body models.RecordRequest true "Record"
// @Success 201 {object} models.SuccessResponse{data=models.Record}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id}/records [post]
func (h *Handler) CreateRecord(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	var req models.RecordRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	rec, err := h.svc.Zones.AddRecord(c.Request.Context(), identity(c), id, recordInput(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, models.RecordFromDB(*rec), "The record was successfully added.")
}

// GetRecord godoc
// @Summary Get record
// @Tags records
// @Produce json
// @Param id path int true "Zone ID"
// @Param rid path int true "Record ID"
// @Success 200 {object} models.SuccessResponse{data=models.Record}
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id}/records/{rid} [get]
func (h *Handler) GetRecord(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	rid, valid := recordID(c)
	if !valid {
		return
	}
	rec, err := h.svc.Zones.GetRecord(c.Request.Context(), identity(c), id, rid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, models.RecordFromDB(*rec), "")
}

// UpdateRecord godoc
// @Summary Update record
// @Tags records
// @Accept json
// @Produce json
// @Param id path int true "Zone ID"
// @Param rid path int true "Record ID"
// @Param request body models.RecordRequest true "Record"
// @Success 200 {object} models.SuccessResponse{data=models.Record}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id}/records/{rid} [put]
func (h *Handler) UpdateRecord(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	rid, valid := recordID(c)
	if !valid {
		return
	}
	var req models.RecordRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	rec, err := h.svc.Zones.EditRecord(c.Request.Context(), identity(c), id, rid, recordInput(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, models.RecordFromDB(*rec), "The record has been updated successfully.")
}

// DeleteRecord godoc
// @Summary Delete record
// @Description Deletes a record. The SOA record cannot be deleted.
// @Tags records
// @Produce json
// @Param id path int true "Zone ID"
// @Param rid path int true "Record ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id}/records/{rid} [delete]
func (h *Handler) DeleteRecord(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	rid, valid := recordID(c)
	if !valid {
		return
	}
	if err := h.svc.Zones.DeleteRecord(c.Request.Context(), identity(c), id, rid); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "The record has been deleted successfully.")
}
