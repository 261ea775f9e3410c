package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/helpers"
	"github.com/jroosing/pdnsadmin/internal/zone"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

// ListZones godoc
// @Summary List zones
// @Description Returns the zones visible to the caller, paginated
// @Tags zones
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param per_page query int false "Zones per page"
// @Param letter query string false "First letter filter (a-z, 1 for digits, all)"
// @Param sort_by query string false "Sort column (name, type, count_records, owner)"
// @Param sort_dir query string false "ASC or DESC"
// @Param exclude_reverse query bool false "Hide .arpa zones"
// @Success 200 {object} models.SuccessResponse{data=models.ZoneListResponse}
// @Security ApiKeyAuth
// @Router /zones [get]
func (h *Handler) ListZones(c *gin.Context) {
	offset, limit := helpers.Pagination(c.Query("page"), c.Query("per_page"), h.rowsPerPage())
	excludeReverse, _ := strconv.ParseBool(c.Query("exclude_reverse"))

	list, total, err := h.svc.Zones.List(c.Request.Context(), identity(c), zones.ListQuery{
		Letter:         c.Query("letter"),
		Offset:         offset,
		Limit:          limit,
		SortBy:         c.Query("sort_by"),
		SortDir:        c.Query("sort_dir"),
		ExcludeReverse: excludeReverse,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := models.ZoneListResponse{
		Zones:      make([]models.Zone, 0, len(list)),
		Pagination: models.NewPagination(total, offset, limit),
	}
	for _, z := range list {
		resp.Zones = append(resp.Zones, models.ZoneFromDB(z))
	}
	ok(c, http.StatusOK, resp, "")
}

// CreateZone godoc
// @Summary Create zone
// @Description Creates a master, native or slave zone, optionally from a zone template
// @Tags zones
// @Accept json
// @Produce json
// @Param request body models.ZoneCreateRequest true "Zone to create"
// @Success 201 {object} models.SuccessResponse{data=models.ZoneCreatedResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones [post]
func (h *Handler) CreateZone(c *gin.Context) {
	var req models.ZoneCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	id, err := h.svc.Zones.Create(c.Request.Context(), identity(c), zones.CreateRequest{
		Name:       req.Name,
		Type:       req.Type,
		Master:     req.Master,
		OwnerID:    req.OwnerID,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, models.ZoneCreatedResponse{ZoneID: id}, "Zone has been added successfully.")
}

// GetZone godoc
// @Summary Get zone
// @Description Returns one zone with owners, record count and DNSSEC state
// @Tags zones
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse{data=models.Zone}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id} [get]
func (h *Handler) GetZone(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	z, err := h.svc.Zones.Get(c.Request.Context(), identity(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, models.ZoneFromDB(*z), "")
}

// DeleteZone godoc
// @Summary Delete zone
// @Description Deletes a zone with its records, ownership and DNSSEC data
// @Tags zones
// @Produce json
// @Param id path int true "Zone ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{id} [delete]
func (h *Handler) DeleteZone(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	if err := h.svc.Zones.Delete(c.Request.Context(), identity(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Zone has been deleted successfully.")
}

// ExportZone godoc
// @Summary Export zone
// @Description Returns the zone in master-file format
// @Tags zones
// @Produce plain
// @Param id path int true "Zone ID"
// @Success 200 {string} string "zone file"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/zones/{id}/export [get]
func (h *Handler) ExportZone(c *gin.Context) {
	id, valid := zoneID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	caller := identity(c)

	name, err := h.svc.Zones.ZoneName(ctx, caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, _, err := h.svc.Zones.ListRecords(ctx, caller, id, zones.RecordListQuery{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	text, err := zone.FromRecords(name, records).Render()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`.zone"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// ListZoneTemplates godoc
// @Summary List zone templates
// @Description Returns the templates the caller may apply: their own plus global ones
// @Tags zones
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=[]models.ZoneTemplate}
// @Router /internal/zone-templates [get]
func (h *Handler) ListZoneTemplates(c *gin.Context) {
	caller := identity(c)
	owner := caller.UserID
	if caller.Permissions.IsUeberuser() {
		owner = 0
	}
	templates, err := h.db.ListZoneTemplates(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]models.ZoneTemplate, 0, len(templates))
	for _, t := range templates {
		out = append(out, models.ZoneTemplate{ID: t.ID, Name: t.Name, Description: t.Description, Global: t.Owner == 0})
	}
	ok(c, http.StatusOK, out, "")
}
