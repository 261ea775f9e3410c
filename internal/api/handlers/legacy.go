package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
)

type legacyRoute struct {
	get  gin.HandlerFunc
	post gin.HandlerFunc
}

// legacyRoutes maps old page names onto the REST handlers.
func (h *Handler) legacyRoutes() map[string]legacyRoute {
	return map[string]legacyRoute{
		"list_zones":        {get: h.ListZones},
		"add_zone_master":   {post: h.CreateZone},
		"add_record":        {post: h.CreateRecord},
		"edit_record":       {get: h.GetRecord, post: h.UpdateRecord},
		"delete_record":     {get: h.GetRecord, post: h.DeleteRecord},
		"bulk_registration": {post: h.BulkRegister},
		"dnssec":            {get: h.DNSSECStatus},
		"dnssec_add_key":    {post: h.AddKey},
		"dnssec_edit_key":   {post: h.editKey},
		"dnssec_delete_key": {get: h.DeleteKeyConfirmation, post: h.DeleteKey},
		"dnssec_ds_dnskey":  {get: h.DSAndDNSKEY},
	}
}

// editKey activates or deactivates a key depending on the body's action.
func (h *Handler) editKey(c *gin.Context) {
	var req models.EditKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid action, expected activate or deactivate")
		return
	}
	h.setKeyActive(c, req.Action == "activate")
}

// Legacy godoc
// @Summary Legacy page dispatcher
// @Description Serves old index.php page names with id, rid and key_id query parameters
// @Tags legacy
// @Produce json
// @Param page query string true "Page name"
// @Param id query int false "Zone ID"
// @Param rid query int false "Record ID"
// @Param key_id query int false "Key ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /internal/index.php [get]
func (h *Handler) Legacy(c *gin.Context) {
	route, found := h.legacyRoutes()[c.Query("page")]
	if !found {
		fail(c, http.StatusNotFound, "Unknown page", "not_found")
		return
	}
	handler := route.get
	if c.Request.Method == http.MethodPost {
		handler = route.post
	}
	if handler == nil {
		fail(c, http.StatusMethodNotAllowed, "Method not allowed for this page", "method_not_allowed")
		return
	}
	for _, name := range []string{"id", "rid", "key_id"} {
		if v, ok := c.GetQuery(name); ok {
			c.Params = append(c.Params, gin.Param{Key: name, Value: v})
		}
	}
	handler(c)
}
