package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/models"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health godoc
// @Summary Health check
// @Description Returns server health status including database connectivity
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Failure 503 {object} models.StatusResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Health(c.Request.Context()); err != nil {
			h.logger.Warn("database health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, models.StatusResponse{Status: "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime, host and inventory statistics. Requires the ueberuser permission.
// @Tags system
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.ServerStatsResponse}
// @Failure 403 {object} models.ErrorResponse
// @Router /internal/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Host = &models.HostStats{
			MemoryTotalMB: float64(vm.Total) / 1024 / 1024,
			MemoryUsedPct: vm.UsedPercent,
		}
		if up, err := host.UptimeWithContext(ctx); err == nil {
			resp.Host.UptimeSeconds = up
		}
	} else {
		h.logger.Debug("host memory stats unavailable", "error", err)
	}

	if h.db != nil {
		zones, err := h.db.CountZones(ctx, database.ZoneQuery{Scope: database.ScopeAll})
		if err != nil {
			h.respondError(c, err)
			return
		}
		users, err := h.db.CountUsers(ctx)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp.Inventory = models.InventoryResponse{Zones: zones, Users: users}
	}

	ok(c, http.StatusOK, resp, "")
}
