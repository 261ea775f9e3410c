package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jroosing/pdnsadmin/internal/api/handlers"
	"github.com/jroosing/pdnsadmin/internal/api/middleware"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jroosing/pdnsadmin/internal/api/docs" // swagger docs
)

// zoneRoutes registers the zone and record routes shared by the public and
// internal APIs.
func zoneRoutes(g *gin.RouterGroup, h *handlers.Handler) {
	g.GET("/zones", h.ListZones)
	g.POST("/zones", h.CreateZone)
	g.POST("/zones/bulk", h.BulkRegister)
	g.GET("/zones/:id", h.GetZone)
	g.DELETE("/zones/:id", h.DeleteZone)

	g.GET("/zones/:id/records", h.ListRecords)
	g.POST("/zones/:id/records", h.CreateRecord)
	g.GET("/zones/:id/records/:rid", h.GetRecord)
	g.PUT("/zones/:id/records/:rid", h.UpdateRecord)
	g.DELETE("/zones/:id/records/:rid", h.DeleteRecord)
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config, authn middleware.Authenticator, sessions middleware.Sessions) {
	// Swagger UI at /swagger/*
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/api/v1/health", h.Health)

	public := r.Group("/api/v1")
	public.Use(middleware.RequireAPIEnabled(cfg.API), middleware.PublicAuth(authn, cfg.API))
	zoneRoutes(public, h)

	r.POST("/api/internal/login", h.Login)

	internal := r.Group("/api/internal")
	internal.Use(middleware.SessionAuth(authn, sessions), middleware.RequireCSRF())

	internal.POST("/logout", h.Logout)
	internal.GET("/session", h.SessionInfo)
	internal.GET("/stats", middleware.RequirePermission(auth.PermUeberuser), h.Stats)
	internal.GET("/zone-templates", h.ListZoneTemplates)

	zoneRoutes(internal, h)
	internal.POST("/zones/ptr-batch", h.PTRBatch)
	internal.GET("/zones/:id/export", h.ExportZone)

	sec := internal.Group("/zones/:id/dnssec")
	sec.GET("", h.DNSSECStatus)
	sec.POST("/secure", h.SecureZone)
	sec.POST("/unsecure", h.UnsecureZone)
	sec.GET("/ds-dnskey", h.DSAndDNSKEY)
	sec.POST("/keys", h.AddKey)
	sec.POST("/keys/:key_id/activate", h.ActivateKey)
	sec.POST("/keys/:key_id/deactivate", h.DeactivateKey)
	sec.GET("/keys/:key_id/delete", h.DeleteKeyConfirmation)
	sec.POST("/keys/:key_id/delete", h.DeleteKey)

	keys := internal.Group("/api-keys", middleware.RequirePermission(auth.PermManageAPIKeys))
	keys.GET("", h.ListAPIKeys)
	keys.POST("", h.CreateAPIKey)
	keys.GET("/:key_id", h.GetAPIKey)
	keys.PUT("/:key_id", h.UpdateAPIKey)
	keys.DELETE("/:key_id", h.DeleteAPIKey)
	keys.POST("/:key_id/regenerate", h.RegenerateAPIKey)
	keys.POST("/:key_id/toggle", h.ToggleAPIKey)

	internal.GET("/index.php", h.Legacy)
	internal.POST("/index.php", h.Legacy)
}
