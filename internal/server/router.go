package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AllowedOrigins     []string
	HealthHandler      *HealthHandler
	ComplianceHandler  *ComplianceHandler
	LaborHourHandler   *LaborHourHandler
	EligibilityHandler *EligibilityHandler
	OfflineHandler     *OfflineHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	api := router.Group("/api")
	{
		compliance := api.Group("/compliance")
		compliance.GET("/dashboard", cfg.ComplianceHandler.Dashboard)
		compliance.GET("/metrics", cfg.ComplianceHandler.Metrics)
		compliance.GET("/monthly", cfg.ComplianceHandler.Monthly)
		compliance.GET("/projects", cfg.ComplianceHandler.Projects)
		compliance.GET("/classify", cfg.ComplianceHandler.Classify)

		api.GET("/labor-hours", cfg.LaborHourHandler.List)
		api.POST("/labor-hours", cfg.LaborHourHandler.Create)
		api.PATCH("/labor-hours/:id/verify", cfg.LaborHourHandler.Verify)

		api.GET("/eligibility", cfg.EligibilityHandler.List)
		api.POST("/project-locations", cfg.EligibilityHandler.CreateLocation)
		api.PATCH("/worker-addresses/:id/verification", cfg.EligibilityHandler.UpdateAddress)

		api.GET("/offline-entries", cfg.OfflineHandler.List)
		api.POST("/offline-entries", cfg.OfflineHandler.Queue)
		api.POST("/offline-entries/sync", cfg.OfflineHandler.Sync)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return cors.New(config)
}
