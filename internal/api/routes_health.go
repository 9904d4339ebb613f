package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/app"
	"github.com/charlesng35/cmsauthz/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, cfg app.HealthConfig) {
	if !cfg.Enabled {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	ready := handlers.Health(db)
	r.GET("/health", ready)
	r.GET("/health/ready", ready)
	r.GET("/health/live", handlers.Health(nil))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
