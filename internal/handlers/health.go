package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/database"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/logger"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

var errDatabaseUnavailable = apperrors.New("DATABASE_UNAVAILABLE", "Database unavailable", http.StatusServiceUnavailable)

// Health returns a simple status payload useful for readiness checks.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := database.Ping(db); err != nil {
				logger.WithModule("health").Warn("database ping failed", zap.Error(err))
				response.Error(c, errDatabaseUnavailable)
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
