package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/handlers"
	"github.com/visitdesk/visitdesk/internal/middleware"
	"github.com/visitdesk/visitdesk/internal/models"
)

func registerRealtimeRoutes(api *gin.RouterGroup, deps Dependencies) error {
	if deps.Hub == nil {
		return nil
	}

	handler, err := handlers.NewRealtimeHandler(deps.Hub)
	if err != nil {
		return err
	}

	api.GET("/realtime", middleware.RequireRole(models.RoleAdmin, models.RoleReception), handler.Feed)
	return nil
}
