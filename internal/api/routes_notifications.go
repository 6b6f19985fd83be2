package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/handlers"
	"github.com/visitdesk/visitdesk/internal/middleware"
	"github.com/visitdesk/visitdesk/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, deps Dependencies) error {
	if deps.Dispatcher == nil {
		return nil
	}

	handler, err := handlers.NewNotificationHandler(deps.Dispatcher)
	if err != nil {
		return err
	}

	operate := middleware.RequireRole(models.RoleAdmin, models.RoleReception)

	group := api.Group("/notifications")
	group.Use(operate)
	{
		group.GET("/jobs", handler.ListJobs)
		group.POST("/test", handler.Test)
	}
	return nil
}
