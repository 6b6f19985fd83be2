package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/handlers"
	"github.com/visitdesk/visitdesk/internal/middleware"
	"github.com/visitdesk/visitdesk/internal/models"
)

func registerHostRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewHostHandler(deps.Directory)
	if err != nil {
		return err
	}

	manage := middleware.RequireRole(models.RoleAdmin, models.RoleReception)

	group := api.Group("/hosts")
	{
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.POST("", manage, handler.Create)
		group.PATCH("/:id/active", middleware.RequireRole(models.RoleAdmin), handler.SetActive)
	}
	return nil
}
