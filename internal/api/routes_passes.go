package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/handlers"
)

func registerPassRoutes(r *gin.Engine, deps Dependencies) error {
	handler, err := handlers.NewPassHandler(deps.Engine, deps.Issuer)
	if err != nil {
		return err
	}

	group := r.Group("/passes")
	{
		group.GET("/:token", handler.Summary)
		group.GET("/:token/qr", handler.QR)
	}
	return nil
}
