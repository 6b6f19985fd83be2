package api

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/handlers"
)

func registerVisitRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := newVisitHandler(deps)
	if err != nil {
		return err
	}

	group := api.Group("/visits")
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)

		group.POST("/:id/approve", handler.Approve)
		group.POST("/:id/reject", handler.Reject)
		group.POST("/:id/re-approve", handler.ReApprove)

		group.POST("/check-in", handler.CheckIn)
		group.POST("/:id/check-out", handler.CheckOut)
	}
	return nil
}

func newVisitHandler(deps Dependencies) (*handlers.VisitHandler, error) {
	// A nil *Hub must stay a nil interface inside the handler.
	if deps.Hub == nil {
		return handlers.NewVisitHandler(deps.Engine, deps.Store, nil)
	}
	return handlers.NewVisitHandler(deps.Engine, deps.Store, deps.Hub)
}
