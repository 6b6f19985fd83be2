package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/middleware"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// mustActor returns the resolved actor or writes a 401 and reports false.
func mustActor(c *gin.Context) (visits.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return visits.Actor{}, false
	}
	return actor, ok
}
