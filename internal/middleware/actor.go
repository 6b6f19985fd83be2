package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/visitdesk/visitdesk/internal/directory"
	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/internal/visits"
	apperrors "github.com/visitdesk/visitdesk/pkg/errors"
	"github.com/visitdesk/visitdesk/pkg/response"
)

// ActorHeader identifies the directory user invoking the request.
// Authentication of that identity happens at the gateway in front of this
// service; here it is only resolved to a role.
const ActorHeader = "X-Actor-Id"

const actorContextKey = "visitdesk.actor"

// ResolveActor resolves the acting user from the request header and aborts
// with 401 when the identity is unknown or deactivated.
func ResolveActor(dir *directory.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := dir.ResolveActor(c.Request.Context(), c.GetHeader(ActorHeader))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the resolved actor holds one of the
// given roles. Transition-level authority stays with the engine's guards;
// this only fences administrative surfaces.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		response.Error(c, apperrors.ErrForbidden)
		c.Abort()
	}
}

// ActorFrom returns the actor stored by ResolveActor.
func ActorFrom(c *gin.Context) (visits.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return visits.Actor{}, false
	}
	actor, ok := value.(visits.Actor)
	return actor, ok
}
