package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/directory"
	"github.com/visitdesk/visitdesk/internal/handlers"
	"github.com/visitdesk/visitdesk/internal/middleware"
	"github.com/visitdesk/visitdesk/internal/notify"
	"github.com/visitdesk/visitdesk/internal/pass"
	"github.com/visitdesk/visitdesk/internal/realtime"
	"github.com/visitdesk/visitdesk/internal/visits"
)

// Dependencies carries the wired services the router mounts.
type Dependencies struct {
	DB         *gorm.DB
	Engine     *visits.Engine
	Store      *visits.Store
	Issuer     *pass.Issuer
	Dispatcher *notify.Dispatcher
	Directory  *directory.Service
	Hub        *realtime.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("database handle must be provided")
	case deps.Engine == nil:
		return nil, fmt.Errorf("visit engine must be provided")
	case deps.Store == nil:
		return nil, fmt.Errorf("visit store must be provided")
	case deps.Issuer == nil:
		return nil, fmt.Errorf("pass issuer must be provided")
	case deps.Directory == nil:
		return nil, fmt.Errorf("directory service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, deps)

	// Pass endpoints are token-addressed and stay public; everything else
	// resolves the acting user first.
	if err := registerPassRoutes(r, deps); err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.ResolveActor(deps.Directory))

	if err := registerVisitRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerHostRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerNotificationRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerRealtimeRoutes(api, deps); err != nil {
		return nil, err
	}

	return r, nil
}

func registerHealthRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
