package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/api/handler"
	"github.com/use-agent/shelfscan/api/middleware"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/runner"
)

// Deps are the services the router dispatches to. Pool and Cache may be nil.
type Deps struct {
	Runner    *runner.Runner
	Pool      handler.PoolReporter
	Cache     *cache.Cache
	StartTime time.Time
	Version   string
}

// NewRouter creates the Gin engine.
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so probes always work. Background work started
// by middleware ends when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Pool, deps.StartTime, deps.Version))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	defaultStrategy, err := models.ParseStrategy(cfg.Engine.DefaultStrategy)
	if err != nil {
		defaultStrategy = models.StrategyAuto
	}

	listings := protected.Group("/listings")
	listings.POST("/scrape", handler.ScrapeListings(deps.Runner, deps.Cache, defaultStrategy))
	listings.POST("/extract", handler.ExtractListings(deps.Runner))

	return r
}
