package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"energy-advisor/internal/advice"
	"energy-advisor/internal/homes"
	"energy-advisor/internal/services/health"
	"energy-advisor/internal/shared/config"
	"energy-advisor/internal/shared/metrics"
	"energy-advisor/internal/shared/server/middleware"
	"energy-advisor/internal/shared/server/respond"
)

const adviceRateGroup = "ADVICE"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config        config.Config
	HomeHandler   *homes.Handler
	AdviceHandler *advice.Handler
	Health        *health.Service
	Limiter       *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateGroup,
			Limiter:  deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				adviceRateGroup: {
					Rate:  deps.Config.AdviceRateLimit.Rate,
					Burst: deps.Config.AdviceRateLimit.Burst,
				},
			},
		}),
	)

	healthHandler := func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"status": "healthy", "app": deps.Config.AppName})
			return
		}
		respond.OK(c, deps.Health.Status(c.Request.Context()))
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	if deps.HomeHandler != nil {
		deps.HomeHandler.RegisterRoutes(api)
	}
	if deps.AdviceHandler != nil {
		deps.AdviceHandler.RegisterRoutes(api)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	if strings.HasPrefix(c.FullPath(), "/api/v1/homes/:id/advice") {
		return adviceRateGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
