package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"milestonez/internal/handler"
	"milestonez/pkg/otel"
)

type Router struct {
	Engine *gin.Engine
}

// Readiness is checked by /readyz; nil entries are skipped.
type Readiness struct {
	Store     func(ctx context.Context) error
	Publisher func() bool
}

func NewRouter(h *handler.MilestoneHandler, ready Readiness, jwtSecret string, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health_check/", h.HealthCheck)

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if ready.Store != nil {
			if err := ready.Store(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_not_ready", "error": err.Error()})
				return
			}
		}
		if ready.Publisher != nil && !ready.Publisher() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	if jwtSecret != "" {
		api.Use(AuthMiddleware(jwtSecret))
	}
	{
		api.POST("/generate_milestones/", h.GenerateMilestones)
		api.POST("/update_milestone/", h.UpdateMilestone)
		api.GET("/get_all_histories/", h.GetAllHistories)
		api.GET("/histories/:user_id/:project_id", h.GetHistory)
	}

	return &Router{Engine: r}
}

// Server wraps the engine in an http.Server for graceful shutdown.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
