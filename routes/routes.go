package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/controllers"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options carries the route-level middleware settings
type Options struct {
	RequestTimeout     time.Duration
	BulkRequestTimeout time.Duration
	BulkLimiter        *middleware.BulkLimiter
	RateLimiter        *middleware.RateLimiter
}

// RegisterRoutes mounts the health check and the bulk API
func RegisterRoutes(r *gin.Engine, bulkController *controllers.BulkController, db Pinger, opts Options) {
	r.GET("/health", middleware.Timeout(opts.RequestTimeout), healthHandler(db))

	api := r.Group("/api/v1")

	jobs := api.Group("/bulk-jobs", middleware.Timeout(opts.RequestTimeout))
	{
		jobs.GET("/:id", bulkController.GetJob)
	}

	bulk := api.Group("/:entity", middleware.Timeout(opts.BulkRequestTimeout))
	if opts.RateLimiter != nil {
		bulk.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}
	if opts.BulkLimiter != nil {
		bulk.Use(opts.BulkLimiter.Middleware())
	}
	{
		bulk.POST("/bulk-import", bulkController.ImportRecords)
		bulk.POST("/bulk-import/validate", bulkController.ValidateImport)
		bulk.POST("/bulk-delete", bulkController.DeleteRecords)
		bulk.DELETE("/bulk-delete", bulkController.DeleteRecords)
	}
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}
