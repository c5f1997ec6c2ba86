package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/apperrors"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/awsclient"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/bulk"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/controllers"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/database"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/logger"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/middleware"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/routes"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/services"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/validation"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	logger.Initialize(os.Getenv("APP_ENV"))
	defer logger.Log.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- 1. Initialization ---
	ctx := context.Background()

	mongoConn, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDBName)
	if err != nil {
		zap.L().Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	stores := repository.NewMongoStoreProvider(mongoConn.DB)
	if err := stores.EnsureIndexes(ctx); err != nil {
		zap.L().Warn("Failed to ensure bulk indexes", zap.Error(err))
	}

	metrics := awsclient.NewDisabledMetricsClient()
	if cfg.CloudWatchEnabled {
		if awsCfg, err := awsclient.LoadAWSConfig(ctx); err == nil {
			metrics = awsclient.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
		} else {
			zap.L().Warn("CloudWatch metrics disabled", zap.Error(err))
		}
	}

	// Redis is only needed for async jobs; the sync API works without it
	var rdb *redis.Client
	var jobService *services.JobService
	var jobRepo *repository.RedisJobRepository
	if client, err := database.NewRedisClient(ctx, cfg.RedisURL); err != nil {
		zap.L().Warn("Redis unavailable, async bulk jobs disabled", zap.Error(err))
	} else {
		rdb = client
		jobRepo = repository.NewRedisJobRepository(rdb, cfg.BulkJobTTL)
		jobService = services.NewJobService(jobRepo)
	}

	// --- 2. Dependency Injection ---
	bulkService, err := services.NewBulkService(stores, validation.NewRecordValidator(), metrics, bulk.Options{
		DefaultBatchSize: cfg.BulkDefaultBatchSize,
		DeleteBatchSize:  cfg.BulkDeleteBatchSize,
		MaxConcurrency:   cfg.BulkMaxConcurrency,
	})
	if err != nil {
		zap.L().Fatal("Failed to build bulk service", zap.Error(err))
	}

	var jobs controllers.JobServiceAPI
	if jobService != nil {
		jobs = jobService
	}
	bulkController := controllers.NewBulkController(bulkService, jobs, controllers.NewRequestValidator())

	bulkLimiter := middleware.NewBulkLimiter(cfg.BulkMaxInflight, cfg.BulkQueueWait)
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitPerMinute), cfg.RateLimitBurst, 5*time.Minute)
	defer rateLimiter.Stop()

	// --- 3. HTTP Server & Middleware ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MetricsMiddleware(metrics, "reporting-service"))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, bulkController, routes.PingFunc(func(ctx context.Context) error {
		return mongoConn.Client.Ping(ctx, readpref.Primary())
	}), routes.Options{
		RequestTimeout:     cfg.RequestTimeout,
		BulkRequestTimeout: cfg.BulkRequestTimeout,
		BulkLimiter:        bulkLimiter,
		RateLimiter:        rateLimiter,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	var workerWG sync.WaitGroup
	if jobRepo != nil {
		worker := services.NewJobWorker(jobRepo, bulkService, cfg.BulkRequestTimeout)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(workerCtx)
		}()
	}

	// --- 4. Graceful Shutdown ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zap.L().Info("Reporting service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down reporting service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopWorker()
	workerWG.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Server forced to shutdown", zap.Error(err))
	}
	if err := bulkLimiter.WaitForDrain(shutdownCtx); err != nil {
		zap.L().Warn("Bulk runs still active at shutdown", zap.Error(err))
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			zap.L().Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := mongoConn.Close(); err != nil {
		zap.L().Error("Failed to close MongoDB", zap.Error(err))
	}

	zap.L().Info("Reporting service stopped gracefully")
}
