package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/ai"
	"github.com/vedant7151/Invoice-Generator/internal/api"
	"github.com/vedant7151/Invoice-Generator/internal/auth"
	"github.com/vedant7151/Invoice-Generator/internal/billing"
	"github.com/vedant7151/Invoice-Generator/internal/cache"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/db"
	"github.com/vedant7151/Invoice-Generator/internal/email"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/pdf"
	"github.com/vedant7151/Invoice-Generator/internal/ratelimit"
	"github.com/vedant7151/Invoice-Generator/internal/services"
	"github.com/vedant7151/Invoice-Generator/internal/storage"
	"github.com/vedant7151/Invoice-Generator/internal/tasks"
)

var (
	runMode   = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")
	tokenUser = flag.String("token", "", "Print a bearer token for the given user id and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *tokenUser != "" {
		token, err := auth.GenerateJWT(*tokenUser, cfg.JwtSecret, cfg.JwtTTL)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogOutput})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	switch cfg.RunMode {
	case "api", "bg", "all":
	default:
		zl.Fatal("Invalid run mode", zap.String("mode", cfg.RunMode))
	}
	runAPI := cfg.RunMode == "api" || cfg.RunMode == "all"
	runBG := cfg.RunMode == "bg" || cfg.RunMode == "all"

	// Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient, zl); err != nil {
			zl.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		zl.Fatal("Failed to ensure indexes", zap.Error(err))
	}
	cancelIndexes()

	// Redis backs the task queue, the shared email limiter and the mock mailbox.
	// The API alone can run without it.
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zl)
	if err != nil {
		if runBG || cfg.EmailRateLimitStore == "redis" || cfg.EmailProvider == "redis" {
			zl.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		zl.Warn("Redis unavailable, invoice emails will be sent inline", zap.Error(err))
		redisClient = nil
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, zl); err != nil {
			zl.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	// Asset storage
	var assets storage.IAssetStorage
	if cfg.AwsS3Bucket != "" {
		assets, err = storage.NewS3Storage(cfg, zl)
		if err != nil {
			zl.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
	} else {
		zl.Warn("AWS_S3_BUCKET not set, profile file uploads are disabled")
	}

	// Email
	sender, err := email.NewSender(cfg, redisClient, zl)
	if err != nil {
		zl.Fatal("Failed to initialize email sender", zap.Error(err))
	}

	var limiter ratelimit.Limiter
	switch cfg.EmailRateLimitStore {
	case "redis":
		limiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:", cfg.EmailRateLimit, cfg.EmailRateWindow)
	default:
		ml := ratelimit.NewMemoryLimiter(cfg.EmailRateLimit, cfg.EmailRateWindow)
		ml.StartJanitor(cfg.EmailRateWindow)
		defer ml.Close()
		limiter = ml
	}

	// Services
	invoiceStore := services.NewInvoiceStore(mongoDb)
	allocator := billing.NewAllocator(invoiceStore, billing.WithAttempts(cfg.InvoiceNumberAttempts))
	invoiceService := services.NewInvoiceService(invoiceStore, allocator, cfg, zl)
	profileService := services.NewBusinessProfileService(services.NewBusinessProfileStore(mongoDb), assets, cfg, zl)

	var taskClient *tasks.Client
	var queue services.InvoiceEmailQueue
	if redisClient != nil {
		taskClient = tasks.NewClient(redisClient, zl)
		defer taskClient.Close()
		queue = taskClient
	}

	mailer := services.NewInvoiceMailer(services.MailerDeps{
		Invoices: invoiceService,
		Profiles: profileService,
		Store:    invoiceStore,
		Limiter:  limiter,
		Renderer: pdf.NewRenderer(&http.Client{Timeout: cfg.ExternalCallTimeout}, zl, pdf.WithImageSources(storage.PublicURLPrefixes(cfg)...)),
		Sender:   sender,
		Queue:    queue,
	}, cfg, zl)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)
	fatal := make(chan error, 3)

	// Service API (always runs)
	var serviceRedis redis.Cmdable
	if redisClient != nil {
		serviceRedis = redisClient
	}
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(serviceRedis, shutdownChan, zl),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zl.Info("Service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- fmt.Errorf("service API: %w", err)
		}
	}()

	var mainApiSrv *http.Server
	var taskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	zl.Info("Starting application", zap.String("mode", cfg.RunMode))

	if runAPI {
		mainApiSrv = &http.Server{
			Addr: ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, api.Services{
				Invoices: invoiceService,
				Profiles: profileService,
				Mailer:   mailer,
				Drafter:  ai.NewInvoiceDrafter(cfg, zl),
			}, zl),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			zl.Info("Main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal <- fmt.Errorf("main API: %w", err)
			}
		}()
	}

	if runBG {
		processor := tasks.NewTaskProcessor(mailer, invoiceService, zl)
		taskSrv = tasks.SetupServer(redisClient, cfg.WorkerConcurrency, zl)
		if err := taskSrv.Start(tasks.NewServeMux(processor)); err != nil {
			zl.Fatal("Could not start task server", zap.Error(err))
		}
		scheduler, err = tasks.SetupScheduler(redisClient, cfg.OverdueSweepCron, zl)
		if err != nil {
			zl.Fatal("Could not set up scheduler", zap.Error(err))
		}
		if err := scheduler.Start(); err != nil {
			zl.Fatal("Could not start scheduler", zap.Error(err))
		}
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zl.Info("Shutdown requested via Service API")
	case err := <-fatal:
		zl.Error("Server failed, shutting down", zap.Error(err))
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		zl.Error("Service API shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			zl.Error("Main API shutdown error", zap.Error(err))
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	zl.Info("Server gracefully stopped")
}
