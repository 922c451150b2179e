package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/ai"
	"github.com/vedant7151/Invoice-Generator/internal/api/handlers"
	"github.com/vedant7151/Invoice-Generator/internal/api/middleware"
	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/email"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
	"github.com/vedant7151/Invoice-Generator/internal/services"
)

// Services are the coordinators the public API is built on.
type Services struct {
	Invoices services.IInvoiceService
	Profiles services.IBusinessProfileService
	Mailer   services.IInvoiceMailer
	Drafter  ai.IInvoiceDrafter
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg.RequestRateLimit, cfg.RequestBurst, log)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware(cfg.CorsOrigins))
	r.Use(rateLimiter.Limit())
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	invoiceHandler := handlers.NewInvoiceHandler(svc.Invoices, svc.Mailer, log)
	profileHandler := handlers.NewBusinessProfileHandler(svc.Profiles, cfg.MaxUploadBytes, log)
	aiHandler := handlers.NewAIHandler(svc.Drafter, log)

	r.HandleMethodNotAllowed = true
	r.NoRoute(notFound)
	r.NoMethod(methodNotAllowed)

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.JwtSecret))
	{
		invoices := api.Group("/invoice")
		invoices.GET("", invoiceHandler.ListInvoices)
		invoices.POST("", invoiceHandler.CreateInvoice)
		invoices.GET("/:id", invoiceHandler.GetInvoice)
		invoices.PUT("/:id", invoiceHandler.UpdateInvoice)
		invoices.DELETE("/:id", invoiceHandler.DeleteInvoice)
		invoices.POST("/:id/send-email", invoiceHandler.SendInvoiceEmail)

		profiles := api.Group("/businessProfile")
		profiles.POST("", profileHandler.CreateProfile)
		profiles.GET("/me", profileHandler.GetMyProfile)
		profiles.PUT("/:id", profileHandler.UpdateProfile)

		api.POST("/ai/generate", aiHandler.GenerateInvoice)
	}

	return r
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "Method not allowed"})
}

// SetupServiceRouter configures the internal service API used by operators
// and end-to-end tests. rdb backs getTestEmail and may be nil.
func SetupServiceRouter(rdb redis.Cmdable, shutdownChan chan<- struct{}, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.NoRoute(notFound)

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Warn("Shutdown already signaled")
			}

		case "getTestEmail":
			var args []string // [tag, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid arguments: expected JSON array [tag, email]"})
				return
			}
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Redis is not configured"})
				return
			}
			key := email.MockEmailKey(args[1], args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			raw, err := pollKey(ctx, rdb, key, 10, 200*time.Millisecond)
			if errors.Is(err, redis.Nil) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("Test email not found in Redis for key %s", key)})
				return
			}
			if err != nil {
				log.Error("Service API: reading test email", zap.String("key", key), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Redis error"})
				return
			}

			var stored email.StoredEmail
			if err := json.Unmarshal([]byte(raw), &stored); err != nil {
				log.Error("Service API: decoding test email", zap.String("key", key), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to parse stored email data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": stored})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// pollKey reads and deletes key, retrying while it does not exist yet.
func pollKey(ctx context.Context, rdb redis.Cmdable, key string, attempts int, every time.Duration) (string, error) {
	for i := 0; ; i++ {
		val, err := rdb.GetDel(ctx, key).Result()
		if !errors.Is(err, redis.Nil) || i == attempts-1 {
			return val, err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(every):
		}
	}
}
