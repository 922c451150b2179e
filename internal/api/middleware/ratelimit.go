package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// clientLimiter stores the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware throttles requests per client IP with a token bucket.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	log     *zap.Logger
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiterMiddleware creates a limiter allowing perSecond requests with
// the given burst. perSecond <= 0 disables throttling.
func NewRateLimiterMiddleware(perSecond, burst int, log *zap.Logger) *RateLimiterMiddleware {
	if burst < 1 {
		burst = 1
	}
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 30 * time.Minute,
		log:     logger.OrNop(log),
		stop:    make(chan struct{}),
	}
	if perSecond <= 0 {
		rm.limit = rate.Inf
	}
	go rm.cleanupClients(10 * time.Minute)
	return rm
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string, now time.Time) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	cl, exists := rm.clients[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rm.limit, rm.burst)}
		rm.clients[key] = cl
	}
	cl.lastSeen = now
	return cl
}

func (rm *RateLimiterMiddleware) cleanupClients(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case now := <-ticker.C:
			if n := rm.evictIdle(now); n > 0 {
				rm.log.Debug("Rate limiter cleanup", zap.Int("removed", n))
			}
		}
	}
}

func (rm *RateLimiterMiddleware) evictIdle(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for key, cl := range rm.clients {
		if now.Sub(cl.lastSeen) > rm.idleTTL {
			delete(rm.clients, key)
			count++
		}
	}
	return count
}

// Close stops the cleanup goroutine.
func (rm *RateLimiterMiddleware) Close() {
	rm.once.Do(func() { close(rm.stop) })
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rm.getClientLimiter(key, time.Now()).limiter.Allow() {
			rm.log.Info("Request rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.FullPath()),
			)
			abort(c, http.StatusTooManyRequests, "Too many requests, please slow down")
			return
		}
		c.Next()
	}
}
