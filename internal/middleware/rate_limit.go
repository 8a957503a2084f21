package middleware

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/service"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
	"github.com/noah-isme/event-registration-api/pkg/response"
)

type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitConfig bounds requests per client IP within a fixed window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Prefix   string
}

// RateLimit rejects clients exceeding cfg.Requests per cfg.Window with 429.
// Counter failures let the request through. The first failure of an outage is logged at warn.
func RateLimit(counter windowCounter, cfg RateLimitConfig, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit"
	}
	var degraded atomic.Bool
	return func(c *gin.Context) {
		if counter == nil || cfg.Requests <= 0 {
			c.Next()
			return
		}

		key := cfg.Prefix + ":" + c.FullPath() + ":" + c.ClientIP()
		count, ttl, err := counter.IncrWindow(c.Request.Context(), key, cfg.Window)
		if err != nil {
			if degraded.CompareAndSwap(false, true) {
				logger.Warn("rate limit counter unavailable, allowing requests", zap.Error(err))
			} else {
				logger.Debug("rate limit counter unavailable", zap.Error(err))
			}
			c.Next()
			return
		}
		if degraded.CompareAndSwap(true, false) {
			logger.Info("rate limit counter recovered")
		}

		remaining := int64(cfg.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Requests) {
			if ttl <= 0 {
				ttl = cfg.Window
			}
			c.Header("Retry-After", strconv.Itoa(int((ttl+time.Second-1)/time.Second)))
			metrics.RecordRateLimited()
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
