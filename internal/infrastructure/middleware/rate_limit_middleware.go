package middleware

import (
	"strconv"
	"sync"
	"time"

	"djbook/pkg/cache"
	"djbook/pkg/config"
	"djbook/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL bounds how long a client's limiter survives without traffic.
const idleLimiterTTL = 10 * time.Minute

// rateLimiterStore stores per-IP rate limiters. Idle limiters expire.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  *cache.TTL[*rate.Limiter]
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  cache.New[*rate.Limiter](idleLimiterTTL, time.Minute, nil),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burstSize)
	}
	// re-set on every hit so active clients keep their limiter
	s.limiters.Set(key, limiter)
	return limiter
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)
	retryAfterSeconds := int(time.Duration(float64(time.Second)/rps).Seconds()) + 1
	retryAfter := strconv.Itoa(retryAfterSeconds)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				abortWith(c, errors.NewServiceUnavailableError("too many concurrent requests"))
				return
			}
		}

		limiter := store.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			abortWith(c, errors.NewRateLimitError().WithContext("retry_after_seconds", retryAfterSeconds))
			return
		}
		c.Next()
	}
}
