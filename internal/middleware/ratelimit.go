package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/scdaid-mcp-server/internal/domain"
)

// RateLimiter hands out one token bucket per client IP
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	idleTime  time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per client with the given burst. Buckets idle
// for longer than ten minutes are dropped.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		idleTime:  10 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether key may proceed now
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cl, ok := r.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = cl
	}
	cl.lastSeen = now

	if now.Sub(r.lastSweep) > r.idleTime {
		for k, other := range r.clients {
			if now.Sub(other.lastSeen) > r.idleTime {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}
	return cl.limiter.Allow()
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Middleware rejects requests over the limit with 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.limit <= 0 || r.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":           domain.ErrRateLimit,
			"message":        "too many requests",
			"correlation_id": c.GetString(CorrelationIDKey),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		})
	}
}
