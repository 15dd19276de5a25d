package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleWindow = 5 * time.Minute

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns nil when requestsPerMinute is not positive, which
// disables throttling.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if !r.limiterFor(c.ClientIP()).Allow() {
			abortWithProblem(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	// new clients are rare compared to requests, so idle entries are swept here
	for k, entry := range r.clients {
		if now.Sub(entry.lastSeen) > limiterIdleWindow {
			delete(r.clients, k)
		}
	}

	l := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: l, lastSeen: now}
	return l
}
