package server

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	HeaderUser       = "X-User-Id"
	contextUserIDKey = "user_id"
)

// UserRequired resolves the acting user from the gateway-injected header.
// Authentication itself happens upstream; this service only needs identity.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUser))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, parsed)
		c.Next()
	}
}

func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}

// rateLimiter is a small in-process fixed-window counter used as a backstop
// when the redis limiter is not configured.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	starts  map[string]time.Time
	counts  map[string]int
	lastGC  time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
		lastGC: time.Now(),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastGC) > r.window {
		for k, start := range r.starts {
			if now.Sub(start) > r.window {
				delete(r.starts, k)
				delete(r.counts, k)
			}
		}
		r.lastGC = now
	}

	start, ok := r.starts[key]
	if !ok || now.Sub(start) > r.window {
		r.starts[key] = now
		r.counts[key] = 1
		return true
	}

	if r.counts[key] >= r.limit {
		return false
	}
	r.counts[key]++
	return true
}

func limiterKey(id snowflake.ID) string {
	return strconv.FormatInt(int64(id), 10)
}
