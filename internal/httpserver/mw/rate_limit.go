package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve IP from proxy headers when true
	Logger            logger.Logger
}

// bucket is a token bucket for one client IP.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastRef  time.Time
	lastSeen time.Time
}

type limitResult struct {
	allowed    bool
	remaining  int
	retryAfter int
}

type limiter struct {
	cfg       RateLimitConfig
	rate      float64 // tokens per second
	capacity  float64
	buckets   *xsync.Map[string, *bucket]
	lastSweep atomic.Int64 // unix nanos
	sweeping  sync.Mutex
	now       func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)

	l := &limiter{
		cfg:      cfg,
		rate:     float64(cfg.RefillPerIPPerMin) / 60.0,
		capacity: float64(cfg.Burst),
		buckets:  xsync.NewMap[string, *bucket](),
		now:      time.Now,
	}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *limiter) allow(key string, now time.Time) limitResult {
	b, _ := l.buckets.LoadOrStore(key, &bucket{tokens: l.capacity, lastRef: now, lastSeen: now})

	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.lastRef).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.lastRef = now
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return limitResult{allowed: true, remaining: int(math.Floor(b.tokens))}
	}
	wait := int(math.Ceil((1 - b.tokens) / l.rate))
	return limitResult{retryAfter: max(wait, 1)}
}

// sweep drops idle buckets once per SweepInterval, or right away when the
// table is over MaxEntries.
func (l *limiter) sweep(now time.Time) {
	due := now.UnixNano()-l.lastSweep.Load() >= int64(l.cfg.SweepInterval)
	full := l.cfg.MaxEntries > 0 && l.buckets.Size() >= l.cfg.MaxEntries
	if !due && !full {
		return
	}
	if !l.sweeping.TryLock() {
		return
	}
	defer l.sweeping.Unlock()

	l.buckets.Range(func(ip string, b *bucket) bool {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen) > l.cfg.IdleTTL
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(ip)
		}
		return true
	})
	l.lastSweep.Store(now.UnixNano())
}

// RateLimit applies a per-client-IP token bucket. Rejected calls get a JSON
// 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.now()
			l.sweep(now)

			key := utils.ClientIP(r, l.cfg.TrustProxy)
			res := l.allow(key, now)

			w.Header().Set("X-RateLimit-Limit", limitStr)
			if !res.allowed {
				if l.cfg.Logger != nil {
					l.cfg.Logger.Debug("rate limited",
						logger.String("client_ip", key),
						logger.String("path", r.URL.Path),
						logger.Int("retry_after", res.retryAfter))
				}
				w.Header().Set("Retry-After", strconv.Itoa(res.retryAfter))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
			next.ServeHTTP(w, r)
		})
	}
}
