package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterRefills(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 60})
	start := time.Unix(1_700_000_000, 0)

	if !l.allow("a", start).allowed || !l.allow("a", start).allowed {
		t.Fatal("burst of 2 should be allowed")
	}
	res := l.allow("a", start)
	if res.allowed {
		t.Fatal("third call in the same instant should be rejected")
	}
	if res.retryAfter != 1 {
		t.Errorf("retryAfter = %v, want 1", res.retryAfter)
	}

	// other clients keep their own bucket
	if !l.allow("b", start).allowed {
		t.Error("a fresh client should be allowed")
	}

	if !l.allow("a", start.Add(time.Second)).allowed {
		t.Error("one token should have refilled after a second")
	}
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, IdleTTL: time.Minute, SweepInterval: time.Minute})
	start := time.Unix(1_700_000_000, 0)
	l.lastSweep.Store(start.UnixNano())

	l.allow("a", start)
	l.allow("b", start.Add(90*time.Second))
	l.sweep(start.Add(2 * time.Minute))

	if _, ok := l.buckets.Load("a"); ok {
		t.Error("idle bucket a should have been swept")
	}
	if _, ok := l.buckets.Load("b"); !ok {
		t.Error("recent bucket b should be kept")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/detect", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first call status = %v, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("X-RateLimit-Limit = %q, want 1", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call status = %v, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
