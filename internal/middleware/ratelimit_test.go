package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rate, burst)
	rl.now = clock.now
	return rl, clock
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", http.NoBody)
	req.RemoteAddr = ip + ":51000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl, _ := newTestLimiter(1, 3)
	h := rl.Handler(okHandler())

	for i := range 3 {
		if rec := hit(h, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := hit(h, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl, clock := newTestLimiter(2, 1)
	h := rl.Handler(okHandler())

	if hit(h, "10.0.0.1").Code != http.StatusOK {
		t.Fatal("first request should pass")
	}
	if hit(h, "10.0.0.1").Code != http.StatusTooManyRequests {
		t.Fatal("second request should be limited")
	}
	clock.advance(500 * time.Millisecond)
	if hit(h, "10.0.0.1").Code != http.StatusOK {
		t.Fatal("request after refill should pass")
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)
	h := rl.Handler(okHandler())

	hit(h, "10.0.0.1")
	if hit(h, "10.0.0.1").Code != http.StatusTooManyRequests {
		t.Error("10.0.0.1 should be limited")
	}
	if hit(h, "10.0.0.2").Code != http.StatusOK {
		t.Error("10.0.0.2 should be allowed")
	}
}

func TestRateLimiter_CapacityAndCleanup(t *testing.T) {
	rl, clock := newTestLimiter(1, 5)
	rl.maxBuckets = 2
	h := rl.Handler(okHandler())

	hit(h, "10.0.0.1")
	hit(h, "10.0.0.2")
	if hit(h, "10.0.0.3").Code != http.StatusTooManyRequests {
		t.Fatal("expected rejection at bucket capacity")
	}

	clock.advance(time.Hour)
	rl.cleanup(time.Minute)
	if rl.Len() != 0 {
		t.Fatalf("expected idle buckets to be removed, have %d", rl.Len())
	}
	if hit(h, "10.0.0.3").Code != http.StatusOK {
		t.Fatal("expected new IP to be admitted after cleanup")
	}
}
