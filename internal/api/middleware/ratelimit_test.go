package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var limiterEpoch = time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)

// newRedisLimiter returns a limiter on an in-process Redis with a single
// limit of n GET /limited requests per minute.
func newRedisLimiter(t *testing.T, n int, cfg RateLimiterConfig) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(limiterEpoch)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, zerolog.Nop(), cfg)
	rl.limits = []RateLimit{{"GET /limited", n, time.Minute, ipKey}}
	rl.now = func() time.Time { return limiterEpoch }
	return rl, mr
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/limited", nil)
	r.RemoteAddr = ip + ":4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimiterCountsPerWindow(t *testing.T) {
	rl, _ := newRedisLimiter(t, 2, RateLimiterConfig{})
	h := rl.Middleware(ok)
	resetAt := strconv.FormatInt(limiterEpoch.Truncate(time.Minute).Add(time.Minute).Unix(), 10)

	for i, wantRemaining := range []string{"1", "0"} {
		w := hit(h, "203.0.113.7")
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected pass-through, got %d", i, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d: expected remaining %s, got %s", i, wantRemaining, got)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("expected limit header 2, got %s", got)
		}
		if got := w.Header().Get("X-RateLimit-Reset"); got != resetAt {
			t.Fatalf("expected reset %s, got %s", resetAt, got)
		}
	}

	w := hit(h, "203.0.113.7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "31" {
		t.Fatalf("expected Retry-After 31, got %q", got)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected a JSON error body")
	}

	// Other clients have their own counters.
	if w := hit(h, "203.0.113.8"); w.Code != http.StatusNoContent {
		t.Fatalf("expected a fresh window for another IP, got %d", w.Code)
	}

	// The next window starts over.
	rl.now = func() time.Time { return limiterEpoch.Add(time.Minute) }
	if w := hit(h, "203.0.113.7"); w.Code != http.StatusNoContent {
		t.Fatalf("expected the next window to allow, got %d", w.Code)
	}
}

func TestRateLimiterAutoBlocks(t *testing.T) {
	rl, mr := newRedisLimiter(t, 1, RateLimiterConfig{AutoBlockEnabled: true})
	h := rl.Middleware(ok)
	ip := "198.51.100.4"

	if w := hit(h, ip); w.Code != http.StatusNoContent {
		t.Fatalf("expected first request through, got %d", w.Code)
	}
	for i := 0; i < violationThreshold; i++ {
		if w := hit(h, ip); w.Code != http.StatusTooManyRequests {
			t.Fatalf("violation %d: expected 429, got %d", i, w.Code)
		}
	}

	if !mr.Exists(blockKey(ip)) {
		t.Fatal("expected the IP to be blocked")
	}
	if ttl := mr.TTL(blockKey(ip)); ttl != blockDuration {
		t.Fatalf("expected block for %v, got %v", blockDuration, ttl)
	}
	if w := hit(h, ip); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 while blocked, got %d", w.Code)
	}
}

func TestRateLimiterWithoutAutoBlockNeverBlocks(t *testing.T) {
	rl, mr := newRedisLimiter(t, 1, RateLimiterConfig{})
	h := rl.Middleware(ok)

	for i := 0; i < violationThreshold+2; i++ {
		hit(h, "198.51.100.5")
	}
	if mr.Exists(blockKey("198.51.100.5")) {
		t.Fatal("auto-block disabled but IP was blocked")
	}
}

func TestRateLimiterSkipsWhitelisted(t *testing.T) {
	rl, _ := newRedisLimiter(t, 1, RateLimiterConfig{Whitelist: []string{"10.0.0.0/8"}})
	h := rl.Middleware(ok)

	for i := 0; i < 3; i++ {
		w := hit(h, "10.2.3.4")
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected whitelisted pass-through, got %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "" {
			t.Fatal("whitelisted requests are not counted")
		}
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl, mr := newRedisLimiter(t, 1, RateLimiterConfig{AutoBlockEnabled: true})
	h := rl.Middleware(ok)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := hit(h, "192.0.2.9")
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected pass-through with Redis down, got %d", i, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "1" {
			t.Fatalf("expected full allowance reported, got %q", got)
		}
	}
}
