package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	violationThreshold = 10
	violationWindow    = time.Hour
	blockDuration      = 24 * time.Hour
)

// RateLimit caps requests matching a "METHOD /path-prefix" pattern.
type RateLimit struct {
	Pattern  string
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // block an IP after repeated violations
}

// DefaultLimits covers the request/response contract and the socket upgrade.
// The first matching pattern wins.
var DefaultLimits = []RateLimit{
	{"POST /create-user", 10, time.Hour, ipKey},
	{"POST /login", 20, time.Minute, ipKey},
	{"POST /save-session", 60, time.Minute, ipKey},
	{"GET /load-session/", 120, time.Minute, ipKey},
	{"GET /load-user-session", 60, time.Minute, ipKey},
	{"GET /room/", 120, time.Minute, ipKey},
	{"GET /ws", 30, time.Minute, ipKey},
}

// decision is the outcome of counting one request against a limit.
type decision struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

// RateLimiter counts requests per key in fixed Redis windows.
// A limiter without a Redis client lets every request through.
type RateLimiter struct {
	client    *redis.Client
	limits    []RateLimit
	logger    zerolog.Logger
	exempt    []netip.Prefix
	autoBlock bool
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter. client may be nil.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:    client,
		limits:    DefaultLimits,
		logger:    logger,
		autoBlock: cfg.AutoBlockEnabled,
		now:       time.Now,
	}

	for _, entry := range cfg.Whitelist {
		prefix, err := parsePrefix(entry)
		if err != nil {
			logger.Warn().Str("entry", entry).Err(err).Msg("ignoring invalid whitelist entry")
			continue
		}
		rl.exempt = append(rl.exempt, prefix)
	}
	if len(rl.exempt) > 0 {
		logger.Info().Int("entries", len(rl.exempt)).Msg("rate limit whitelist configured")
	}
	if client == nil {
		logger.Info().Msg("rate limiting disabled: no redis configured")
	}
	return rl
}

// parsePrefix accepts either a CIDR or a bare address.
func parsePrefix(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (rl *RateLimiter) isWhitelisted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range rl.exempt {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + RealIP(r)
}

// RealIP extracts the client IP from proxy headers or the connection.
func RealIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// count records a hit for key in the current window of limit.
// Redis errors fail open.
func (rl *RateLimiter) count(ctx context.Context, key string, limit RateLimit) decision {
	now := rl.now()
	bucket := now.UnixMilli() / limit.Window.Milliseconds()
	resetAt := time.UnixMilli((bucket + 1) * limit.Window.Milliseconds())
	windowKey := key + ":" + strconv.FormatInt(bucket, 10)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.PExpireAt(ctx, windowKey, resetAt)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
		return decision{allowed: true, remaining: limit.Requests, resetAt: resetAt}
	}

	hits := int(incr.Val())
	return decision{
		allowed:   hits <= limit.Requests,
		remaining: max(limit.Requests-hits, 0),
		resetAt:   resetAt,
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.client == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)
		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.isBlocked(r.Context(), ip) {
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			writeJSONError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		d := rl.count(r.Context(), limit.KeyFunc(r), *limit)
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.resetAt.Unix(), 10))

		if !d.allowed {
			retry := int(d.resetAt.Sub(rl.now()).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retry))
			rl.recordViolation(r.Context(), ip)
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("pattern", limit.Pattern).
				Msg("rate limit exceeded")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit returns the first limit whose pattern prefixes the request.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	key := r.Method + " " + r.URL.Path
	for i := range rl.limits {
		if strings.HasPrefix(key, rl.limits[i].Pattern) {
			return &rl.limits[i]
		}
	}
	return nil
}

func blockKey(ip string) string     { return "blocked:ip:" + ip }
func violationKey(ip string) string { return "violations:ip:" + ip }

func (rl *RateLimiter) isBlocked(ctx context.Context, ip string) bool {
	if !rl.autoBlock {
		return false
	}
	n, err := rl.client.Exists(ctx, blockKey(ip)).Result()
	return err == nil && n > 0
}

// recordViolation blocks ip once it exceeds violationThreshold within violationWindow.
func (rl *RateLimiter) recordViolation(ctx context.Context, ip string) {
	if !rl.autoBlock {
		return
	}

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, violationKey(ip))
	pipe.Expire(ctx, violationKey(ip), violationWindow)
	if _, err := pipe.Exec(ctx); err != nil || incr.Val() < violationThreshold {
		return
	}

	if err := rl.client.Set(ctx, blockKey(ip), "repeated rate limit violations", blockDuration).Err(); err != nil {
		rl.logger.Warn().Err(err).Str("ip", ip).Msg("failed to block IP")
		return
	}
	rl.logger.Warn().
		Str("type", "security").
		Str("event", "ip_auto_blocked").
		Str("ip", ip).
		Int64("violations", incr.Val()).
		Msg("IP auto-blocked for repeated violations")
}
