package middleware

import (
    "context"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/coral-club-board/internal/config"
)

// Rate limit scopes.  Each client has one bucket per scope, so dragging
// tents in the admin panel never eats into the reservation form budget.
const (
    ScopeKV      = "kv"
    ScopeReserve = "reserve"
    ScopeLogin   = "login"
    ScopeAdmin   = "admin"
)

// takeToken refills the bucket for the time elapsed, then takes one token
// if there is one.  Returns {allowed, tokens left, ms until next token}.
var takeToken = redis.NewScript(`
local bucket = KEYS[1]
local now = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local every = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', bucket, 'tokens'))
local stamp = tonumber(redis.call('HGET', bucket, 'stamp'))
if tokens == nil or stamp == nil then
    tokens = burst
    stamp = now
end

local gained = math.floor(math.max(0, now - stamp) / every)
if gained > 0 then
    tokens = math.min(burst, tokens + gained)
    stamp = stamp + gained * every
end

local ok = 0
local wait = 0
if tokens >= 1 then
    ok = 1
    tokens = tokens - 1
else
    wait = math.max(0, every - (now - stamp))
end

redis.call('HSET', bucket, 'tokens', tokens, 'stamp', stamp)
redis.call('PEXPIRE', bucket, ttl)
return {ok, tokens, wait}
`)

// Limiter throttles writes with token buckets kept in Redis so every
// server instance shares the same budget.  A nil Limiter lets everything
// through, as does any Redis error.
type Limiter struct {
    cfg config.RateLimitConfig
    rdb redis.Scripter
    log *slog.Logger
    now func() time.Time
}

// NewLimiter returns nil when limiting is disabled or there is no Redis to
// keep buckets in.
func NewLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, log *slog.Logger) *Limiter {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    if log == nil {
        log = slog.Default()
    }
    return &Limiter{cfg: cfg, rdb: rdb, log: log, now: time.Now}
}

type verdict struct {
    allowed bool
    left    int64
    wait    time.Duration
}

// Scope returns middleware charging one token from the caller's bucket in
// scope.  Admin buckets follow the token subject; every other scope
// follows the client IP.
func (l *Limiter) Scope(scope string) echo.MiddlewareFunc {
    if l == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    burst := l.cfg.Burst
    if scope == ScopeLogin {
        burst = l.cfg.LoginBurst
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := bucketKey(l.cfg.Prefix, scope, c)
            v, err := l.take(c.Request().Context(), key, burst)
            if err != nil {
                l.log.Warn("rate limit skipped", "key", key, "err", err)
                return next(c)
            }
            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(burst))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.left, 10))
            if v.allowed {
                return next(c)
            }
            secs := int64((v.wait + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.FormatInt(secs, 10))
            l.log.Debug("rate limited", "key", key, "retry_after", secs)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "ok":          false,
                "error":       "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

func (l *Limiter) take(ctx context.Context, key string, burst int) (verdict, error) {
    ttl := l.cfg.TTL(burst)
    res, err := takeToken.Run(ctx, l.rdb, []string{key},
        l.now().UnixMilli(), burst, l.cfg.RefillEvery.Milliseconds(), ttl.Milliseconds(),
    ).Int64Slice()
    if err != nil {
        return verdict{}, errors.Wrap(err, "token bucket script")
    }
    if len(res) != 3 {
        return verdict{}, errors.Newf("token bucket script returned %d values", len(res))
    }
    return verdict{allowed: res[0] == 1, left: res[1], wait: time.Duration(res[2]) * time.Millisecond}, nil
}

func bucketKey(prefix, scope string, c echo.Context) string {
    who := c.RealIP()
    if who == "" {
        who = "unknown"
    }
    if scope == ScopeAdmin {
        who = subject(c)
    }
    return strings.Join([]string{prefix, scope, who}, ":")
}
