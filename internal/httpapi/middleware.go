package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter bounds webhook ingress. With Redis it enforces a shared
// fixed-window count across replicas; without it, a process-local token
// bucket.
type RateLimiter struct {
	redis             *redis.Client
	local             *rate.Limiter
	requestsPerMinute int
	logger            *zap.Logger
}

// NewRateLimiter creates a rate limiter. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, requestsPerMinute, burst int, logger *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		redis:             redisClient,
		local:             rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		requestsPerMinute: requestsPerMinute,
		logger:            logger,
	}
}

// Middleware returns the HTTP middleware function.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.Context()) {
			rl.logger.Warn("Rate limit exceeded", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context) bool {
	if rl.redis == nil {
		return rl.local.Allow()
	}
	key := "pagerelay:ratelimit:" + time.Now().UTC().Format("200601021504")
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis trouble must not take the webhook surface down with it.
		rl.logger.Warn("Rate limit check failed, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		rl.redis.Expire(ctx, key, 2*time.Minute)
	}
	return count <= int64(rl.requestsPerMinute)
}

// IdempotencyMiddleware replays the cached response for repeated deliveries
// of the same request. The upstream webhook source is at-least-once; this
// keeps duplicate deliveries from re-running whole pipelines. Applies only
// when the caller supplies an Idempotency-Key header and Redis is available.
type IdempotencyMiddleware struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotencyMiddleware creates the middleware. redisClient may be nil,
// which disables it.
func NewIdempotencyMiddleware(redisClient *redis.Client, logger *zap.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{redis: redisClient, ttl: 24 * time.Hour, logger: logger}
}

type cachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware returns the HTTP middleware function.
func (im *IdempotencyMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if im.redis == nil || r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sum := sha256.Sum256([]byte(r.URL.Path + ":" + key))
		cacheKey := "pagerelay:idempotency:" + hex.EncodeToString(sum[:])

		if raw, err := im.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil {
				im.logger.Debug("Replaying idempotent response",
					zap.String("path", r.URL.Path),
					zap.String("idempotency_key", key))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replay", "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Only cache definitive outcomes; retryable failures should retry.
		if rec.statusCode < 500 {
			raw, err := json.Marshal(cachedResponse{StatusCode: rec.statusCode, Body: rec.body.Bytes()})
			if err == nil {
				if err := im.redis.Set(ctx, cacheKey, raw, im.ttl).Err(); err != nil {
					im.logger.Warn("Failed to store idempotency record", zap.Error(err))
				}
			}
		}
	})
}

// RequestLogger logs one line per request with latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("Request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.statusCode),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
