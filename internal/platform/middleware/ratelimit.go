// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/taibuivan/reactforge-auth/internal/platform/apperr"
	"github.com/taibuivan/reactforge-auth/internal/platform/constants"
	"github.com/taibuivan/reactforge-auth/internal/platform/ctxutil"
	"github.com/taibuivan/reactforge-auth/internal/platform/respond"
)

// # Rate Limiting

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RejectionRecorder is notified of every rejected request.
type RejectionRecorder interface {
	RecordRateLimited(bucket string)
}

// RateLimit enforces limiter per client IP under the named bucket.
//
// A limiter backend failure lets the request through and logs a warning:
// losing the budget for a moment is preferable to failing every login.
func RateLimit(limiter Limiter, bucket string, recorder RejectionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			clientIP := ClientIP(request)

			decision, err := limiter.Allow(ctx, clientIP)
			if err != nil {
				ctxutil.GetLogger(ctx).WarnContext(ctx, "rate_limit_check_failed",
					slog.String("bucket", bucket),
					slog.Any("error", err),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if !decision.Allowed {
				if recorder != nil {
					recorder.RecordRateLimited(bucket)
				}
				ctxutil.GetLogger(ctx).WarnContext(ctx, "rate_limit_exceeded",
					slog.String("bucket", bucket),
					slog.String("ip", clientIP),
				)
				respond.Error(writer, request, apperr.RateLimited(retryAfterSeconds(decision.RetryAfter)))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	return int(math.Ceil(wait.Seconds()))
}

// # In-Memory Token Bucket

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter keeps one [rate.Limiter] per client in process memory.
//
// It is used for the coarse global budget, where per-instance accounting
// is acceptable. The map is the only mutex-guarded state in the request
// path.
type TokenBucketLimiter struct {
	every  rate.Limit
	burst  int
	idle   time.Duration
	mu     sync.Mutex
	client map[string]*rateLimitClient
}

// NewTokenBucketLimiter allows requests per window for each client, with a
// burst of the full budget. Idle clients are evicted until ctx is done.
func NewTokenBucketLimiter(ctx context.Context, requests int, window time.Duration) *TokenBucketLimiter {
	limiter := &TokenBucketLimiter{
		every:  rate.Every(window / time.Duration(requests)),
		burst:  requests,
		idle:   window,
		client: make(map[string]*rateLimitClient),
	}

	// Start a background cleanup routine that respects context cancellation
	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				limiter.evictIdle(time.Now())
			case <-ctx.Done():
				// Stop the goroutine when the application shuts down
				return
			}
		}
	}()

	return limiter
}

// Allow implements [Limiter].
func (limiter *TokenBucketLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := time.Now()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	clientInfo, found := limiter.client[key]

	// Initialize a new limiter if this is a fresh client
	if !found {
		clientInfo = &rateLimitClient{limiter: rate.NewLimiter(limiter.every, limiter.burst)}
		limiter.client[key] = clientInfo
	}
	clientInfo.lastSeen = now

	reservation := clientInfo.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

// Len returns the number of tracked clients.
func (limiter *TokenBucketLimiter) Len() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.client)
}

func (limiter *TokenBucketLimiter) evictIdle(now time.Time) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	for key, clientInfo := range limiter.client {
		if now.Sub(clientInfo.lastSeen) > limiter.idle {
			delete(limiter.client, key)
		}
	}
}

// # Redis Sliding Window

// SlidingWindowLimiter counts requests per client in a Redis sorted set,
// so every instance shares one budget for the sensitive auth endpoints.
//
// # Algorithm
//
// Each request adds a member scored by its timestamp, drops members older
// than the window and counts the rest, all in one MULTI/EXEC. A rejected
// request removes its own member so it does not consume budget.
type SlidingWindowLimiter struct {
	client   *redis.Client
	prefix   string
	requests int
	window   time.Duration
}

// NewSlidingWindowLimiter allows requests per window for each client. Keys
// are namespaced under prefix (e.g. "reactforge:ratelimit:login:").
func NewSlidingWindowLimiter(client *redis.Client, prefix string, requests int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client:   client,
		prefix:   prefix,
		requests: requests,
		window:   window,
	}
}

// Allow implements [Limiter].
func (limiter *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	redisKey := limiter.prefix + key
	member := uuid.NewString()
	windowStart := now.Add(-limiter.window)

	var count *redis.IntCmd
	_, err := limiter.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart.UnixMicro(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, limiter.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis_rate_limit_failed: %w", err)
	}

	if count.Val() <= int64(limiter.requests) {
		return Decision{Allowed: true}, nil
	}

	// Over budget: give the slot back and report when the oldest entry ages out
	if err := limiter.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("redis_rate_limit_failed: %w", err)
	}

	retryAfter := limiter.window
	oldest, err := limiter.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) == 1 {
		expiresAt := time.UnixMicro(int64(oldest[0].Score)).Add(limiter.window)
		retryAfter = max(expiresAt.Sub(now), time.Second)
	}

	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}
