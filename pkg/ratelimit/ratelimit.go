// Package ratelimit 提供按 key 的令牌桶限流，基于 golang.org/x/time/rate
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond 每秒 rate 个请求
func PerSecond(r, burst int) Limit {
	return Limit{Rate: r, Period: time.Second, Burst: burst}
}

func (l Limit) every() rate.Limit {
	if l.Period <= 0 {
		l.Period = time.Second
	}
	return rate.Limit(float64(l.Rate) / l.Period.Seconds())
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

type bucket struct {
	limiter *rate.Limiter
	limit   Limit
}

// LocalRateLimiter 进程内限流器，每个 key 一个令牌桶
type LocalRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLocalRateLimiter 创建进程内限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow 消耗一个令牌，令牌不足时返回需要等待的时间
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return nil, fmt.Errorf("rate limit check failed: invalid limit %+v", limit)
	}

	b := l.bucketFor(key, limit)
	now := l.now()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return &Result{Allowed: false, RetryAfter: -1}, nil
	}

	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &Result{
			Allowed:    false,
			Remaining:  0,
			ResetAfter: resetAfter(b.limiter, limit, now),
			RetryAfter: delay,
		}, nil
	}

	return &Result{
		Allowed:    true,
		Remaining:  int(math.Max(0, math.Floor(b.limiter.TokensAt(now)))),
		ResetAfter: resetAfter(b.limiter, limit, now),
		RetryAfter: -1,
	}, nil
}

// Len 当前持有的桶数量
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *LocalRateLimiter) bucketFor(key string, limit Limit) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &bucket{
			limiter: rate.NewLimiter(limit.every(), limit.Burst),
			limit:   limit,
		}
		l.buckets[key] = b
	}
	return b
}

// resetAfter 桶重新装满所需时间
func resetAfter(lim *rate.Limiter, limit Limit, now time.Time) time.Duration {
	missing := float64(limit.Burst) - lim.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(limit.every()) * float64(time.Second))
}
