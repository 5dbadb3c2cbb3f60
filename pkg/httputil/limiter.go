package httputil

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/wonny/stockvaluation/backend/pkg/redis"
)

// errLimiter marks failures raised while waiting for a limiter slot
var errLimiter = errors.New("limiter")

// Limiter gates outgoing requests
type Limiter interface {
	Wait(ctx context.Context) error
}

// LocalLimiter is a per-process token bucket
type LocalLimiter struct {
	bucket *rate.Limiter
}

// NewLocalLimiter allows perSec requests per second with the given burst
func NewLocalLimiter(perSec, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LocalLimiter{bucket: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return errors.Join(errLimiter, err)
	}
	return nil
}

// SharedLimiter enforces a quota stored in Redis across all instances
type SharedLimiter struct {
	limiter *redis.RateLimiter
	cfg     redis.RateLimitConfig
}

func NewSharedLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *SharedLimiter {
	return &SharedLimiter{limiter: limiter, cfg: cfg}
}

func (s *SharedLimiter) Wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx, s.cfg); err != nil {
		return errors.Join(errLimiter, err)
	}
	return nil
}

// Chain waits on every limiter in order
type Chain []Limiter

func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func isLimiterOrContextErr(err error) bool {
	return errors.Is(err, errLimiter) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsQuotaExhausted reports whether err came from an exhausted shared quota
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, redis.ErrQuotaExhausted)
}
