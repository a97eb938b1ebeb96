package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks callers until they may proceed
type Limiter interface {
	Wait(ctx context.Context) error
	TryAcquire() bool
	Stats() map[string]interface{}
}

// Config represents rate limiter configuration
type Config struct {
	// Interval is the minimum spacing between two acquisitions. Zero disables limiting.
	Interval time.Duration `json:"interval"`
	// BurstSize is how many acquisitions may happen back to back. Defaults to 1.
	BurstSize int `json:"burst_size"`
}

// Validate validates the rate limiter configuration
func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", c.Interval)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst size must not be negative, got %d", c.BurstSize)
	}
	if c.BurstSize == 0 {
		c.BurstSize = 1
	}
	return nil
}

type localLimiter struct {
	config  Config
	limiter *rate.Limiter
}

// NewLocalLimiter creates an in-process limiter
func NewLocalLimiter(config Config) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.Interval > 0 {
		limit = rate.Every(config.Interval)
	}

	return &localLimiter{
		config:  config,
		limiter: rate.NewLimiter(limit, config.BurstSize),
	}, nil
}

// NewIntervalLimiter is shorthand for a burst-1 limiter spacing calls by interval
func NewIntervalLimiter(interval time.Duration) (Limiter, error) {
	return NewLocalLimiter(Config{Interval: interval, BurstSize: 1})
}

func (l *localLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *localLimiter) TryAcquire() bool {
	return l.limiter.Allow()
}

func (l *localLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"interval":   l.config.Interval.String(),
		"burst_size": l.config.BurstSize,
		"tokens":     l.limiter.Tokens(),
	}
}
