package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docfields/internal/logger"
	"docfields/internal/port"
)

// DefaultCooldown is how long an unavailable engine is skipped when it did
// not say when to retry.
const DefaultCooldown = 30 * time.Second

// circuitState tracks the cooldown of a single engine.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackBackend tries engines in order, skipping those with open
// circuits. It implements port.OCRBackend.
type FallbackBackend struct {
	engines  []port.OCRBackend
	circuits []*circuitState
	cooldown time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewFallbackBackend creates a FallbackBackend over an ordered engine list.
func NewFallbackBackend(engines []port.OCRBackend, cooldown time.Duration, log *zap.Logger) *FallbackBackend {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	circuits := make([]*circuitState, len(engines))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackBackend{
		engines:  engines,
		circuits: circuits,
		cooldown: cooldown,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

func (f *FallbackBackend) Name() string { return "fallback" }

func (f *FallbackBackend) Recognize(ctx context.Context, in port.OCRInput) (*port.OCRResult, error) {
	now := f.now()
	var lastErr error
	allUnavailable := true
	var earliestReset time.Time

	for i, e := range f.engines {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.Debug("skipping ocr engine",
				zap.String("engine", e.Name()),
				zap.Time("circuit_open_until", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := e.Recognize(ctx, in)
		if err == nil {
			if out.EngineName == "" {
				out.EngineName = e.Name()
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.logger.Warn("ocr engine failed",
			zap.String("engine", e.Name()),
			zap.String("filename", in.Filename),
			zap.Error(err))
		lastErr = err

		var ue *UnavailableError
		if errors.As(err, &ue) {
			wait := ue.RetryAfter
			if wait <= 0 {
				wait = f.cooldown
			}
			resetAt := now.Add(wait)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allUnavailable = false
		}
	}

	if lastErr == nil || allUnavailable {
		retryAfter := earliestReset.Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return nil, NewUnavailableError("all", fmt.Errorf("no ocr engine available"), retryAfter)
	}
	return nil, fmt.Errorf("all ocr engines failed: %w", lastErr)
}
