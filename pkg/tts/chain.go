package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed provider is skipped.
const DefaultCooldown = 30 * time.Second

// Chain is a Provider that falls back through engines in order. A provider
// that fails is skipped for the cooldown so a dead network engine does not
// delay every phrase; when every provider is cooling down all are tried.
type Chain struct {
	providers []Provider
	cooldown  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	failedAt []time.Time
}

// NewChain builds a chain. At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		logger:    logger.With("component", "tts.chain"),
		failedAt:  make([]time.Time, len(providers)),
	}, nil
}

// SetCooldown changes the skip duration. Zero disables skipping.
func (c *Chain) SetCooldown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldown = d
}

// order returns provider indexes to try: healthy ones first in chain order,
// then those still cooling down.
func (c *Chain) order() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var ready, cooling []int
	for i, t := range c.failedAt {
		if c.cooldown > 0 && !t.IsZero() && now.Sub(t) < c.cooldown {
			cooling = append(cooling, i)
		} else {
			ready = append(ready, i)
		}
	}
	return append(ready, cooling...)
}

func (c *Chain) mark(i int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.failedAt[i] = c.now()
	} else {
		c.failedAt[i] = time.Time{}
	}
}

// Synthesize tries providers until one succeeds. The requested voice is only
// passed to a provider that lists it.
func (c *Chain) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	var errs []error
	for n, i := range c.order() {
		p := c.providers[i]
		r := req
		if r.Voice != "" && !slices.Contains(p.Voices(), r.Voice) {
			r.Voice = ""
		}

		result, err := p.Synthesize(ctx, r)
		if err == nil {
			c.mark(i, false)
			if n > 0 {
				c.logger.Info("fallback voice used", "provider_index", i, "chars", len(req.Text))
			}
			return result, nil
		}

		c.mark(i, true)
		errs = append(errs, err)
		c.logger.Warn("synthesis failed, trying next", "provider_index", i, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Voices returns the voices of the first provider.
func (c *Chain) Voices() []string {
	return c.providers[0].Voices()
}

// Health reports an error only when every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.providers) {
		return fmt.Errorf("all %d providers unhealthy: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Close closes every provider and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChainError collects the failure of every provider tried.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no provider tried"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("tts chain: all %d providers failed: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Provider = (*Chain)(nil)
