package narration

import (
	"context"
	"log/slog"
)

// Chain tries generators in order until one succeeds.
type Chain struct {
	generators []Generator
	logger     *slog.Logger
}

// NewChain creates a generator chain.
func NewChain(logger *slog.Logger, generators ...Generator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		generators: generators,
		logger:     logger.With("component", "narration.chain"),
	}
}

// Generate implements Generator.
func (c *Chain) Generate(ctx context.Context, nc Context) (string, error) {
	if len(c.generators) == 0 {
		return "", ErrGeneratorDisabled
	}

	var errs []error
	for i, g := range c.generators {
		text, err := g.Generate(ctx, nc)
		if err == nil {
			if i > 0 {
				c.logger.Debug("fallback generator succeeded", "generator_index", i)
			}
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", &ChainError{Errors: errs}
}

// Disabled is a Generator that always fails, so the template phrase is used.
type Disabled struct{}

// Generate returns ErrGeneratorDisabled.
func (Disabled) Generate(context.Context, Context) (string, error) {
	return "", ErrGeneratorDisabled
}

var (
	_ Generator = (*Chain)(nil)
	_ Generator = Disabled{}
	_ Generator = (*Gemini)(nil)
	_ Generator = (*OpenAI)(nil)
)
