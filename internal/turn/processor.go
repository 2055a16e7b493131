// Package turn orchestrates one conversation turn: assistant call, then
// response normalization. It is the single error-recovery boundary for
// the whole pipeline.
package turn

import (
	"context"
	"errors"
	"log/slog"

	"github.com/enlaceai/enlace/internal/channel"
)

// Converser produces the assistant's free-text reply for one turn.
type Converser interface {
	Converse(ctx context.Context, userID, text string) (string, error)
}

// Normalizer reshapes a free-text reply into delivery segments.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (channel.Result, error)
}

// Processor runs the converse → normalize pipeline.
type Processor struct {
	converser  Converser
	normalizer Normalizer
	logger     *slog.Logger
}

// NewProcessor creates a turn processor.
func NewProcessor(log *slog.Logger, converser Converser, normalizer Normalizer) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		converser:  converser,
		normalizer: normalizer,
		logger:     log.With(slog.String("service", "turn")),
	}
}

// Process runs one turn for the user. Any failure (missing input, store,
// provider, timeout) surfaces as an error here; channel.ErrNoUsableReply
// marks the normalizer's "no usable answer" arm so transports can pick
// the fallback text over the generic error text. No stage retries.
func (p *Processor) Process(ctx context.Context, userID, text string) (channel.Result, error) {
	raw, err := p.converser.Converse(ctx, userID, text)
	if err != nil {
		p.logger.Error("converse failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return channel.Result{}, err
	}
	res, err := p.normalizer.Normalize(ctx, raw)
	if err != nil {
		if !errors.Is(err, channel.ErrNoUsableReply) {
			p.logger.Error("normalize failed",
				slog.String("user_id", userID), slog.Any("error", err))
		}
		return channel.Result{}, err
	}
	return res, nil
}
