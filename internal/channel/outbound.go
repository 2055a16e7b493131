package channel

import (
	"context"
	"errors"
	"log/slog"
)

// User-facing texts. These cross the channel boundary verbatim; provider
// detail never does.
const (
	FallbackText = "No se pudo obtener una respuesta válida."
	FailureText  = "Hubo un error al procesar tu solicitud."
)

// Deliver fans a processed turn out to the target: one send per segment
// on success, exactly one fallback or error message otherwise. A failed
// segment send is logged and the remaining segments are still attempted;
// the joined send errors are returned for the caller's log.
func Deliver(ctx context.Context, log *slog.Logger, sender Sender, target string, res Result, procErr error) error {
	if log == nil {
		log = slog.Default()
	}
	if procErr != nil {
		text := FailureText
		if errors.Is(procErr, ErrNoUsableReply) {
			text = FallbackText
		}
		if err := sender.SendText(ctx, target, text); err != nil {
			log.Error("send failure notice failed",
				slog.String("target", target), slog.Any("error", err))
			return err
		}
		return nil
	}

	var sendErrs []error
	for _, seg := range res.Segments {
		if err := sender.SendText(ctx, target, seg.Text); err != nil {
			log.Error("send segment failed",
				slog.String("target", target),
				slog.String("segment", seg.Key),
				slog.Any("error", err))
			sendErrs = append(sendErrs, err)
		}
	}
	return errors.Join(sendErrs...)
}
