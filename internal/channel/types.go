// Package channel defines the delivery types shared by the messaging
// transports, and the fan-out helper that turns a processed reply into
// one outbound send per segment.
package channel

import (
	"context"
	"errors"
	"strings"
)

// ErrNoUsableReply indicates the pipeline finished without producing any
// displayable segments (the normalizer could not parse the model output
// into usable text). Transports answer it with a single fallback message.
var ErrNoUsableReply = errors.New("no usable reply")

// Segment is one addressable piece of a structured reply, dispatched as
// an independent outbound message.
type Segment struct {
	Key  string
	Text string
}

// Result is an ordered set of reply segments. Order follows the
// formatting model's output.
type Result struct {
	Segments []Segment
}

// Empty reports whether the result carries no displayable text.
func (r Result) Empty() bool {
	for _, seg := range r.Segments {
		if strings.TrimSpace(seg.Text) != "" {
			return false
		}
	}
	return true
}

// Texts returns the segment bodies in delivery order.
func (r Result) Texts() []string {
	texts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		texts = append(texts, seg.Text)
	}
	return texts
}

// Sender is the platform send primitive implemented by each transport.
type Sender interface {
	SendText(ctx context.Context, target, text string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, target, text string) error

// SendText calls the wrapped function.
func (f SenderFunc) SendText(ctx context.Context, target, text string) error {
	return f(ctx, target, text)
}
