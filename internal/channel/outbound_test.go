package channel

import (
	"context"
	"errors"
	"testing"
)

type recordingSender struct {
	sent []string
	fail map[int]error
}

func (r *recordingSender) SendText(_ context.Context, _, text string) error {
	idx := len(r.sent)
	r.sent = append(r.sent, text)
	if r.fail != nil {
		if err, ok := r.fail[idx]; ok {
			return err
		}
	}
	return nil
}

func TestDeliverFansOutSegmentsInOrder(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	res := Result{Segments: []Segment{
		{Key: "saludo", Text: "Hola"},
		{Key: "detalle", Text: "Todo bien"},
	}}
	if err := Deliver(context.Background(), nil, sender, "u1", res, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := res.Texts()
	if len(sender.sent) != len(want) {
		t.Fatalf("expected %d sends, got %d", len(want), len(sender.sent))
	}
	for i := range want {
		if sender.sent[i] != want[i] {
			t.Fatalf("unexpected order: %v", sender.sent)
		}
	}
}

func TestDeliverNoUsableReplySendsSingleFallback(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	err := Deliver(context.Background(), nil, sender, "u1", Result{}, ErrNoUsableReply)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != FallbackText {
		t.Fatalf("expected single fallback message, got %v", sender.sent)
	}
}

func TestDeliverGenericFailureSendsSingleErrorText(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	err := Deliver(context.Background(), nil, sender, "u1", Result{}, errors.New("provider down"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != FailureText {
		t.Fatalf("expected single failure message, got %v", sender.sent)
	}
}

func TestDeliverContinuesPastFailedSegment(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{fail: map[int]error{0: errors.New("boom")}}
	res := Result{Segments: []Segment{
		{Key: "a", Text: "uno"},
		{Key: "b", Text: "dos"},
	}}
	err := Deliver(context.Background(), nil, sender, "u1", res, nil)
	if err == nil {
		t.Fatalf("expected joined send error")
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected both segments attempted, got %d", len(sender.sent))
	}
}

func TestResultEmpty(t *testing.T) {
	t.Parallel()

	if !(Result{}).Empty() {
		t.Fatalf("zero result should be empty")
	}
	if !(Result{Segments: []Segment{{Key: "a", Text: "  "}}}).Empty() {
		t.Fatalf("whitespace-only result should be empty")
	}
	if (Result{Segments: []Segment{{Key: "a", Text: "hola"}}}).Empty() {
		t.Fatalf("non-empty result reported empty")
	}
}
