package recovery

import (
	"context"
	"errors"
	"testing"
)

func TestStrictStrategyFails(t *testing.T) {
	if got := NewStrictStrategy().OnError(context.Background(), errors.New("boom"), Location{}); got != ActionFail {
		t.Fatalf("expected fail, got %s", got)
	}
}

func TestLenientStrategyRecords(t *testing.T) {
	s := NewLenientStrategy(nil)
	base := errors.New("bad length")
	got := s.OnError(context.Background(), base, Location{ByteOffset: 42, Component: "scanner"})
	if got != ActionWarn {
		t.Fatalf("expected warn, got %s", got)
	}
	if len(s.Errors) != 1 || !errors.Is(s.Errors[0], base) {
		t.Fatalf("unexpected recorded errors: %v", s.Errors)
	}
}
