package engine

import (
	"testing"
	"time"

	"vwapbot/pkg/signal"
)

func TestPositionStoreLifecycle(t *testing.T) {
	s := NewPositionStore()

	if _, ok := s.Get("AAPL"); ok {
		t.Fatalf("empty store returned a position")
	}

	p := Position{Symbol: "AAPL", Direction: signal.Long, EntryPrice: 100, EntryTime: time.Now()}
	if err := s.Open(p); err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}

	got, ok := s.Get("AAPL")
	if !ok || got.EntryPrice != 100 {
		t.Fatalf("get = %+v, ok=%v", got, ok)
	}

	closed, ok := s.Close("AAPL")
	if !ok || closed.Symbol != "AAPL" {
		t.Fatalf("close = %+v, ok=%v", closed, ok)
	}
	if s.Len() != 0 {
		t.Fatalf("store not empty after close")
	}
	if _, ok := s.Close("AAPL"); ok {
		t.Fatalf("double close must report missing")
	}
}

func TestPositionStoreRejectsSecondOpen(t *testing.T) {
	s := NewPositionStore()
	p := Position{Symbol: "AAPL", Direction: signal.Long, EntryPrice: 100}
	if err := s.Open(p); err != nil {
		t.Fatalf("open: %v", err)
	}
	p.Direction = signal.Short
	if err := s.Open(p); err == nil {
		t.Fatalf("second open for the same symbol must fail")
	}
}

func TestPositionStoreRejectsFlat(t *testing.T) {
	s := NewPositionStore()
	if err := s.Open(Position{Symbol: "AAPL", Direction: signal.Flat}); err == nil {
		t.Fatalf("flat position must be rejected")
	}
}
