package engine

import (
	"fmt"
	"time"

	"vwapbot/pkg/signal"
)

// Position is one open directional holding tracked by the engine.
type Position struct {
	Symbol     string
	Direction  signal.State
	EntryPrice float64
	EntryTime  time.Time
}

// PositionStore owns the per-symbol ledger and enforces that at most
// one position exists per symbol. The engine mutates it from a single
// goroutine; a parallel engine would need to serialize access.
type PositionStore struct {
	open map[string]Position
}

// NewPositionStore returns an empty ledger.
func NewPositionStore() *PositionStore {
	return &PositionStore{open: make(map[string]Position)}
}

// Open records a new position. Opening a symbol that is already held
// is a programming error and is rejected.
func (s *PositionStore) Open(p Position) error {
	if _, exists := s.open[p.Symbol]; exists {
		return fmt.Errorf("position already open for %s", p.Symbol)
	}
	if p.Direction == signal.Flat {
		return fmt.Errorf("cannot open flat position for %s", p.Symbol)
	}
	s.open[p.Symbol] = p
	return nil
}

// Close removes and returns the position for symbol.
func (s *PositionStore) Close(symbol string) (Position, bool) {
	p, ok := s.open[symbol]
	if ok {
		delete(s.open, symbol)
	}
	return p, ok
}

// Get returns the open position for symbol, if any.
func (s *PositionStore) Get(symbol string) (Position, bool) {
	p, ok := s.open[symbol]
	return p, ok
}

// Len returns the number of open positions.
func (s *PositionStore) Len() int { return len(s.open) }
