// Package broker defines the trading boundary and its Alpaca
// implementation. All calls are synchronous and authoritative; the
// engine does not model partial fills.
package broker

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Broker is the surface the execution loop trades through.
type Broker interface {
	// SubmitOrder places a market order and returns the broker order ID.
	SubmitOrder(symbol string, qty float64, side Side) (string, error)
	// Positions returns the signed open quantity per held symbol.
	Positions() (map[string]float64, error)
	// Equity returns current account equity in dollars.
	Equity() (float64, error)
}
