// Package signal turns a close/VWAP/SMA series into long, short, and
// flat position intents.
//
// Entries are crossover events: the previous bar must sit at or below
// (above, for shorts) at least one indicator, and the current bar must
// clear both. Exits fire when either indicator is breached, so exits
// trigger faster than entries. Direct long/short flips are impossible;
// the state always passes through flat.
package signal

// State is the position the state machine currently holds.
type State int

const (
	Flat  State = 0
	Long  State = 1
	Short State = -1
)

func (s State) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "flat"
}

// Inputs are the per-bar values a transition is decided on.
type Inputs struct {
	Close float64
	VWAP  float64
	SMA   float64
}

// Next applies one bar to the state machine and returns the new state
// plus the emitted signal (+1 long entry, -1 short entry, 0 otherwise).
// Any NaN among the inputs fails every comparison, so undefined
// indicators can never produce a transition.
func Next(state State, prev, curr Inputs) (State, int) {
	switch {
	case state == Flat &&
		(prev.Close <= prev.VWAP || prev.Close <= prev.SMA) &&
		curr.Close > curr.VWAP && curr.Close > curr.SMA:
		return Long, 1

	case state == Long && (curr.Close < curr.VWAP || curr.Close < curr.SMA):
		return Flat, 0

	case state == Flat &&
		(prev.Close >= prev.VWAP || prev.Close >= prev.SMA) &&
		curr.Close < curr.VWAP && curr.Close < curr.SMA:
		return Short, -1

	case state == Short && (curr.Close > curr.VWAP || curr.Close > curr.SMA):
		return Flat, 0
	}
	return state, 0
}

// Point is the per-bar output of a full series pass.
type Point struct {
	Signal   int
	Position State
}

// Generate runs the state machine over aligned close/vwap/sma series.
// The first bar has no previous bar and is always flat with signal 0.
func Generate(closes, vwap, sma []float64) []Point {
	out := make([]Point, len(closes))
	state := Flat
	for i := 1; i < len(closes); i++ {
		prev := Inputs{Close: closes[i-1], VWAP: vwap[i-1], SMA: sma[i-1]}
		curr := Inputs{Close: closes[i], VWAP: vwap[i], SMA: sma[i]}
		next, sig := Next(state, prev, curr)
		state = next
		out[i] = Point{Signal: sig, Position: state}
	}
	return out
}
