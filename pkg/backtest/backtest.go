// Package backtest replays a signal-annotated bar series into a trade
// ledger with running PnL. It shares the flat/long/short semantics of
// the live loop: a position opens on a +/-1 signal while flat and
// closes on the next 0 signal, at the bar close either way.
//
// The replay only knows the signal column; the live loop's ATR stop and
// target exits have no counterpart here. That divergence is deliberate.
package backtest

import (
	"time"

	"go.uber.org/zap"

	"vwapbot/pkg/market"
	"vwapbot/pkg/signal"
)

// Trade is one closed entry-to-exit round trip. PnL is per share and
// directionally signed; HoldingBars is the bar-index distance between
// entry and exit.
type Trade struct {
	Symbol      string
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Direction   signal.State
	PnL         float64
	HoldingBars int
}

// Result carries the trade ledger plus per-bar PnL series aligned to
// the input bars. CumulativePnL carries the last value forward on bars
// with no closing trade.
type Result struct {
	Trades        []Trade
	TradePnL      []float64
	CumulativePnL []float64
}

// Run replays signals over bars. The two slices must be aligned; bars
// beyond the signal series are ignored.
func Run(symbol string, bars []market.Bar, points []signal.Point, logger *zap.Logger) Result {
	n := len(bars)
	if len(points) < n {
		n = len(points)
	}
	res := Result{
		TradePnL:      make([]float64, n),
		CumulativePnL: make([]float64, n),
	}

	state := signal.Flat
	var entryPrice float64
	var entryTime time.Time
	entryIdx := -1
	var cumulative float64

	for i := 0; i < n; i++ {
		sig := points[i].Signal
		price := bars[i].Close
		ts := bars[i].Timestamp

		switch {
		case sig == 1 && state == signal.Flat:
			state = signal.Long
			entryPrice = price
			entryTime = ts
			entryIdx = i
			logger.Debug("long entry", zap.String("symbol", symbol),
				zap.Time("time", ts), zap.Float64("price", price))

		case sig == -1 && state == signal.Flat:
			state = signal.Short
			entryPrice = price
			entryTime = ts
			entryIdx = i
			logger.Debug("short entry", zap.String("symbol", symbol),
				zap.Time("time", ts), zap.Float64("price", price))

		case sig == 0 && state != signal.Flat:
			pnl := price - entryPrice
			if state == signal.Short {
				pnl = entryPrice - price
			}
			res.Trades = append(res.Trades, Trade{
				Symbol:      symbol,
				EntryTime:   entryTime,
				ExitTime:    ts,
				EntryPrice:  entryPrice,
				ExitPrice:   price,
				Direction:   state,
				PnL:         pnl,
				HoldingBars: i - entryIdx,
			})
			res.TradePnL[i] = pnl
			cumulative += pnl
			logger.Debug("exit", zap.String("symbol", symbol),
				zap.String("direction", state.String()),
				zap.Time("time", ts), zap.Float64("price", price),
				zap.Float64("pnl", pnl))
			state = signal.Flat
			entryPrice = 0
			entryIdx = -1
		}
		res.CumulativePnL[i] = cumulative
	}
	return res
}
