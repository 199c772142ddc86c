// Package engine runs the live trading loop: once per cycle it walks
// every tracked symbol, evaluates protective exits before fresh
// signals, applies the entry filters, and turns accepted signals into
// broker orders while maintaining the position ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"vwapbot/pkg/broker"
	"vwapbot/pkg/config"
	"vwapbot/pkg/heartbeat"
	"vwapbot/pkg/indicator"
	"vwapbot/pkg/market"
	"vwapbot/pkg/risk"
	"vwapbot/pkg/signal"
	"vwapbot/pkg/tradelog"
	"vwapbot/pkg/watchlist"
)

// WatchlistSource supplies the ranked universe and lazy volatility
// estimates for symbols outside it.
type WatchlistSource interface {
	Refresh(topN int) ([]watchlist.Entry, error)
	ATR(symbol string) (float64, error)
}

// TradeLogger receives one record per order intent.
type TradeLogger interface {
	Append(r tradelog.Record) error
}

// Deps wires the engine's collaborators. Clock and Sleep default to
// the wall clock when nil.
type Deps struct {
	Broker        broker.Broker
	Data          market.Provider
	Watchlist     WatchlistSource
	TradeLog      TradeLogger
	Strategy      config.Strategy
	Session       market.Session
	HeartbeatPath string
	Clock         Clock
	Sleep         Sleeper
	Logger        *zap.Logger
}

// Engine is the single-threaded execution loop.
type Engine struct {
	broker        broker.Broker
	data          market.Provider
	watchlist     WatchlistSource
	tradeLog      TradeLogger
	strategy      config.Strategy
	session       market.Session
	heartbeatPath string
	clock         Clock
	sleep         Sleeper
	logger        *zap.Logger

	positions   *PositionStore
	watch       []watchlist.Entry
	atrCache    map[string]float64
	lastRefresh time.Time
}

// New builds an engine from its dependencies.
func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Sleep == nil {
		d.Sleep = DefaultSleeper
	}
	return &Engine{
		broker:        d.Broker,
		data:          d.Data,
		watchlist:     d.Watchlist,
		tradeLog:      d.TradeLog,
		strategy:      d.Strategy,
		session:       d.Session,
		heartbeatPath: d.HeartbeatPath,
		clock:         d.Clock,
		sleep:         d.Sleep,
		logger:        d.Logger,
		positions:     NewPositionStore(),
		atrCache:      make(map[string]float64),
	}
}

// Positions exposes the ledger for inspection.
func (e *Engine) Positions() *PositionStore { return e.positions }

// Run drives cycles until the context is cancelled. The watchlist is
// rebuilt at startup and once per calendar day after the configured
// hour; a heartbeat is stamped every iteration whether or not the
// market is open.
func (e *Engine) Run(ctx context.Context) error {
	e.refreshWatchlist()
	e.lastRefresh = e.clock.Now()

	for {
		now := e.clock.Now()
		if err := heartbeat.Write(e.heartbeatPath, now); err != nil {
			e.logger.Warn("heartbeat write failed", zap.Error(err))
		}
		e.maybeRefreshWatchlist(now)

		interval := e.strategy.IdleInterval()
		if e.session.IsOpen(now) {
			e.Cycle(now)
			interval = e.strategy.CycleInterval()
		} else {
			e.logger.Info("market closed, sleeping",
				zap.Duration("interval", interval))
		}

		if !e.sleep(ctx, interval) {
			return ctx.Err()
		}
	}
}

func (e *Engine) refreshWatchlist() {
	entries, err := e.watchlist.Refresh(e.strategy.MaxPositions)
	if err != nil {
		e.logger.Error("watchlist refresh failed", zap.Error(err))
		return
	}
	e.watch = entries
	for _, entry := range entries {
		e.atrCache[entry.Symbol] = entry.ATR
	}
}

func (e *Engine) maybeRefreshWatchlist(now time.Time) {
	et := now.In(market.Eastern)
	last := e.lastRefresh.In(market.Eastern)
	sameDay := et.Year() == last.Year() && et.YearDay() == last.YearDay()
	if !sameDay && et.Hour() >= e.strategy.RefreshHour {
		e.refreshWatchlist()
		e.lastRefresh = now
	}
}

// Cycle processes every tracked symbol once: the watchlist union the
// symbols currently held at the broker. A failure in one symbol is
// logged and never aborts the rest of the cycle.
func (e *Engine) Cycle(now time.Time) {
	equity, err := e.broker.Equity()
	if err != nil {
		e.logger.Error("equity fetch failed", zap.Error(err))
		return
	}
	held, err := e.broker.Positions()
	if err != nil {
		e.logger.Error("position fetch failed", zap.Error(err))
		return
	}
	e.logger.Info("cycle start",
		zap.Float64("equity", equity),
		zap.Int("held", len(held)),
		zap.Int("watchlist", len(e.watch)))

	for _, symbol := range e.trackedSymbols(held) {
		atr, ok := e.symbolATR(symbol)
		if !ok {
			e.logger.Warn("no volatility estimate, skipping",
				zap.String("symbol", symbol))
			continue
		}
		e.runSymbol(symbol, atr, equity, held[symbol], now)
	}
}

// trackedSymbols returns the watchlist in rank order followed by any
// held symbols missing from it, sorted for determinism.
func (e *Engine) trackedSymbols(held map[string]float64) []string {
	seen := make(map[string]bool, len(e.watch)+len(held))
	symbols := make([]string, 0, len(e.watch)+len(held))
	for _, entry := range e.watch {
		seen[entry.Symbol] = true
		symbols = append(symbols, entry.Symbol)
	}
	extra := make([]string, 0, len(held))
	for sym := range held {
		if !seen[sym] {
			extra = append(extra, sym)
		}
	}
	sort.Strings(extra)
	return append(symbols, extra...)
}

// symbolATR returns the cached estimate or computes one lazily for a
// held symbol that fell out of the watchlist.
func (e *Engine) symbolATR(symbol string) (float64, bool) {
	if atr, ok := e.atrCache[symbol]; ok && !math.IsNaN(atr) {
		return atr, true
	}
	atr, err := e.watchlist.ATR(symbol)
	if err != nil || math.IsNaN(atr) {
		return 0, false
	}
	e.atrCache[symbol] = atr
	return atr, true
}

// runSymbol isolates one symbol's processing: errors are logged and a
// panic in indicator math cannot take down the loop.
func (e *Engine) runSymbol(symbol string, atr, equity, heldQty float64, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("symbol processing panicked",
				zap.String("symbol", symbol), zap.Any("panic", r))
		}
	}()
	if err := e.processSymbol(symbol, atr, equity, heldQty, now); err != nil {
		if errors.Is(err, market.ErrNoData) {
			e.logger.Debug("no data", zap.String("symbol", symbol))
			return
		}
		e.logger.Error("symbol processing failed",
			zap.String("symbol", symbol), zap.Error(err))
	}
}

func (e *Engine) processSymbol(symbol string, atr, equity, heldQty float64, now time.Time) error {
	bars, err := e.data.GetBars(symbol, market.Interval5Min, e.strategy.DataDays)
	if err != nil {
		return err
	}
	bars = market.RegularHours(bars, e.session)
	if len(bars) == 0 {
		return fmt.Errorf("%s: no regular-session bars: %w", symbol, market.ErrNoData)
	}

	vwap := indicator.VWAP(bars)
	sma := indicator.IntradaySMA(bars, e.strategy.SMAWindow)
	points := signal.Generate(market.Closes(bars), vwap, sma)

	last := len(bars) - 1
	latestSig := points[last].Signal
	latestClose := bars[last].Close
	latestVol := bars[last].Volume
	avgVol := indicator.RollingMean(market.Volumes(bars), e.strategy.VolumeWindow)[last]

	hourly, err := e.data.GetBars(symbol, market.IntervalHour, 5)
	if err != nil {
		return err
	}
	trendSMA := indicator.SMA(hourly, e.strategy.TrendSMAWindow)
	if math.IsNaN(trendSMA) {
		return nil
	}

	// Protective exits take priority over anything signal-driven.
	pos, havePos := e.positions.Get(symbol)
	if havePos {
		if reason, fired := risk.CheckExit(pos.Direction, pos.EntryPrice, latestClose, atr); fired {
			return e.closePosition(symbol, heldQty, latestClose, atr, string(reason), now)
		}
	}

	// Signal-driven exit. Exits are never gated by the trade window or
	// the liquidity filter.
	if latestSig == 0 && (havePos || heldQty != 0) {
		return e.closePosition(symbol, heldQty, latestClose, atr, "exit", now)
	}
	if havePos {
		return nil
	}

	// Entry gates.
	if !e.session.IsTradeTime(now) {
		return nil
	}
	if latestVol < e.strategy.VolumeRatio*avgVol {
		return nil
	}

	switch {
	case latestSig == 1 && latestClose > trendSMA:
		if heldQty > 0 {
			return nil
		}
		qty := risk.Quantity(equity, e.strategy.RiskPerTrade, atr)
		if qty <= 0 {
			return nil
		}
		return e.openPosition(symbol, signal.Long, qty, latestClose, atr, now)

	case latestSig == -1 && latestClose < trendSMA:
		if heldQty < 0 {
			return nil
		}
		qty, ok := risk.ShortQuantity(equity, e.strategy.RiskPerTrade, atr)
		if !ok {
			return nil
		}
		return e.openPosition(symbol, signal.Short, qty, latestClose, atr, now)
	}
	return nil
}

func (e *Engine) openPosition(symbol string, direction signal.State, qty, price, atr float64, now time.Time) error {
	side := broker.Buy
	if direction == signal.Short {
		side = broker.Sell
	}
	if _, err := e.broker.SubmitOrder(symbol, qty, side); err != nil {
		return err
	}
	if err := e.positions.Open(Position{
		Symbol:     symbol,
		Direction:  direction,
		EntryPrice: price,
		EntryTime:  now,
	}); err != nil {
		return err
	}
	e.logTrade(symbol, string(side), qty, price, "entry", atr, now)
	e.logger.Info("entered position",
		zap.String("symbol", symbol),
		zap.String("direction", direction.String()),
		zap.Float64("qty", qty),
		zap.Float64("price", price))
	return nil
}

// closePosition flattens whatever the broker reports for symbol and
// drops the ledger entry. When the broker shows nothing (fill lag, or
// a position opened outside this process) only the ledger is cleaned.
func (e *Engine) closePosition(symbol string, heldQty, price, atr float64, event string, now time.Time) error {
	qty := math.Abs(heldQty)
	side := broker.Sell
	if heldQty < 0 {
		side = broker.Buy
	}
	if heldQty == 0 {
		if pos, ok := e.positions.Get(symbol); ok && pos.Direction == signal.Short {
			side = broker.Buy
		}
	}

	if qty > 0 {
		if _, err := e.broker.SubmitOrder(symbol, qty, side); err != nil {
			return err
		}
		e.logTrade(symbol, string(side), qty, price, event, atr, now)
	} else {
		e.logger.Warn("ledger position with no broker quantity",
			zap.String("symbol", symbol), zap.String("event", event))
	}

	if _, ok := e.positions.Close(symbol); ok {
		e.logger.Info("closed position",
			zap.String("symbol", symbol),
			zap.String("event", event),
			zap.Float64("price", price))
	}
	return nil
}

func (e *Engine) logTrade(symbol, side string, qty, price float64, event string, atr float64, now time.Time) {
	err := e.tradeLog.Append(tradelog.Record{
		Timestamp: now,
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		Price:     price,
		EventType: event,
		ATR:       atr,
	})
	if err != nil {
		e.logger.Warn("trade log append failed",
			zap.String("symbol", symbol), zap.Error(err))
	}
}
