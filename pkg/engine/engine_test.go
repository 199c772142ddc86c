package engine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"vwapbot/pkg/broker"
	"vwapbot/pkg/config"
	"vwapbot/pkg/market"
	"vwapbot/pkg/signal"
	"vwapbot/pkg/tradelog"
	"vwapbot/pkg/watchlist"
)

type submittedOrder struct {
	Symbol string
	Qty    float64
	Side   broker.Side
}

type fakeBroker struct {
	equity    float64
	positions map[string]float64
	orders    []submittedOrder
}

func (f *fakeBroker) SubmitOrder(symbol string, qty float64, side broker.Side) (string, error) {
	f.orders = append(f.orders, submittedOrder{symbol, qty, side})
	return "order-1", nil
}

func (f *fakeBroker) Positions() (map[string]float64, error) {
	out := make(map[string]float64, len(f.positions))
	for k, v := range f.positions {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBroker) Equity() (float64, error) { return f.equity, nil }

type fakeData struct {
	intraday map[string][]market.Bar
	hourly   map[string][]market.Bar
	fail     map[string]error
}

func (f *fakeData) GetBars(symbol string, interval market.Interval, daysBack int) ([]market.Bar, error) {
	if err := f.fail[symbol]; err != nil {
		return nil, err
	}
	switch interval {
	case market.Interval5Min:
		return f.intraday[symbol], nil
	case market.IntervalHour:
		return f.hourly[symbol], nil
	}
	return nil, market.ErrNoData
}

type fakeWatchlist struct {
	entries   []watchlist.Entry
	atrs      map[string]float64
	refreshes int
}

func (f *fakeWatchlist) Refresh(topN int) ([]watchlist.Entry, error) {
	f.refreshes++
	return f.entries, nil
}

func (f *fakeWatchlist) ATR(symbol string) (float64, error) {
	atr, ok := f.atrs[symbol]
	if !ok {
		return 0, market.ErrNoData
	}
	return atr, nil
}

type fakeTradeLog struct {
	records []tradelog.Record
}

func (f *fakeTradeLog) Append(r tradelog.Record) error {
	f.records = append(f.records, r)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func tradeHour() time.Time {
	return time.Date(2025, 6, 2, 13, 0, 0, 0, market.Eastern)
}

func intradayBar(minOffset int, close, volume float64) market.Bar {
	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, market.Eastern).Add(time.Duration(minOffset) * time.Minute)
	return market.Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func hourlyFlat(n int, close float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		ts := time.Date(2025, 6, 2, 10+i, 0, 0, 0, market.Eastern)
		bars[i] = market.Bar{Timestamp: ts, Close: close}
	}
	return bars
}

// longEntryBars produce a long crossover on the final bar with the
// liquidity filter satisfied (SMA and volume windows of 2).
func longEntryBars() []market.Bar {
	return []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 101, 300),
	}
}

func testStrategy() config.Strategy {
	s := config.Default().Strategy
	s.SMAWindow = 2
	s.VolumeWindow = 2
	s.TrendSMAWindow = 2
	return s
}

func newTestEngine(t *testing.T, b *fakeBroker, d *fakeData, w *fakeWatchlist, l *fakeTradeLog) *Engine {
	t.Helper()
	return New(Deps{
		Broker:        b,
		Data:          d,
		Watchlist:     w,
		TradeLog:      l,
		Strategy:      testStrategy(),
		Session:       market.DefaultSession(),
		HeartbeatPath: filepath.Join(t.TempDir(), "heartbeat.txt"),
		Clock:         fixedClock{tradeHour()},
		Logger:        zap.NewNop(),
	})
}

func seedWatch(e *Engine, entries ...watchlist.Entry) {
	e.watch = entries
	for _, entry := range entries {
		e.atrCache[entry.Symbol] = entry.ATR
	}
}

func TestCycleAcceptsLongEntry(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": longEntryBars()},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 100)},
	}
	w := &fakeWatchlist{}
	l := &fakeTradeLog{}
	e := newTestEngine(t, b, d, w, l)
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})

	e.Cycle(tradeHour())

	if len(b.orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(b.orders))
	}
	order := b.orders[0]
	if order.Side != broker.Buy || order.Symbol != "AAPL" {
		t.Fatalf("unexpected order %+v", order)
	}
	// equity x risk / (1.5 x ATR) = 1000 / 3
	if math.Abs(order.Qty-1000.0/3.0) > 1e-9 {
		t.Fatalf("qty = %v, want %v", order.Qty, 1000.0/3.0)
	}

	pos, ok := e.Positions().Get("AAPL")
	if !ok || pos.Direction != signal.Long || pos.EntryPrice != 101 {
		t.Fatalf("ledger not updated: %+v ok=%v", pos, ok)
	}
	if len(l.records) != 1 || l.records[0].EventType != "entry" {
		t.Fatalf("trade log: %+v", l.records)
	}
}

func TestCycleShortEntryFloorsQuantity(t *testing.T) {
	bars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 97, 300),
	}
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"XOM": bars},
		hourly:   map[string][]market.Bar{"XOM": hourlyFlat(2, 100)},
	}
	l := &fakeTradeLog{}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, l)
	seedWatch(e, watchlist.Entry{Symbol: "XOM", ATR: 2})

	e.Cycle(tradeHour())

	if len(b.orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(b.orders))
	}
	order := b.orders[0]
	if order.Side != broker.Sell || order.Qty != 333 {
		t.Fatalf("short must floor to whole shares: %+v", order)
	}
	pos, _ := e.Positions().Get("XOM")
	if pos.Direction != signal.Short {
		t.Fatalf("ledger direction = %v", pos.Direction)
	}
}

func TestCycleShortSkippedBelowOneShare(t *testing.T) {
	bars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 97, 300),
	}
	b := &fakeBroker{equity: 100, positions: map[string]float64{}} // budget < 1 share
	d := &fakeData{
		intraday: map[string][]market.Bar{"XOM": bars},
		hourly:   map[string][]market.Bar{"XOM": hourlyFlat(2, 100)},
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e, watchlist.Entry{Symbol: "XOM", ATR: 2})

	e.Cycle(tradeHour())
	if len(b.orders) != 0 {
		t.Fatalf("fractional short must be skipped, got %+v", b.orders)
	}
}

func TestStopLossFiresBeforeSignalExit(t *testing.T) {
	// Ledger long from 100 with ATR 2; price at 96 is through the
	// stop. The latest signal is also flat, so the event type proves
	// the stop path ran first.
	bars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 97, 100),
		intradayBar(10, 96, 100),
	}
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{"AAPL": 10}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": bars},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 100)},
	}
	l := &fakeTradeLog{}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, l)
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})
	if err := e.Positions().Open(Position{Symbol: "AAPL", Direction: signal.Long, EntryPrice: 100}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	e.Cycle(tradeHour())

	if len(b.orders) != 1 {
		t.Fatalf("expected 1 closing order, got %d", len(b.orders))
	}
	if b.orders[0].Side != broker.Sell || b.orders[0].Qty != 10 {
		t.Fatalf("closing order %+v", b.orders[0])
	}
	if len(l.records) != 1 || l.records[0].EventType != "stop_loss" {
		t.Fatalf("expected stop_loss event, got %+v", l.records)
	}
	if _, ok := e.Positions().Get("AAPL"); ok {
		t.Fatalf("ledger entry must be removed after stop")
	}
}

func TestTakeProfitClosesShort(t *testing.T) {
	// Short from 100, ATR 2: target is 95.
	bars := []market.Bar{
		intradayBar(0, 96, 100),
		intradayBar(5, 95, 100),
		intradayBar(10, 94, 100),
	}
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{"XOM": -5}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"XOM": bars},
		hourly:   map[string][]market.Bar{"XOM": hourlyFlat(2, 100)},
	}
	l := &fakeTradeLog{}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, l)
	seedWatch(e, watchlist.Entry{Symbol: "XOM", ATR: 2})
	if err := e.Positions().Open(Position{Symbol: "XOM", Direction: signal.Short, EntryPrice: 100}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	e.Cycle(tradeHour())

	if len(b.orders) != 1 || b.orders[0].Side != broker.Buy || b.orders[0].Qty != 5 {
		t.Fatalf("expected buy-to-cover of 5, got %+v", b.orders)
	}
	if len(l.records) != 1 || l.records[0].EventType != "take_profit" {
		t.Fatalf("expected take_profit event, got %+v", l.records)
	}
}

func TestEntriesGatedByTradeWindowButExitsAreNot(t *testing.T) {
	earlyOpen := time.Date(2025, 6, 2, 9, 45, 0, 0, market.Eastern)

	// A would-be entry is suppressed outside the window.
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": longEntryBars()},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 100)},
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})
	e.Cycle(earlyOpen)
	if len(b.orders) != 0 {
		t.Fatalf("entry outside trade window must be skipped, got %+v", b.orders)
	}

	// A flat signal still closes an open position at 9:45.
	flatBars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 100, 100),
	}
	b2 := &fakeBroker{equity: 100_000, positions: map[string]float64{"MSFT": 7}}
	d2 := &fakeData{
		intraday: map[string][]market.Bar{"MSFT": flatBars},
		hourly:   map[string][]market.Bar{"MSFT": hourlyFlat(2, 100)},
	}
	l2 := &fakeTradeLog{}
	e2 := newTestEngine(t, b2, d2, &fakeWatchlist{}, l2)
	seedWatch(e2, watchlist.Entry{Symbol: "MSFT", ATR: 2})
	if err := e2.Positions().Open(Position{Symbol: "MSFT", Direction: signal.Long, EntryPrice: 99}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	e2.Cycle(earlyOpen)
	if len(b2.orders) != 1 || b2.orders[0].Side != broker.Sell {
		t.Fatalf("exit must run outside trade window, got %+v", b2.orders)
	}
	if len(l2.records) != 1 || l2.records[0].EventType != "exit" {
		t.Fatalf("expected exit event, got %+v", l2.records)
	}
}

func TestLiquidityFilterBlocksEntry(t *testing.T) {
	bars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 101, 100), // volume no higher than average
	}
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": bars},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 100)},
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})

	e.Cycle(tradeHour())
	if len(b.orders) != 0 {
		t.Fatalf("thin volume must block entry, got %+v", b.orders)
	}
}

func TestTrendFilterBlocksCounterTrendEntry(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": longEntryBars()},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 200)}, // close below hourly SMA
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})

	e.Cycle(tradeHour())
	if len(b.orders) != 0 {
		t.Fatalf("long below the hourly SMA must be skipped, got %+v", b.orders)
	}
}

func TestUndefinedTrendSMASkipsSymbol(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": longEntryBars()},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(1, 100)}, // too short for SMA
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e, watchlist.Entry{Symbol: "AAPL", ATR: 2})

	e.Cycle(tradeHour())
	if len(b.orders) != 0 {
		t.Fatalf("undefined trend filter must skip the symbol, got %+v", b.orders)
	}
}

func TestSymbolFailureDoesNotAbortCycle(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"GOOD": longEntryBars()},
		hourly:   map[string][]market.Bar{"GOOD": hourlyFlat(2, 100)},
		fail:     map[string]error{"BAD": errors.New("transport down")},
	}
	e := newTestEngine(t, b, d, &fakeWatchlist{}, &fakeTradeLog{})
	seedWatch(e,
		watchlist.Entry{Symbol: "BAD", ATR: 2},
		watchlist.Entry{Symbol: "GOOD", ATR: 2})

	e.Cycle(tradeHour())
	if len(b.orders) != 1 || b.orders[0].Symbol != "GOOD" {
		t.Fatalf("failure in one symbol must not block others: %+v", b.orders)
	}
}

func TestMissingVolatilitySkipsSymbol(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"AAPL": longEntryBars()},
		hourly:   map[string][]market.Bar{"AAPL": hourlyFlat(2, 100)},
	}
	w := &fakeWatchlist{atrs: map[string]float64{}} // lazy lookup fails too
	e := newTestEngine(t, b, d, w, &fakeTradeLog{})
	e.watch = []watchlist.Entry{{Symbol: "AAPL", ATR: math.NaN()}}

	e.Cycle(tradeHour())
	if len(b.orders) != 0 {
		t.Fatalf("symbol without ATR must be skipped entirely, got %+v", b.orders)
	}
}

func TestHeldSymbolOutsideWatchlistIsTracked(t *testing.T) {
	// MSFT is held at the broker but absent from the watchlist; its
	// ATR comes from the lazy lookup and its flat signal closes it.
	flatBars := []market.Bar{
		intradayBar(0, 100, 100),
		intradayBar(5, 100, 100),
		intradayBar(10, 100, 100),
	}
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{"MSFT": 4}}
	d := &fakeData{
		intraday: map[string][]market.Bar{"MSFT": flatBars},
		hourly:   map[string][]market.Bar{"MSFT": hourlyFlat(2, 100)},
	}
	w := &fakeWatchlist{atrs: map[string]float64{"MSFT": 2}}
	l := &fakeTradeLog{}
	e := newTestEngine(t, b, d, w, l)

	e.Cycle(tradeHour())
	if len(b.orders) != 1 || b.orders[0].Symbol != "MSFT" || b.orders[0].Side != broker.Sell {
		t.Fatalf("held symbol must be flattened on flat signal: %+v", b.orders)
	}
}

func TestRunStampsHeartbeatAndStopsOnCancel(t *testing.T) {
	b := &fakeBroker{equity: 100_000, positions: map[string]float64{}}
	d := &fakeData{}
	w := &fakeWatchlist{}
	hbPath := filepath.Join(t.TempDir(), "heartbeat.txt")

	// Before the open, so Run only stamps the heartbeat.
	closed := time.Date(2025, 6, 2, 8, 0, 0, 0, market.Eastern)
	sleeps := 0
	e := New(Deps{
		Broker:        b,
		Data:          d,
		Watchlist:     w,
		TradeLog:      &fakeTradeLog{},
		Strategy:      testStrategy(),
		Session:       market.DefaultSession(),
		HeartbeatPath: hbPath,
		Clock:         fixedClock{closed},
		Sleep: func(ctx context.Context, _ time.Duration) bool {
			sleeps++
			return sleeps < 3
		},
		Logger: zap.NewNop(),
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sleeps != 3 {
		t.Fatalf("expected 3 iterations, got %d", sleeps)
	}
	if w.refreshes != 1 {
		t.Fatalf("watchlist must refresh once at startup, got %d", w.refreshes)
	}
	if _, err := os.Stat(hbPath); err != nil {
		t.Fatalf("heartbeat not written: %v", err)
	}
}
