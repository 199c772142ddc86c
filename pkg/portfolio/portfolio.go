// Package portfolio derives aggregate performance statistics from a
// closed-trade ledger and its per-bar PnL series.
package portfolio

import (
	"encoding/json"
	"math"

	"vwapbot/pkg/backtest"
)

// Stats summarizes a trade ledger. ProfitFactor is +Inf when no trade
// lost money.
type Stats struct {
	TotalPnL       float64 `json:"total_pnl"`
	NumTrades      int     `json:"num_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgPnLPerTrade float64 `json:"avg_pnl_per_trade"`
	StdPnL         float64 `json:"std_pnl"`
	AvgHoldingBars float64 `json:"avg_holding_period_bars"`
	ProfitFactor   float64 `json:"profit_factor"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
}

// MarshalJSON renders an infinite profit factor as the string "inf";
// encoding/json cannot represent it as a number.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	aux := struct {
		plain
		ProfitFactor interface{} `json:"profit_factor"`
	}{plain: plain(s), ProfitFactor: s.ProfitFactor}
	if math.IsInf(s.ProfitFactor, 1) {
		aux.ProfitFactor = "inf"
	}
	return json.Marshal(aux)
}

// Analyze computes statistics over the ledger. The ok result is false
// when there are no trades; callers must not read Stats in that case,
// an empty ledger is not the same as zero performance.
func Analyze(trades []backtest.Trade, tradePnL, cumulativePnL []float64) (Stats, bool) {
	if len(trades) == 0 {
		return Stats{}, false
	}

	var total, winSum, lossSum, holdSum float64
	wins := 0
	for _, t := range trades {
		total += t.PnL
		holdSum += float64(t.HoldingBars)
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else if t.PnL < 0 {
			lossSum += t.PnL
		}
	}

	n := float64(len(trades))
	mean := total / n

	// Population standard deviation of per-trade PnL; zero for a
	// single trade.
	var std float64
	if len(trades) > 1 {
		var ss float64
		for _, t := range trades {
			d := t.PnL - mean
			ss += d * d
		}
		std = math.Sqrt(ss / n)
	}

	profitFactor := math.Inf(1)
	if lossSum < 0 {
		profitFactor = winSum / math.Abs(lossSum)
	}

	return Stats{
		TotalPnL:       total,
		NumTrades:      len(trades),
		WinRate:        float64(wins) / n,
		AvgPnLPerTrade: mean,
		StdPnL:         std,
		AvgHoldingBars: holdSum / n,
		ProfitFactor:   profitFactor,
		SharpeRatio:    sharpe(tradePnL),
		MaxDrawdown:    maxDrawdown(cumulativePnL),
	}, true
}

// sharpe is mean over sample standard deviation of the per-bar PnL
// series, zero when the deviation is zero.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std
}

// maxDrawdown is the largest gap between the running peak of the
// cumulative PnL series and the series itself.
func maxDrawdown(cumulative []float64) float64 {
	var peak, worst float64
	peak = math.Inf(-1)
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > worst {
			worst = dd
		}
	}
	if len(cumulative) == 0 {
		return 0
	}
	return worst
}
