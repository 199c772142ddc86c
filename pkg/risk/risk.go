// Package risk sizes orders from a risk budget and decides when an
// ATR stop or target should close an open position.
package risk

import (
	"math"

	"vwapbot/pkg/signal"
)

const (
	// StopMultiple is the ATR multiple the stop sits below (above,
	// for shorts) the entry price. The same multiple anchors sizing.
	StopMultiple = 1.5
	// TargetMultiple is the ATR multiple at which profit is taken.
	TargetMultiple = 2.5
)

// Quantity returns the position size for a long entry:
// dollar risk (equity x riskFraction) divided by the stop distance.
// Zero or NaN volatility yields 0, which callers treat as no entry.
func Quantity(equity, riskFraction, atr float64) float64 {
	stopDistance := StopMultiple * atr
	if stopDistance <= 0 || math.IsNaN(stopDistance) {
		return 0
	}
	return equity * riskFraction / stopDistance
}

// ShortQuantity floors the risk-budget size to whole shares. The ok
// result is false when fewer than one share fits the budget; fractional
// shorting is not allowed.
func ShortQuantity(equity, riskFraction, atr float64) (float64, bool) {
	qty := Quantity(equity, riskFraction, atr)
	if qty < 1 || math.IsNaN(qty) {
		return 0, false
	}
	return math.Floor(qty), true
}

// ExitReason labels why a protective exit fired.
type ExitReason string

const (
	StopLoss   ExitReason = "stop_loss"
	TakeProfit ExitReason = "take_profit"
)

// CheckExit evaluates the stop and target against the latest close,
// stop first. The ATR is the current estimate, not the entry-time one.
// No exit fires for a flat direction or NaN inputs.
func CheckExit(direction signal.State, entryPrice, close, atr float64) (ExitReason, bool) {
	switch direction {
	case signal.Long:
		if close <= entryPrice-StopMultiple*atr {
			return StopLoss, true
		}
		if close >= entryPrice+TargetMultiple*atr {
			return TakeProfit, true
		}
	case signal.Short:
		if close >= entryPrice+StopMultiple*atr {
			return StopLoss, true
		}
		if close <= entryPrice-TargetMultiple*atr {
			return TakeProfit, true
		}
	}
	return "", false
}
