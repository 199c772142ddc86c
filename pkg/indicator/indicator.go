// Package indicator computes the per-bar technical indicators the
// signal engine consumes. VWAP and the intraday SMA reset at each
// calendar-day boundary; undefined values are NaN, never errors.
package indicator

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"vwapbot/pkg/market"
)

// DefaultSMAWindow is the intraday moving-average window in bars.
const DefaultSMAWindow = 20

// DefaultATRPeriod is the daily ATR lookback used for sizing and stops.
const DefaultATRPeriod = 14

func dayOf(t time.Time) (int, time.Month, int) {
	return t.In(market.Eastern).Date()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := dayOf(a)
	by, bm, bd := dayOf(b)
	return ay == by && am == bm && ad == bd
}

// VWAP returns the volume-weighted average price series, cumulative
// within each calendar day. Bars with zero cumulative volume since the
// day start produce NaN.
func VWAP(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	var cumTPV, cumVol float64
	for i, b := range bars {
		if i == 0 || !sameDay(bars[i-1].Timestamp, b.Timestamp) {
			cumTPV, cumVol = 0, 0
		}
		typical := (b.High + b.Low + b.Close) / 3
		cumTPV += typical * b.Volume
		cumVol += b.Volume
		if cumVol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumTPV / cumVol
	}
	return out
}

// IntradaySMA returns the rolling mean of close over window bars,
// restarting at each day boundary. The first window-1 bars of every day
// are NaN so no value ever spans two sessions.
func IntradaySMA(bars []market.Bar, window int) []float64 {
	out := make([]float64, len(bars))
	dayStart := 0
	var sum float64
	for i, b := range bars {
		if i == 0 || !sameDay(bars[i-1].Timestamp, b.Timestamp) {
			dayStart = i
			sum = 0
		}
		sum += b.Close
		have := i - dayStart + 1
		if have < window {
			out[i] = math.NaN()
			continue
		}
		if have > window {
			sum -= bars[i-window].Close
		}
		out[i] = sum / float64(window)
	}
	return out
}

// ATR returns the latest average true range over period bars, or NaN
// when the series is too short. Daily bars give the volatility estimate
// used for sizing and stop distances.
func ATR(bars []market.Bar, period int) float64 {
	if len(bars) < period+1 {
		return math.NaN()
	}
	atr := talib.Atr(market.Highs(bars), market.Lows(bars), market.Closes(bars), period)
	return atr[len(atr)-1]
}

// SMA returns the latest plain (not day-scoped) simple moving average
// of the close series, or NaN when fewer than window bars exist. Used
// for the higher-timeframe trend filter.
func SMA(bars []market.Bar, window int) float64 {
	if len(bars) < window {
		return math.NaN()
	}
	sma := talib.Sma(market.Closes(bars), window)
	return sma[len(sma)-1]
}

// RollingMean returns the trailing mean of vals over window elements;
// positions with fewer than window samples are NaN.
func RollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= window {
			sum -= vals[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}
