// Package market defines the bar data model and the boundary to the
// market-data provider feeding the trading engine.
package market

import (
	"errors"
	"time"
)

// ErrNoData marks an empty result from the data provider. Callers skip
// the affected symbol for the cycle; transport failures are returned as
// ordinary wrapped errors and handled separately.
var ErrNoData = errors.New("market: no data")

// Bar is one OHLCV sample for a fixed time interval.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Interval selects the bar timeframe requested from the provider.
type Interval int

const (
	Interval5Min Interval = iota
	IntervalHour
	IntervalDay
)

func (iv Interval) String() string {
	switch iv {
	case Interval5Min:
		return "5min"
	case IntervalHour:
		return "1hour"
	case IntervalDay:
		return "1day"
	}
	return "unknown"
}

// Provider supplies bar history for a symbol. Implementations return
// ErrNoData when the venue has no bars for the request.
type Provider interface {
	GetBars(symbol string, interval Interval, daysBack int) ([]Bar, error)
}

// Closes extracts the close series from a bar slice.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series from a bar slice.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series from a bar slice.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series from a bar slice.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
