package market

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"
)

// AlpacaProvider fetches bar history from the Alpaca market data API.
type AlpacaProvider struct {
	client *marketdata.Client
	feed   marketdata.Feed
	logger *zap.Logger
}

// NewAlpacaProvider builds a provider on the given credentials. The IEX
// feed is used so paper accounts work without a SIP entitlement.
func NewAlpacaProvider(apiKey, apiSecret string, logger *zap.Logger) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		feed:   marketdata.IEX,
		logger: logger,
	}
}

func (p *AlpacaProvider) timeframe(interval Interval) marketdata.TimeFrame {
	switch interval {
	case Interval5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case IntervalHour:
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// GetBars returns up to daysBack calendar days of history for symbol at
// the requested interval. An empty venue response maps to ErrNoData.
func (p *AlpacaProvider) GetBars(symbol string, interval Interval, daysBack int) ([]Bar, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -daysBack)

	raw, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: p.timeframe(interval),
		Start:     start,
		End:       end,
		Feed:      p.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("get %s bars for %s: %w", interval, symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s %s bars: %w", symbol, interval, ErrNoData)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	p.logger.Debug("fetched bars",
		zap.String("symbol", symbol),
		zap.String("interval", interval.String()),
		zap.Int("count", len(bars)))
	return bars, nil
}

// RegularHours drops bars outside the 09:30-15:30 ET session so the
// intraday indicators only see regular-session volume.
func RegularHours(bars []Bar, session Session) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		et := b.Timestamp.In(Eastern)
		if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
			continue
		}
		if within(b.Timestamp, session.MarketOpen, session.MarketClose) {
			out = append(out, b)
		}
	}
	return out
}
