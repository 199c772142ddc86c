package market

import "time"

// Eastern is the exchange time zone every session decision is made in.
var Eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("market: load America/New_York: " + err.Error())
	}
	return loc
}

// ClockTime is a time-of-day in the exchange time zone.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) minutes() int { return c.Hour*60 + c.Minute }

// Session describes the market hours and the narrower window during
// which new entries are allowed.
type Session struct {
	MarketOpen  ClockTime
	MarketClose ClockTime
	TradeStart  ClockTime
	TradeEnd    ClockTime
}

// DefaultSession is the regular-hours equity session with entries
// restricted to 10:00-15:15 ET.
func DefaultSession() Session {
	return Session{
		MarketOpen:  ClockTime{9, 30},
		MarketClose: ClockTime{15, 30},
		TradeStart:  ClockTime{10, 0},
		TradeEnd:    ClockTime{15, 15},
	}
}

// IsOpen reports whether the market session contains the given instant.
func (s Session) IsOpen(now time.Time) bool {
	return within(now, s.MarketOpen, s.MarketClose)
}

// IsTradeTime reports whether new entries may be evaluated at the
// given instant. Exits are not restricted by this window.
func (s Session) IsTradeTime(now time.Time) bool {
	return within(now, s.TradeStart, s.TradeEnd)
}

func within(now time.Time, start, end ClockTime) bool {
	et := now.In(Eastern)
	m := et.Hour()*60 + et.Minute()
	return m >= start.minutes() && m <= end.minutes()
}
