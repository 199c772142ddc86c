// Package watchlist builds the ranked symbol universe the engine
// evaluates each cycle: S&P 500 constituents ordered by daily ATR.
package watchlist

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"vwapbot/pkg/indicator"
	"vwapbot/pkg/market"
)

// ConstituentsURL is the page the ticker universe is scraped from.
const ConstituentsURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Entry pairs a symbol with its volatility estimate. The estimate may
// be stale between refreshes.
type Entry struct {
	Symbol string
	ATR    float64
}

// Service scrapes the universe and ranks it by volatility.
type Service struct {
	provider  market.Provider
	http      *http.Client
	url       string
	atrPeriod int
	batchSize int
	pause     time.Duration
	logger    *zap.Logger
}

// NewService builds a watchlist service over the given data provider.
func NewService(provider market.Provider, logger *zap.Logger) *Service {
	return &Service{
		provider:  provider,
		http:      &http.Client{Timeout: 30 * time.Second},
		url:       ConstituentsURL,
		atrPeriod: indicator.DefaultATRPeriod,
		batchSize: 50,
		pause:     time.Second,
		logger:    logger,
	}
}

// Symbols scrapes the constituents table and returns ticker symbols in
// broker notation (BRK.B becomes BRK-B).
func (s *Service) Symbols() ([]string, error) {
	resp, err := s.http.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch constituents: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse constituents page: %w", err)
	}
	return ParseConstituents(doc), nil
}

// ParseConstituents extracts symbols from the first column of the
// constituents table.
func ParseConstituents(doc *goquery.Document) []string {
	var symbols []string
	doc.Find("table#constituents tbody tr").Each(func(i int, row *goquery.Selection) {
		sym := strings.TrimSpace(row.Find("td").First().Text())
		if sym == "" {
			return
		}
		symbols = append(symbols, strings.ReplaceAll(sym, ".", "-"))
	})
	return symbols
}

// ATR computes the current daily ATR estimate for one symbol over
// roughly three months of history. Used to lazily fill estimates for
// held symbols missing from the cached watchlist.
func (s *Service) ATR(symbol string) (float64, error) {
	bars, err := s.provider.GetBars(symbol, market.IntervalDay, 90)
	if err != nil {
		return 0, err
	}
	if len(bars) < s.atrPeriod+1 {
		return 0, fmt.Errorf("%s: %d daily bars, need %d: %w",
			symbol, len(bars), s.atrPeriod+1, market.ErrNoData)
	}
	return indicator.ATR(bars, s.atrPeriod), nil
}

// Refresh scrapes the universe, computes the ATR for every symbol in
// batches, and returns the topN most volatile names in descending
// order. Symbols whose data is unavailable are skipped, not fatal.
func (s *Service) Refresh(topN int) ([]Entry, error) {
	symbols, err := s.Symbols()
	if err != nil {
		return nil, err
	}
	s.logger.Info("scanning universe",
		zap.Int("symbols", len(symbols)), zap.Int("batch_size", s.batchSize))

	var entries []Entry
	for start := 0; start < len(symbols); start += s.batchSize {
		end := start + s.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		for _, sym := range symbols[start:end] {
			atr, err := s.ATR(sym)
			if err != nil {
				s.logger.Warn("skipping symbol", zap.String("symbol", sym), zap.Error(err))
				continue
			}
			entries = append(entries, Entry{Symbol: sym, ATR: atr})
		}
		if end < len(symbols) {
			time.Sleep(s.pause)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ATR > entries[j].ATR })
	if len(entries) > topN {
		entries = entries[:topN]
	}
	s.logger.Info("watchlist refreshed", zap.Int("entries", len(entries)))
	return entries, nil
}
