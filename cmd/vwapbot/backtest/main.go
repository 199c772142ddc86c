// Backtest CLI: fetches intraday history for one symbol, replays the
// VWAP/SMA crossover signals into a trade ledger, and prints the
// portfolio statistics as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"vwapbot/pkg/backtest"
	"vwapbot/pkg/config"
	"vwapbot/pkg/indicator"
	"vwapbot/pkg/market"
	"vwapbot/pkg/portfolio"
	"vwapbot/pkg/signal"
)

func main() {
	symbol := flag.String("symbol", "SPY", "ticker symbol to backtest")
	days := flag.Int("days", 10, "calendar days of 5-minute history")
	window := flag.Int("window", indicator.DefaultSMAWindow, "intraday SMA window")
	verbose := flag.Bool("v", false, "log every entry and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		log.Fatalf("missing credentials: %v", err)
	}

	logger := zap.Must(zap.NewProduction())
	if *verbose {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	provider := market.NewAlpacaProvider(creds.APIKey, creds.APISecret, logger)
	bars, err := provider.GetBars(*symbol, market.Interval5Min, *days)
	if err != nil {
		logger.Fatal("bar fetch failed", zap.String("symbol", *symbol), zap.Error(err))
	}
	bars = market.RegularHours(bars, market.DefaultSession())

	vwap := indicator.VWAP(bars)
	sma := indicator.IntradaySMA(bars, *window)
	points := signal.Generate(market.Closes(bars), vwap, sma)

	result := backtest.Run(*symbol, bars, points, logger)
	stats, ok := portfolio.Analyze(result.Trades, result.TradePnL, result.CumulativePnL)
	if !ok {
		fmt.Printf("%s: no trades over %d days\n", *symbol, *days)
		return
	}

	raw, err := json.Marshal(struct {
		Symbol string          `json:"symbol"`
		Bars   int             `json:"bars"`
		Stats  portfolio.Stats `json:"stats"`
	}{*symbol, len(bars), stats})
	if err != nil {
		logger.Fatal("marshal stats", zap.Error(err))
	}
	os.Stdout.Write(pretty.Pretty(raw))
}
