package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vwapbot/pkg/broker"
	"vwapbot/pkg/config"
	"vwapbot/pkg/engine"
	"vwapbot/pkg/market"
	"vwapbot/pkg/tradelog"
	"vwapbot/pkg/watchlist"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		logger.Fatal("missing credentials", zap.Error(err))
	}

	tradeLog, err := tradelog.NewWriter(cfg.Paths.TradeLog)
	if err != nil {
		logger.Fatal("trade log init failed", zap.Error(err))
	}

	data := market.NewAlpacaProvider(creds.APIKey, creds.APISecret, logger)

	eng := engine.New(engine.Deps{
		Broker:        broker.NewAlpaca(creds.APIKey, creds.APISecret, creds.BaseURL, logger),
		Data:          data,
		Watchlist:     watchlist.NewService(data, logger),
		TradeLog:      tradeLog,
		Strategy:      cfg.Strategy,
		Session:       market.DefaultSession(),
		HeartbeatPath: cfg.Paths.Heartbeat,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting trading loop")
	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("trading loop stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
