// Monitor: external watchdog for the trading loop. Checks heartbeat
// freshness, prints an account summary and any open orders, and
// repeats every minute.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vwapbot/pkg/broker"
	"vwapbot/pkg/config"
	"vwapbot/pkg/heartbeat"
)

func main() {
	heartbeatPath := flag.String("heartbeat", "heartbeat.txt", "heartbeat file written by the bot")
	interval := flag.Duration("interval", time.Minute, "time between checks")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		log.Fatalf("missing credentials: %v", err)
	}

	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()
	client := broker.NewAlpaca(creds.APIKey, creds.APISecret, creds.BaseURL, logger)

	for {
		fmt.Printf("\n--- Monitoring check at %s ---\n", time.Now().Format("2006-01-02 15:04:05"))

		fresh := checkHeartbeat(*heartbeatPath)
		checkAccount(client)
		checkOpenOrders(client)

		if !fresh {
			fmt.Println("[WARNING] Consider restarting the trading bot or investigating issues.")
		}
		time.Sleep(*interval)
	}
}

func checkHeartbeat(path string) bool {
	fresh, age, err := heartbeat.Check(path, time.Now())
	if err != nil {
		fmt.Printf("[ALERT] Heartbeat unreadable: %v\n", err)
		return false
	}
	if !fresh {
		fmt.Printf("[ALERT] Heartbeat stale! Last updated %.1f seconds ago.\n", age.Seconds())
		return false
	}
	fmt.Println("[OK] Heartbeat is fresh.")
	return true
}

func checkAccount(client *broker.Alpaca) {
	summary, err := client.Summary()
	if err != nil {
		fmt.Printf("[ALERT] Account check failed: %v\n", err)
		return
	}
	fmt.Printf("Cash: $%s, Equity: $%s, Buying Power: $%s, Positions: %d\n",
		summary.Cash, summary.Equity, summary.BuyingPower, summary.Positions)
}

func checkOpenOrders(client *broker.Alpaca) {
	orders, err := client.OpenOrders()
	if err != nil {
		fmt.Printf("[ALERT] Order check failed: %v\n", err)
		return
	}
	if len(orders) == 0 {
		fmt.Println("[OK] No open orders.")
		return
	}
	fmt.Printf("[INFO] Open orders count: %d\n", len(orders))
	for _, order := range orders {
		fmt.Printf("Order ID: %s, Symbol: %s, Qty: %s, Side: %s, Submitted At: %s\n",
			order.ID, order.Symbol, order.Qty, order.Side, order.SubmittedAt)
	}
}
