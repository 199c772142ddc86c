package broker

import (
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Alpaca trades against the Alpaca paper or live API.
type Alpaca struct {
	client *alpaca.Client
	logger *zap.Logger
}

// NewAlpaca builds a broker client. baseURL selects paper vs live.
func NewAlpaca(apiKey, apiSecret, baseURL string, logger *zap.Logger) *Alpaca {
	return &Alpaca{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		logger: logger,
	}
}

// SubmitOrder places a day market order. The client order ID makes
// retried submissions after a crash identifiable on the broker side.
func (a *Alpaca) SubmitOrder(symbol string, qty float64, side Side) (string, error) {
	orderQty := decimal.NewFromFloat(qty)

	alpacaSide := alpaca.Buy
	if side == Sell {
		alpacaSide = alpaca.Sell
	}

	order, err := a.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        symbol,
		Qty:           &orderQty,
		Side:          alpacaSide,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("place %s order for %s: %w", side, symbol, err)
	}

	a.logger.Info("order submitted",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.String("order_id", order.ID))
	return order.ID, nil
}

// Positions returns the signed quantity of every open position.
func (a *Alpaca) Positions() (map[string]float64, error) {
	positions, err := a.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		qty, _ := p.Qty.Float64()
		out[p.Symbol] = qty
	}
	return out, nil
}

// Equity returns current account equity.
func (a *Alpaca) Equity() (float64, error) {
	account, err := a.client.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}
	equity, _ := account.Equity.Float64()
	return equity, nil
}

// AccountSummary holds the fields the monitor command reports.
type AccountSummary struct {
	Status      string
	Cash        string
	Equity      string
	BuyingPower string
	Positions   int
}

// Summary fetches a snapshot of account health for monitoring.
func (a *Alpaca) Summary() (*AccountSummary, error) {
	account, err := a.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	positions, err := a.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return &AccountSummary{
		Status:      string(account.Status),
		Cash:        account.Cash.StringFixed(2),
		Equity:      account.Equity.StringFixed(2),
		BuyingPower: account.BuyingPower.StringFixed(2),
		Positions:   len(positions),
	}, nil
}

// OpenOrders lists orders still open at the broker.
func (a *Alpaca) OpenOrders() ([]alpaca.Order, error) {
	orders, err := a.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return orders, nil
}
