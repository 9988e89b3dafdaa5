package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xxomega77xx/googlepay/internal/catalog"
	"github.com/xxomega77xx/googlepay/internal/pricing"
)

const maxLineQuantity = 99

// PriceSource is the authoritative price list. Prices never come from the
// caller.
type PriceSource interface {
	Price(ctx context.Context, sku string) (decimal.Decimal, error)
}

// CaptureNotifier is told about every successful capture.
type CaptureNotifier interface {
	PaymentCaptured(ctx context.Context, result *CaptureResult) error
}

type GatewayConfig struct {
	MerchantID string
	Currency   string
	// DefaultSKU is charged when an order is created without line items.
	DefaultSKU string
	// SCAMethod is the google_pay verification method. Empty omits the
	// payment_source block.
	SCAMethod       string
	ShippingOptions []pricing.ShippingOption
}

// LineItem is what a buyer may choose: a product and a quantity, never a
// price.
type LineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// ShippingChange is the buyer's proposed shipping option. An empty change
// applies the option selected by default.
type ShippingChange struct {
	OptionID string
	Amount   string
}

// ShippingQuote is the outcome of an accepted shipping change.
type ShippingQuote struct {
	OrderID string
	Option  pricing.ShippingOption
	Options []pricing.ShippingOption
	Amount  Amount
}

// OrderGateway mediates the order lifecycle with the provider. It never
// stores orders; every read goes to the provider.
type OrderGateway struct {
	client   *Client
	tokens   TokenSource
	prices   PriceSource
	notifier CaptureNotifier
	cfg      GatewayConfig
	logger   *slog.Logger
}

func NewOrderGateway(client *Client, tokens TokenSource, prices PriceSource, notifier CaptureNotifier, cfg GatewayConfig) *OrderGateway {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if len(cfg.ShippingOptions) == 0 {
		cfg.ShippingOptions = pricing.DefaultShippingOptions()
	}
	return &OrderGateway{
		client:   client,
		tokens:   tokens,
		prices:   prices,
		notifier: notifier,
		cfg:      cfg,
		logger:   client.logger,
	}
}

// CreateOrder prices items from the catalog and opens a CAPTURE order. With
// no items the default SKU is charged once.
func (g *OrderGateway) CreateOrder(ctx context.Context, items ...LineItem) (*Order, error) {
	if strings.TrimSpace(g.cfg.MerchantID) == "" {
		return nil, &ConfigError{Field: "merchant_id"}
	}
	if len(items) == 0 {
		items = []LineItem{{SKU: g.cfg.DefaultSKU, Quantity: 1}}
	}

	total, err := g.priceItems(ctx, items)
	if err != nil {
		return nil, err
	}
	value := pricing.Format(total)

	body := createOrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{
			{
				ReferenceID: DefaultReferenceID,
				Amount: Amount{
					CurrencyCode: g.cfg.Currency,
					Value:        value,
					Breakdown: &AmountBreakdown{
						ItemTotal: &Money{CurrencyCode: g.cfg.Currency, Value: value},
					},
				},
				Payee: &Payee{MerchantID: g.cfg.MerchantID},
			},
		},
		PaymentSource: g.paymentSource(),
	}

	const op = "create order"
	resp, err := g.send(ctx, op, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return nil, err
	}
	order, err := decodeOrder(op, resp)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("status", order.Status.String()),
		slog.String("amount", value))
	return order, nil
}

func (g *OrderGateway) priceItems(ctx context.Context, items []LineItem) (decimal.Decimal, error) {
	if g.prices == nil {
		return decimal.Zero, &ConfigError{Field: "price_source"}
	}

	total := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.SKU) == "" {
			return decimal.Zero, &ValidationError{Field: "sku", Reason: "is required"}
		}
		if item.Quantity <= 0 || item.Quantity > maxLineQuantity {
			return decimal.Zero, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be between 1 and %d", maxLineQuantity)}
		}

		price, err := g.prices.Price(ctx, item.SKU)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return decimal.Zero, &ValidationError{Field: "sku", Reason: fmt.Sprintf("unknown product %q", item.SKU)}
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("price lookup for %q: %w", item.SKU, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if !total.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "items", Reason: "order total must be positive"}
	}
	return total.Round(2), nil
}

func (g *OrderGateway) paymentSource() *PaymentSource {
	if g.cfg.SCAMethod == "" {
		return nil
	}
	return &PaymentSource{
		GooglePay: &WalletSource{
			Attributes: &WalletAttributes{
				Verification: &Verification{Method: g.cfg.SCAMethod},
			},
		},
	}
}

// GetOrder fetches the current state of an order.
func (g *OrderGateway) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	const op = "get order"
	resp, err := g.send(ctx, op, http.MethodGet, orderPath(orderID), nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(op, resp)
}

// CapturePayment captures an approved order. It is not idempotent: callers
// must invoke it at most once per approved order.
func (g *OrderGateway) CapturePayment(ctx context.Context, orderID string) (*CaptureResult, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	const op = "capture payment"
	resp, err := g.send(ctx, op, http.MethodPost, orderPath(orderID)+"/capture", nil)
	if err != nil {
		return nil, err
	}

	var result CaptureResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode capture: %w", err)}
	}
	result.Raw = json.RawMessage(resp.Body)

	g.logger.InfoContext(ctx, "payment captured",
		slog.String("order_id", result.ID),
		slog.String("status", result.Status.String()))

	if g.notifier != nil {
		if err := g.notifier.PaymentCaptured(ctx, &result); err != nil {
			// funds are captured at this point; the notification is best effort
			g.logger.ErrorContext(ctx, "capture notification failed",
				slog.String("order_id", result.ID),
				slog.Any("error", err))
		}
	}

	return &result, nil
}

// UpdateShipping applies a buyer's shipping option change: the option is
// resolved against the server-known set, the order total is recomputed from
// the provider-held item and tax totals and patched onto the order. A
// rejected patch rejects the change.
func (g *OrderGateway) UpdateShipping(ctx context.Context, orderID string, change ShippingChange) (*ShippingQuote, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	option, err := pricing.Resolve(g.cfg.ShippingOptions, change.OptionID, change.Amount)
	if err != nil {
		return nil, &ValidationError{Field: "shipping_option", Reason: err.Error()}
	}
	options, err := pricing.Select(g.cfg.ShippingOptions, option.ID)
	if err != nil {
		return nil, &ValidationError{Field: "shipping_option", Reason: err.Error()}
	}

	order, err := g.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, &ValidationError{Field: "order_id", Reason: fmt.Sprintf("order is %s", order.Status)}
	}

	const op = "update shipping"
	unit, ok := order.PrimaryUnit()
	if !ok {
		return nil, &ProviderError{Op: op, Err: errors.New("order has no purchase units")}
	}

	itemTotal, taxTotal, err := baseTotals(unit.Amount)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}

	currency := unit.Amount.CurrencyCode
	if currency == "" {
		currency = g.cfg.Currency
	}
	total := pricing.Total(itemTotal, taxTotal, option.Amount)
	amount := Amount{
		CurrencyCode: currency,
		Value:        pricing.Format(total),
		Breakdown: &AmountBreakdown{
			ItemTotal: &Money{CurrencyCode: currency, Value: pricing.Format(itemTotal)},
			TaxTotal:  &Money{CurrencyCode: currency, Value: pricing.Format(taxTotal)},
			Shipping:  &Money{CurrencyCode: currency, Value: pricing.Format(option.Amount)},
		},
	}

	refID := unit.ReferenceID
	if refID == "" {
		refID = DefaultReferenceID
	}
	patch := []PatchOperation{
		{
			Op:    "replace",
			Path:  fmt.Sprintf("/purchase_units/@reference_id=='%s'/amount", refID),
			Value: amount,
		},
	}
	if _, err := g.send(ctx, op, http.MethodPatch, orderPath(orderID), patch); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "shipping updated",
		slog.String("order_id", orderID),
		slog.String("option", option.ID),
		slog.String("amount", amount.Value))

	return &ShippingQuote{OrderID: orderID, Option: option, Options: options, Amount: amount}, nil
}

// baseTotals returns item and tax totals of an amount. Without a breakdown
// the whole value counts as items.
func baseTotals(a Amount) (decimal.Decimal, decimal.Decimal, error) {
	if a.Breakdown == nil || a.Breakdown.ItemTotal == nil {
		item, err := pricing.ParseAmount(a.Value)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("order amount: %w", err)
		}
		return item, decimal.Zero, nil
	}

	item, err := pricing.ParseAmount(a.Breakdown.ItemTotal.Value)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("item total: %w", err)
	}
	tax := decimal.Zero
	if a.Breakdown.TaxTotal != nil {
		tax, err = pricing.ParseAmount(a.Breakdown.TaxTotal.Value)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("tax total: %w", err)
		}
	}
	return item, tax, nil
}

func (g *OrderGateway) send(ctx context.Context, op, method, path string, payload any) (*rawResponse, error) {
	tok, err := g.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &ProviderError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := g.client.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := g.client.do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		g.tokens.Invalidate(ctx, tok)
		g.logger.WarnContext(ctx, "provider refused access token", slog.String("op", op))
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if !resp.ok() {
		g.logger.WarnContext(ctx, "provider rejected request",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode))
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}

func decodeOrder(op string, resp *rawResponse) (*Order, error) {
	var order Order
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode order: %w", err)}
	}
	order.Raw = json.RawMessage(resp.Body)
	return &order, nil
}

func validateOrderID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "order_id", Reason: "is required"}
	}
	return nil
}

func orderPath(id string) string {
	return "/v2/checkout/orders/" + url.PathEscape(id)
}
