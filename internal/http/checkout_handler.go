package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xxomega77xx/googlepay/internal/paypal"
	"github.com/xxomega77xx/googlepay/internal/pricing"
)

const maxRequestBody = 1 << 20

type OrderService interface {
	CreateOrder(ctx context.Context, items ...paypal.LineItem) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CapturePayment(ctx context.Context, orderID string) (*paypal.CaptureResult, error)
	UpdateShipping(ctx context.Context, orderID string, change paypal.ShippingChange) (*paypal.ShippingQuote, error)
}

type ClientTokenSource interface {
	GetClientToken(ctx context.Context) (paypal.ClientToken, error)
}

type CheckoutHandler struct {
	orders     OrderService
	tokens     ClientTokenSource
	clientID   string
	merchantID string
	timeout    time.Duration
}

func NewCheckoutHandler(orders OrderService, tokens ClientTokenSource, creds paypal.Credentials, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orders:     orders,
		tokens:     tokens,
		clientID:   creds.ClientID,
		merchantID: creds.MerchantID,
		timeout:    timeout,
	}
}

type CheckoutConfigResponse struct {
	ClientID    string `json:"client_id"`
	MerchantID  string `json:"merchant_id"`
	ClientToken string `json:"client_token"`
}

type CreateOrderRequestDTO struct {
	Items []paypal.LineItem `json:"items"`
}

type ShippingRequestDTO struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type ShippingOptionDTO struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Selected bool   `json:"selected"`
}

type ShippingResponseDTO struct {
	OrderID         string              `json:"order_id"`
	SelectedOption  ShippingOptionDTO   `json:"selected_option"`
	ShippingOptions []ShippingOptionDTO `json:"shipping_options"`
	Amount          paypal.Amount       `json:"amount"`
}

// Config hands the browser what it needs to render the payment button.
func (h *CheckoutHandler) Config(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token, err := h.tokens.GetClientToken(ctx)
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutConfigResponse{
		ClientID:    h.clientID,
		MerchantID:  h.merchantID,
		ClientToken: token.Value,
	})
}

func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// An empty body orders the default product.
	var req CreateOrderRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.Items...)
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}

	respondRaw(w, http.StatusOK, order.Raw)
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}

	respondRaw(w, http.StatusOK, order.Raw)
}

func (h *CheckoutHandler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.orders.CapturePayment(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}

	respondRaw(w, http.StatusOK, result.Raw)
}

func (h *CheckoutHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ShippingRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	quote, err := h.orders.UpdateShipping(ctx, chi.URLParam(r, "orderID"), paypal.ShippingChange{
		OptionID: req.ID,
		Amount:   req.Amount,
	})
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}

	options := make([]ShippingOptionDTO, len(quote.Options))
	for i, o := range quote.Options {
		options[i] = toShippingOptionDTO(o)
	}

	slog.DebugContext(ctx, "shipping change accepted",
		slog.String("order_id", quote.OrderID),
		slog.String("request_id", getRequestID(r.Context())))

	respondJSON(w, http.StatusOK, ShippingResponseDTO{
		OrderID:         quote.OrderID,
		SelectedOption:  toShippingOptionDTO(quote.Option),
		ShippingOptions: options,
		Amount:          quote.Amount,
	})
}

func toShippingOptionDTO(o pricing.ShippingOption) ShippingOptionDTO {
	return ShippingOptionDTO{
		ID:       o.ID,
		Label:    o.Label,
		Type:     o.Type,
		Amount:   pricing.Format(o.Amount),
		Selected: o.Selected,
	}
}
