package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxomega77xx/googlepay/internal/catalog"
	"github.com/xxomega77xx/googlepay/internal/paypal"
	"github.com/xxomega77xx/googlepay/internal/pricing"
)

type OrderServiceMock struct {
	order   *paypal.Order
	capture *paypal.CaptureResult
	quote   *paypal.ShippingQuote
	err     error

	items   []paypal.LineItem
	orderID string
	change  paypal.ShippingChange
}

func (m *OrderServiceMock) CreateOrder(_ context.Context, items ...paypal.LineItem) (*paypal.Order, error) {
	m.items = items
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *OrderServiceMock) GetOrder(_ context.Context, orderID string) (*paypal.Order, error) {
	m.orderID = orderID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *OrderServiceMock) CapturePayment(_ context.Context, orderID string) (*paypal.CaptureResult, error) {
	m.orderID = orderID
	if m.err != nil {
		return nil, m.err
	}
	return m.capture, nil
}

func (m *OrderServiceMock) UpdateShipping(_ context.Context, orderID string, change paypal.ShippingChange) (*paypal.ShippingQuote, error) {
	m.orderID = orderID
	m.change = change
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

type TokenSourceMock struct {
	token paypal.ClientToken
	err   error
}

func (m TokenSourceMock) GetClientToken(context.Context) (paypal.ClientToken, error) {
	return m.token, m.err
}

var testCreds = paypal.Credentials{ClientID: "client-id", ClientSecret: "secret", MerchantID: "merchant-id"}

func newTestRouter(orders OrderService, tokens ClientTokenSource) http.Handler {
	products := NewProductHandler(catalog.NewMemoryCatalog(catalog.Product{
		ID: 1, SKU: "checkout-demo", Name: "Demo", Price: decimal.RequireFromString("0.10"), Currency: "USD",
	}), 5*time.Second)

	return NewRouter(RouterConfig{
		Checkout:       NewCheckoutHandler(orders, tokens, testCreds, 5*time.Second),
		Products:       products,
		Env:            "test",
		BaseURL:        paypal.SandboxBaseURL,
		RequestTimeout: 5 * time.Second,
	})
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConfig_Success(t *testing.T) {
	router := newTestRouter(&OrderServiceMock{}, TokenSourceMock{token: paypal.ClientToken{Value: "ct-123"}})

	rec := serve(t, router, http.MethodGet, "/api/checkout/config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CheckoutConfigResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CheckoutConfigResponse{ClientID: "client-id", MerchantID: "merchant-id", ClientToken: "ct-123"}, resp)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestConfig_AuthFailure(t *testing.T) {
	router := newTestRouter(&OrderServiceMock{}, TokenSourceMock{err: &paypal.AuthError{StatusCode: 401, Body: `{"error":"invalid_client"}`}})

	rec := serve(t, router, http.MethodGet, "/api/checkout/config", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "auth_failed", resp.Code)
	assert.Equal(t, `{"error":"invalid_client"}`, resp.Details)
}

func TestCreateOrder_RelaysProviderJSON(t *testing.T) {
	raw := `{"id":"ORDER-1","status":"CREATED","links":[]}`
	mock := &OrderServiceMock{order: &paypal.Order{ID: "ORDER-1", Raw: json.RawMessage(raw)}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPost, "/api/orders", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, raw, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, mock.items)
}

func TestCreateOrder_WithItems(t *testing.T) {
	mock := &OrderServiceMock{order: &paypal.Order{Raw: json.RawMessage(`{}`)}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPost, "/api/orders", `{"items":[{"sku":"mug","quantity":2}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []paypal.LineItem{{SKU: "mug", Quantity: 2}}, mock.items)
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	router := newTestRouter(&OrderServiceMock{}, TokenSourceMock{})

	rec := serve(t, router, http.MethodPost, "/api/orders", `{"items":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &paypal.ValidationError{Field: "quantity", Reason: "must be between 1 and 99"}, http.StatusBadRequest, "invalid_argument"},
		{"config", &paypal.ConfigError{Field: "merchant_id"}, http.StatusInternalServerError, "configuration_error"},
		{"auth", &paypal.AuthError{StatusCode: 401}, http.StatusBadGateway, "auth_failed"},
		{"not found", &paypal.ProviderError{Op: "get order", StatusCode: 404}, http.StatusNotFound, "not_found"},
		{"unprocessable", &paypal.ProviderError{Op: "capture order", StatusCode: 422}, http.StatusUnprocessableEntity, "provider_error"},
		{"provider 5xx", &paypal.ProviderError{Op: "create order", StatusCode: 503}, http.StatusBadGateway, "provider_unavailable"},
		{"breaker open", &paypal.ProviderError{Op: "create order", Err: gobreaker.ErrOpenState}, http.StatusBadGateway, "provider_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&OrderServiceMock{err: tt.err}, TokenSourceMock{})

			rec := serve(t, router, http.MethodPost, "/api/orders", "")

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestGetOrder_ProviderNotFoundBody(t *testing.T) {
	body := `{"name":"RESOURCE_NOT_FOUND"}`
	mock := &OrderServiceMock{err: &paypal.ProviderError{Op: "get order", StatusCode: 404, Body: body}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodGet, "/api/orders/NOPE", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, body, resp.Details)
	assert.Equal(t, "NOPE", mock.orderID)
}

func TestGetOrder_PostAlias(t *testing.T) {
	raw := `{"id":"ORDER-9","status":"APPROVED"}`
	mock := &OrderServiceMock{order: &paypal.Order{Raw: json.RawMessage(raw)}}
	router := newTestRouter(mock, TokenSourceMock{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := serve(t, router, method, "/api/orders/ORDER-9", "")
		require.Equal(t, http.StatusOK, rec.Code, method)
		assert.Equal(t, raw, rec.Body.String())
	}
	assert.Equal(t, "ORDER-9", mock.orderID)
}

func TestCaptureOrder_RelaysProviderJSON(t *testing.T) {
	raw := `{"id":"ORDER-2","status":"COMPLETED"}`
	mock := &OrderServiceMock{capture: &paypal.CaptureResult{ID: "ORDER-2", Raw: json.RawMessage(raw)}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPost, "/api/orders/ORDER-2/capture", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, raw, rec.Body.String())
	assert.Equal(t, "ORDER-2", mock.orderID)
}

func TestUpdateShipping_Success(t *testing.T) {
	options, err := pricing.Select(pricing.DefaultShippingOptions(), "2")
	require.NoError(t, err)
	mock := &OrderServiceMock{quote: &paypal.ShippingQuote{
		OrderID: "ORDER-3",
		Option:  options[1],
		Options: options,
		Amount:  paypal.Amount{CurrencyCode: "USD", Value: "27.05"},
	}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPatch, "/api/orders/ORDER-3/shipping", `{"id":"2"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, paypal.ShippingChange{OptionID: "2"}, mock.change)

	var resp ShippingResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "27.05", resp.Amount.Value)
	assert.Equal(t, "2", resp.SelectedOption.ID)
	assert.Equal(t, "24.99", resp.SelectedOption.Amount)
	require.Len(t, resp.ShippingOptions, 2)
	assert.False(t, resp.ShippingOptions[0].Selected)
	assert.True(t, resp.ShippingOptions[1].Selected)
}

func TestUpdateShipping_EmptyBodyUsesDefault(t *testing.T) {
	options := pricing.DefaultShippingOptions()
	mock := &OrderServiceMock{quote: &paypal.ShippingQuote{
		OrderID: "ORDER-3",
		Option:  options[0],
		Options: options,
		Amount:  paypal.Amount{CurrencyCode: "USD", Value: "7.05"},
	}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPatch, "/api/orders/ORDER-3/shipping", `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORDER-3", mock.orderID)
	assert.Equal(t, paypal.ShippingChange{}, mock.change)

	var resp ShippingResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "1", resp.SelectedOption.ID)
	assert.Equal(t, "7.05", resp.Amount.Value)
}

func TestUpdateShipping_Rejected(t *testing.T) {
	mock := &OrderServiceMock{err: &paypal.ValidationError{Field: "shipping_option", Reason: "unknown shipping option"}}
	router := newTestRouter(mock, TokenSourceMock{})

	rec := serve(t, router, http.MethodPatch, "/api/orders/ORDER-3/shipping", `{"amount":"0.01"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "0.01", mock.change.Amount)
}

func TestCheckAndHealth(t *testing.T) {
	router := newTestRouter(&OrderServiceMock{}, TokenSourceMock{})

	rec := serve(t, router, http.MethodGet, "/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var check CheckResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&check))
	assert.Equal(t, CheckResponse{Message: "ok", Env: "test", BaseURL: paypal.SandboxBaseURL}, check)

	rec = serve(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(&OrderServiceMock{}, TokenSourceMock{})

	rec := serve(t, router, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}
