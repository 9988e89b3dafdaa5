package paypal

import (
	"encoding/json"
	"time"
)

const (
	IntentCapture      = "CAPTURE"
	DefaultReferenceID = "default"
)

// AccessToken authorizes server-to-provider calls. It never leaves the
// gateway.
type AccessToken struct {
	Value      string    `json:"value"`
	ObtainedAt time.Time `json:"obtained_at"`
	ExpiresIn  int64     `json:"expires_in"`
}

// ExpiresAt is the instant the provider stops honoring the token.
func (t AccessToken) ExpiresAt() time.Time {
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// ValidAt reports whether the token can still be used at now, keeping margin
// in reserve before the provider-side expiry.
func (t AccessToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt().Add(-margin))
}

// ClientToken is the browser-scoped token handed to the payment widget.
type ClientToken struct {
	Value     string
	ExpiresIn int64
}

type tokenResponse struct {
	Scope       string `json:"scope"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AppID       string `json:"app_id"`
	ExpiresIn   int64  `json:"expires_in"`
	Nonce       string `json:"nonce"`
}

type clientTokenResponse struct {
	ClientToken string `json:"client_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type AmountBreakdown struct {
	ItemTotal *Money `json:"item_total,omitempty"`
	TaxTotal  *Money `json:"tax_total,omitempty"`
	Shipping  *Money `json:"shipping,omitempty"`
}

type Amount struct {
	CurrencyCode string           `json:"currency_code"`
	Value        string           `json:"value"`
	Breakdown    *AmountBreakdown `json:"breakdown,omitempty"`
}

type Payee struct {
	MerchantID string `json:"merchant_id,omitempty"`
}

type Address struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

type ShippingName struct {
	FullName string `json:"full_name,omitempty"`
}

type ShippingOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type,omitempty"`
	Amount   *Money `json:"amount,omitempty"`
	Selected bool   `json:"selected"`
}

type Shipping struct {
	Name    *ShippingName    `json:"name,omitempty"`
	Address *Address         `json:"address,omitempty"`
	Method  string           `json:"method,omitempty"`
	Options []ShippingOption `json:"options,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	Amount      Amount    `json:"amount"`
	Payee       *Payee    `json:"payee,omitempty"`
	Shipping    *Shipping `json:"shipping,omitempty"`
}

type Verification struct {
	Method string `json:"method"`
}

type WalletAttributes struct {
	Verification *Verification `json:"verification,omitempty"`
}

type WalletSource struct {
	Attributes *WalletAttributes `json:"attributes,omitempty"`
}

type PaymentSource struct {
	GooglePay *WalletSource `json:"google_pay,omitempty"`
	ApplePay  *WalletSource `json:"apple_pay,omitempty"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	PaymentSource *PaymentSource `json:"payment_source,omitempty"`
}

// Order is the provider's order representation. Raw keeps the exact bytes the
// provider sent so they can be relayed unchanged.
type Order struct {
	ID            string          `json:"id"`
	Status        OrderStatus     `json:"status"`
	Intent        string          `json:"intent,omitempty"`
	PurchaseUnits []PurchaseUnit  `json:"purchase_units,omitempty"`
	PaymentSource json.RawMessage `json:"payment_source,omitempty"`
	Links         []Link          `json:"links,omitempty"`
	CreateTime    string          `json:"create_time,omitempty"`
	UpdateTime    string          `json:"update_time,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// PrimaryUnit returns the unit addressed as reference_id 'default', or the
// first unit when none carries that reference.
func (o *Order) PrimaryUnit() (*PurchaseUnit, bool) {
	if len(o.PurchaseUnits) == 0 {
		return nil, false
	}
	for i := range o.PurchaseUnits {
		if o.PurchaseUnits[i].ReferenceID == DefaultReferenceID {
			return &o.PurchaseUnits[i], true
		}
	}
	return &o.PurchaseUnits[0], true
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

type CapturePayments struct {
	Captures []Capture `json:"captures,omitempty"`
}

type CapturedUnit struct {
	ReferenceID string           `json:"reference_id,omitempty"`
	Payments    *CapturePayments `json:"payments,omitempty"`
}

// CaptureResult is the provider's answer to a capture call.
type CaptureResult struct {
	ID            string         `json:"id"`
	Status        OrderStatus    `json:"status"`
	PurchaseUnits []CapturedUnit `json:"purchase_units,omitempty"`
	Links         []Link         `json:"links,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// FirstCapture returns the first capture record of the result, if any.
func (c *CaptureResult) FirstCapture() (Capture, bool) {
	for _, u := range c.PurchaseUnits {
		if u.Payments == nil {
			continue
		}
		if len(u.Payments.Captures) > 0 {
			return u.Payments.Captures[0], true
		}
	}
	return Capture{}, false
}

// PatchOperation is one JSON-Patch style operation of an order update.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
