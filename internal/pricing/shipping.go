// Package pricing holds the server-side money arithmetic: the set of shipping
// options the shop offers and the recomputation of order totals.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const ShippingTypeShipping = "SHIPPING"

var (
	ErrUnknownShippingOption = errors.New("unknown shipping option")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type ShippingOption struct {
	ID       string
	Label    string
	Type     string
	Amount   decimal.Decimal
	Selected bool
}

// DefaultShippingOptions is the option set offered when none is configured.
func DefaultShippingOptions() []ShippingOption {
	return []ShippingOption{
		{
			ID:       "1",
			Label:    "Ground Shipping (2 days)",
			Type:     ShippingTypeShipping,
			Amount:   decimal.RequireFromString("4.99"),
			Selected: true,
		},
		{
			ID:     "2",
			Label:  "Drone Express (2 hours)",
			Type:   ShippingTypeShipping,
			Amount: decimal.RequireFromString("24.99"),
		},
	}
}

// Resolve maps a client proposal onto a known option. The id wins when it is
// given; otherwise the proposed amount must equal one of the known prices.
// With neither, the currently selected option applies. The client amount is
// never used as a price.
func Resolve(options []ShippingOption, id, amount string) (ShippingOption, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		for _, o := range options {
			if o.ID == id {
				return o, nil
			}
		}
		return ShippingOption{}, fmt.Errorf("%w: id %q", ErrUnknownShippingOption, id)
	}

	if strings.TrimSpace(amount) == "" {
		if o, ok := Selected(options); ok {
			return o, nil
		}
		return ShippingOption{}, fmt.Errorf("%w: none selected", ErrUnknownShippingOption)
	}
	proposed, err := ParseAmount(amount)
	if err != nil {
		return ShippingOption{}, err
	}
	for _, o := range options {
		if o.Amount.Equal(proposed) {
			return o, nil
		}
	}
	return ShippingOption{}, fmt.Errorf("%w: amount %s", ErrUnknownShippingOption, amount)
}

// Select returns a copy of options in which only id is selected.
func Select(options []ShippingOption, id string) ([]ShippingOption, error) {
	out := make([]ShippingOption, len(options))
	found := false
	for i, o := range options {
		o.Selected = o.ID == id
		if o.Selected {
			found = true
		}
		out[i] = o
	}
	if !found {
		return nil, fmt.Errorf("%w: id %q", ErrUnknownShippingOption, id)
	}
	return out, nil
}

// Selected returns the option currently marked selected.
func Selected(options []ShippingOption) (ShippingOption, bool) {
	for _, o := range options {
		if o.Selected {
			return o, true
		}
	}
	return ShippingOption{}, false
}

// Total is item + tax + shipping, rounded to cents.
func Total(itemTotal, taxTotal, shipping decimal.Decimal) decimal.Decimal {
	return itemTotal.Add(taxTotal).Add(shipping).Round(2)
}

// Format renders an amount the way the provider expects it.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseAmount parses a non-negative decimal amount.
func ParseAmount(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}
	return d, nil
}
