package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name     string
		item     string
		tax      string
		shipping string
		want     string
	}{
		{name: "ground", item: "1.99", tax: "0.07", shipping: "4.99", want: "7.05"},
		{name: "drone", item: "1.99", tax: "0.07", shipping: "24.99", want: "27.05"},
		{name: "no shipping", item: "0.10", tax: "0", shipping: "0", want: "0.10"},
		{name: "rounds half up", item: "1.005", tax: "0", shipping: "0", want: "1.01"},
		{name: "rounds down", item: "1.004", tax: "0", shipping: "0", want: "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(Total(d(tt.item), d(tt.tax), d(tt.shipping)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ByID(t *testing.T) {
	opt, err := Resolve(DefaultShippingOptions(), "2", "")
	require.NoError(t, err)
	assert.Equal(t, "24.99", Format(opt.Amount))
}

func TestResolve_IDTakesPrecedenceOverAmount(t *testing.T) {
	// the client claims drone express costs a cent; the id decides the price
	opt, err := Resolve(DefaultShippingOptions(), "2", "0.01")
	require.NoError(t, err)
	assert.Equal(t, "24.99", Format(opt.Amount))
}

func TestResolve_ByAmount(t *testing.T) {
	opt, err := Resolve(DefaultShippingOptions(), "", "4.99")
	require.NoError(t, err)
	assert.Equal(t, "1", opt.ID)
}

func TestResolve_ArbitraryAmountRejected(t *testing.T) {
	_, err := Resolve(DefaultShippingOptions(), "", "0.01")
	assert.ErrorIs(t, err, ErrUnknownShippingOption)
}

func TestResolve_UnknownID(t *testing.T) {
	_, err := Resolve(DefaultShippingOptions(), "42", "")
	assert.ErrorIs(t, err, ErrUnknownShippingOption)
}

func TestResolve_EmptyUsesSelected(t *testing.T) {
	opt, err := Resolve(DefaultShippingOptions(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "1", opt.ID)
	assert.Equal(t, "4.99", Format(opt.Amount))
}

func TestResolve_EmptyWithoutSelection(t *testing.T) {
	options := DefaultShippingOptions()
	for i := range options {
		options[i].Selected = false
	}

	_, err := Resolve(options, "", "")
	assert.ErrorIs(t, err, ErrUnknownShippingOption)
}

func TestResolve_MalformedAmount(t *testing.T) {
	_, err := Resolve(DefaultShippingOptions(), "", "four")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSelect_IsExclusive(t *testing.T) {
	options := DefaultShippingOptions()

	updated, err := Select(options, "2")
	require.NoError(t, err)

	selected := 0
	for _, o := range updated {
		if o.Selected {
			selected++
			assert.Equal(t, "2", o.ID)
		}
	}
	assert.Equal(t, 1, selected)

	// input is left untouched
	current, ok := Selected(options)
	require.True(t, ok)
	assert.Equal(t, "1", current.ID)
}

func TestSelect_Unknown(t *testing.T) {
	_, err := Select(DefaultShippingOptions(), "nope")
	assert.ErrorIs(t, err, ErrUnknownShippingOption)
}

func TestParseAmount_Negative(t *testing.T) {
	_, err := ParseAmount("-1.00")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
