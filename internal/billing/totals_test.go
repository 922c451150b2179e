package billing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedant7151/Invoice-Generator/internal/models"
)

func TestComputeTotals_Example(t *testing.T) {
	items := []*models.LineItem{
		{Quantity: 2, UnitPrice: 100},
		{Quantity: 1, UnitPrice: 50},
	}

	got := ComputeTotals(items, 18)

	assert.Equal(t, "250", got.Subtotal.String())
	assert.Equal(t, "45", got.Tax.String())
	assert.Equal(t, "295", got.Total.String())
}

func TestComputeTotals_TotalIsSubtotalPlusTax(t *testing.T) {
	cases := []struct {
		qty, price, tax float64
	}{
		{0, 0, 0},
		{3, 19.99, 18},
		{1.5, 0.1, 7.25},
		{1000, 12345.67, 28},
	}
	for _, c := range cases {
		got := ComputeTotals([]*models.LineItem{{Quantity: c.qty, UnitPrice: c.price}}, c.tax)
		assert.True(t, got.Subtotal.Add(got.Tax).Equal(got.Total))
		expectedTax := c.qty * c.price * c.tax / 100
		assert.InDelta(t, expectedTax, got.Tax.InexactFloat64(), 1e-6)
	}
}

func TestComputeTotals_TolerantOfBadInput(t *testing.T) {
	items := []*models.LineItem{
		nil,
		{Quantity: -3, UnitPrice: 10},
		{Quantity: 2, UnitPrice: math.NaN()},
		{Quantity: 1, UnitPrice: 40},
	}

	got := ComputeTotals(items, -5)

	assert.Equal(t, "40", got.Subtotal.String())
	assert.True(t, got.Tax.IsZero())
	assert.Equal(t, "40", got.Total.String())
}

func TestComputeInvoiceTotals_IgnoresClientTotals(t *testing.T) {
	inv := &models.Invoice{
		Items:      []models.LineItem{{Quantity: 2, UnitPrice: 100}, {Quantity: 1, UnitPrice: 50}},
		TaxPercent: 18,
		Subtotal:   1, Tax: 1, Total: 1,
	}
	ComputeInvoiceTotals(inv)
	assert.Equal(t, 250.0, inv.Subtotal)
	assert.Equal(t, 45.0, inv.Tax)
	assert.Equal(t, 295.0, inv.Total)
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, "12.5", ParseAmount("12.5").String())
	assert.Equal(t, "3", ParseAmount(" 3 ").String())
	assert.Equal(t, "7", ParseAmount(json.Number("7")).String())
	assert.Equal(t, "4", ParseAmount(4).String())
	assert.True(t, ParseAmount("abc").IsZero())
	assert.True(t, ParseAmount("").IsZero())
	assert.True(t, ParseAmount(nil).IsZero())
	assert.True(t, ParseAmount(true).IsZero())
	assert.True(t, ParseAmount(-2.0).IsZero())
	assert.True(t, ParseAmount(math.Inf(1)).IsZero())
}

func TestToLineItems_MalformedNumbersContributeZero(t *testing.T) {
	var raw []*RawItem
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"a","description":"Design","qty":"2","unitPrice":100},
		{"id":"b","description":"Bad price","qty":1,"unitPrice":"abc"},
		{"id":"c","description":"No qty","unitPrice":30},
		null
	]`), &raw))

	items, err := ToLineItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 2.0, items[0].Quantity)
	assert.Equal(t, 0.0, items[1].UnitPrice)
	assert.Equal(t, 0.0, items[2].Quantity)

	ptrs := make([]*models.LineItem, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	assert.Equal(t, "200", ComputeTotals(ptrs, 0).Subtotal.String())
}

func TestToLineItems_IDs(t *testing.T) {
	items, err := ToLineItems([]*RawItem{
		{ID: "x", Description: "one"},
		{ID: "x", Description: "two"},
		{ID: 7, Description: "three"},
		{Description: "four"},
	})
	require.NoError(t, err)

	assert.Equal(t, "x", items[0].ID)
	assert.NotEqual(t, "x", items[1].ID)
	assert.Equal(t, "7", items[2].ID)
	assert.NotEmpty(t, items[3].ID)
}

func TestToLineItems_DescriptionRequired(t *testing.T) {
	_, err := ToLineItems([]*RawItem{{ID: "a", Description: "  "}})
	assert.ErrorContains(t, err, "description is required")
}
