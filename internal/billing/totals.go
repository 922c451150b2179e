package billing

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vedant7151/Invoice-Generator/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Totals holds the derived money fields of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Apply writes t onto inv.
func (t Totals) Apply(inv *models.Invoice) {
	inv.Subtotal = t.Subtotal.InexactFloat64()
	inv.Tax = t.Tax.InexactFloat64()
	inv.Total = t.Total.InexactFloat64()
}

// ComputeTotals derives subtotal, tax and total. Nil items are skipped,
// negative or non-finite quantities and prices count as zero, and a negative
// tax percent is clamped to zero. It never fails.
func ComputeTotals(items []*models.LineItem, taxPercent float64) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		if it == nil {
			continue
		}
		subtotal = subtotal.Add(ParseAmount(it.Quantity).Mul(ParseAmount(it.UnitPrice)))
	}
	tax := subtotal.Mul(ParseAmount(taxPercent)).Div(hundred)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// ComputeInvoiceTotals recomputes and applies the totals of inv in place.
func ComputeInvoiceTotals(inv *models.Invoice) Totals {
	t := ComputeTotals(inv.ItemPointers(), inv.TaxPercent)
	t.Apply(inv)
	return t
}

// ParseAmount is the lenient parse-or-default used for every client-supplied
// number: numbers and numeric strings are accepted, anything else (including
// negatives, NaN and infinities) becomes zero.
func ParseAmount(v any) decimal.Decimal {
	var d decimal.Decimal
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(n)
	case float32:
		return ParseAmount(float64(n))
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case int32:
		d = decimal.NewFromInt32(n)
	case json.Number:
		return ParseAmount(string(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseFloat is ParseAmount as a float64.
func ParseFloat(v any) float64 {
	return ParseAmount(v).InexactFloat64()
}

// RawItem is a line item as received from a client, before numeric coercion.
type RawItem struct {
	ID          any    `json:"id"`
	Description string `json:"description"`
	Qty         any    `json:"qty"`
	UnitPrice   any    `json:"unitPrice"`
}

// ToLineItems converts raw items into stored line items. Nil entries are
// dropped, numbers go through ParseAmount, and missing or repeated ids are
// replaced with fresh ones so ids stay unique within the invoice.
func ToLineItems(raw []*RawItem) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		if r == nil {
			continue
		}
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			return nil, fmt.Errorf("item %d: description is required", i+1)
		}
		id := ""
		if r.ID != nil {
			id = strings.TrimSpace(fmt.Sprint(r.ID))
		}
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true
		items = append(items, models.LineItem{
			ID:          id,
			Description: desc,
			Quantity:    ParseFloat(r.Qty),
			UnitPrice:   ParseFloat(r.UnitPrice),
		})
	}
	return items, nil
}
