package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// MissingValue is shown in place of absent dates and names.
const MissingValue = "-"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
}

// FormatDate renders an ISO date as DD/MM/YYYY.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MissingValue
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return MissingValue
}

// FormatCurrency renders amount with two decimals: INR with the rupee sign
// and Indian digit grouping, USD with a dollar sign and thousands grouping,
// anything else as "<CODE> 1234.00".
func FormatCurrency(amount float64, currency string) string {
	d := decimal.NewFromFloat(amount).Round(2)
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case models.CurrencyINR, "":
		return "₹" + groupFixed(d, true)
	case models.CurrencyUSD:
		return "$" + groupFixed(d, false)
	}
	return currency + " " + d.StringFixed(2)
}

func groupFixed(d decimal.Decimal, indian bool) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var groups []string
	first := true
	for len(intPart) > 3 || (!first && len(intPart) > 2 && indian) {
		size := 3
		if indian && !first {
			size = 2
		}
		groups = append([]string{intPart[len(intPart)-size:]}, groups...)
		intPart = intPart[:len(intPart)-size]
		first = false
	}
	groups = append([]string{intPart}, groups...)
	return sign + strings.Join(groups, ",") + "." + frac
}
