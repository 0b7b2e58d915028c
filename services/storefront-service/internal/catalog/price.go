package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
)

// ParsePrice reads a non-negative amount written as "12.50", "12,50" or "12". The result is
// rounded to cents and may not exceed model.MaxAmount. Unparseable, negative or oversized
// input is a validation error, never zero.
func ParsePrice(field, text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, apperr.Validation(field, field+" is required")
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return decimal.Zero, apperr.Validation(field, field+" is not a valid amount")
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, apperr.Validation(field, field+" is not a valid amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validation(field, field+" is not a valid amount")
	}
	if d.IsNegative() {
		return decimal.Zero, apperr.Validation(field, field+" must not be negative")
	}
	d = d.Round(2)
	if d.GreaterThan(model.MaxAmount) {
		return decimal.Zero, apperr.Validation(field, field+" is too large")
	}
	return d, nil
}
