package concerns

import (
	"github.com/shopspring/decimal"
)

const (
	// Credits trade down to the kilogram of CO2e.
	QuantityPrecision int32 = 3
	PricePrecision    int32 = 4
)

type PrecisionValidator struct {
}

// LessThanOrEqTo reports whether value has at most precision decimal places.
func (p PrecisionValidator) LessThanOrEqTo(value decimal.Decimal, precision int32) bool {
	return value.Equal(value.Truncate(precision))
}
