package concerns

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrecisionValidator(t *testing.T) {
	p := PrecisionValidator{}

	assert.True(t, p.LessThanOrEqTo(decimal.RequireFromString("10.125"), QuantityPrecision))
	assert.True(t, p.LessThanOrEqTo(decimal.RequireFromString("10.1200"), 2))
	assert.True(t, p.LessThanOrEqTo(decimal.NewFromInt(45), 0))
	assert.False(t, p.LessThanOrEqTo(decimal.RequireFromString("10.1251"), QuantityPrecision))
	assert.False(t, p.LessThanOrEqTo(decimal.RequireFromString("45.12345"), PricePrecision))
}
