package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/types"
)

func limitIntent() OrderIntent {
	return OrderIntent{
		ClientOrderID: "c-1",
		CreditType:    "vcs",
		VintageYear:   2021,
		Side:          types.SideBuy,
		Type:          types.TypeLimit,
		Quantity:      d("100"),
		Price:         decimal.NewNullDecimal(d("45")),
	}
}

func violationsOf(t *testing.T, err error) []string {
	var typed *types.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, types.KindValidation, typed.Kind)

	return typed.Violations
}

func TestOrderIntentValidate(t *testing.T) {
	intent := limitIntent()
	require.NoError(t, intent.Validate(now))
	assert.Equal(t, "VCS:2021", intent.Instrument().Key())

	price, ok := intent.PriceHint()
	assert.True(t, ok)
	assert.True(t, price.Equal(d("45")))
}

func TestOrderIntentNumericRules(t *testing.T) {
	intent := limitIntent()
	intent.Quantity = d("0")
	intent.Price = decimal.NullDecimal{}
	assert.ElementsMatch(t, []string{"market.order.non_positive_quantity", "market.order.missing_price"}, violationsOf(t, intent.Validate(now)))

	intent = limitIntent()
	intent.Type = types.TypeMarket
	assert.Contains(t, violationsOf(t, intent.Validate(now)), "market.order.unexpected_price")

	intent = limitIntent()
	intent.Type = types.TypeStopLimit
	intent.StopPrice = decimal.NewNullDecimal(d("-1"))
	assert.Contains(t, violationsOf(t, intent.Validate(now)), "market.order.non_positive_stop_price")

	intent = limitIntent()
	intent.Type = types.TypeStop
	intent.Price = decimal.NullDecimal{}
	assert.Contains(t, violationsOf(t, intent.Validate(now)), "market.order.missing_stop_price")

	intent = limitIntent()
	intent.Quantity = d("1.0005")
	intent.Price = decimal.NewNullDecimal(d("45.00001"))
	assert.ElementsMatch(t, []string{"market.order.quantity_precision", "market.order.price_precision"}, violationsOf(t, intent.Validate(now)))

	intent = limitIntent()
	intent.ExpiresAt = null.TimeFrom(now.Add(-time.Minute))
	assert.Contains(t, violationsOf(t, intent.Validate(now)), "market.order.expired")
}

func TestOrderIntentStructRules(t *testing.T) {
	intent := limitIntent()
	intent.ClientOrderID = ""
	assert.NotEmpty(t, violationsOf(t, intent.Validate(now)))

	intent = limitIntent()
	intent.Side = "hold"
	assert.NotEmpty(t, violationsOf(t, intent.Validate(now)))
}
