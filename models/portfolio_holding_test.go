package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsmartex/carbonex/types"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestHoldingAddPositionBlendsCost(t *testing.T) {
	h := NewPortfolioHolding(1, NewInstrument("VCS", 2021, ""))

	require.NoError(t, h.AddPosition(d("60"), d("45")))
	assert.True(t, h.Quantity.Equal(d("60")))
	assert.True(t, h.AverageCost.Equal(d("45")))

	require.NoError(t, h.AddPosition(d("40"), d("50")))
	assert.True(t, h.Quantity.Equal(d("100")))
	assert.True(t, h.TotalCost.Equal(d("4700")))
	assert.True(t, h.AverageCost.Equal(d("47")))
	assert.True(t, h.TotalCost.Equal(h.Quantity.Mul(h.AverageCost)))

	assert.Error(t, h.AddPosition(d("0"), d("50")))
}

func TestHoldingReducePositionRealizesPnL(t *testing.T) {
	h := NewPortfolioHolding(2, NewInstrument("VCS", 2021, ""))
	require.NoError(t, h.AddPosition(d("100"), d("40")))

	realized, err := h.ReducePosition(d("60"), d("45"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("300")))
	assert.True(t, h.RealizedPnL.Equal(d("300")))
	assert.True(t, h.Quantity.Equal(d("40")))
	assert.True(t, h.AverageCost.Equal(d("40")))
	assert.True(t, h.TotalCost.Equal(d("1600")))

	_, err = h.ReducePosition(d("41"), d("45"))
	assert.Equal(t, types.KindInsufficientBalance, types.KindOf(err))

	realized, err = h.ReducePosition(d("40"), d("35"))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("-200")))
	assert.True(t, h.Quantity.IsZero())
	assert.True(t, h.AverageCost.IsZero())
	assert.True(t, h.TotalCost.IsZero())
	assert.True(t, h.RealizedPnL.Equal(d("100")))
}

func TestHoldingLockUnlock(t *testing.T) {
	h := NewPortfolioHolding(3, NewInstrument("GS", 2020, "P1"))
	require.NoError(t, h.AddPosition(d("10"), d("20")))

	require.NoError(t, h.Lock(d("6")))
	assert.True(t, h.Available().Equal(d("4")))
	assert.Error(t, h.Lock(d("5")))

	require.NoError(t, h.Unlock(d("6")))
	assert.True(t, h.Locked.IsZero())
	assert.Error(t, h.Unlock(d("1")))
}

func TestHoldingMarkToMarket(t *testing.T) {
	h := NewPortfolioHolding(4, NewInstrument("VCS", 2021, ""))
	require.NoError(t, h.AddPosition(d("10"), d("20")))

	h.MarkToMarket(d("25"))
	assert.True(t, h.UnrealizedPnL.Equal(d("50")))
	assert.True(t, h.MarketValue().Equal(d("250")))
}
