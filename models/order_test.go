package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/types"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrder(qty int64) *Order {
	return &Order{
		ID:         1,
		MemberID:   7,
		Instrument: NewInstrument("vcs", 2021, ""),
		Side:       types.SideBuy,
		Type:       types.TypeLimit,
		Quantity:   decimal.NewFromInt(qty),
		Price:      decimal.NewNullDecimal(decimal.NewFromInt(45)),
		Status:     types.StatusPending,
		CreatedAt:  now,
	}
}

func TestOrderTransitions(t *testing.T) {
	o := newOrder(100)

	require.NoError(t, o.Transition(types.StatusOpen, now))
	assert.True(t, o.SubmittedAt.Valid)
	assert.True(t, o.IsActive())

	err := o.Transition(types.StatusPending, now)
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))

	require.NoError(t, o.Transition(types.StatusCancelled, now))
	assert.True(t, o.IsTerminal())
	assert.True(t, o.ClosedAt.Valid)
	assert.False(t, o.CanTransition(types.StatusOpen))
}

func TestOrderReject(t *testing.T) {
	o := newOrder(100)

	require.NoError(t, o.Reject("risk.max_order_value", now))
	assert.Equal(t, types.StatusRejected, o.Status)
	assert.Equal(t, null.StringFrom("risk.max_order_value"), o.RejectionReason)
}

func TestOrderApplyFill(t *testing.T) {
	o := newOrder(100)
	require.NoError(t, o.Transition(types.StatusOpen, now))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(60), now))
	assert.Equal(t, types.StatusPartiallyFilled, o.Status)
	assert.True(t, o.RemainingQuantity().Equal(decimal.NewFromInt(40)))
	assert.True(t, o.FillPercentage().Equal(decimal.NewFromInt(60)))
	assert.Equal(t, now, o.FirstFillAt.Time)

	later := now.Add(time.Minute)
	err := o.ApplyFill(decimal.NewFromInt(41), later)
	require.Error(t, err)
	assert.True(t, o.RemainingQuantity().Equal(decimal.NewFromInt(40)))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(40), later))
	assert.Equal(t, types.StatusFilled, o.Status)
	assert.True(t, o.RemainingQuantity().IsZero())
	assert.Equal(t, now, o.FirstFillAt.Time)
	assert.Equal(t, later, o.LastFillAt.Time)
	assert.Equal(t, later, o.ClosedAt.Time)

	require.Error(t, o.ApplyFill(decimal.NewFromInt(1), later))
}

func TestOrderApplyFillAfterCancel(t *testing.T) {
	o := newOrder(100)
	require.NoError(t, o.Transition(types.StatusOpen, now))
	require.NoError(t, o.Transition(types.StatusCancelled, now))

	require.NoError(t, o.ApplyFill(decimal.NewFromInt(10), now))
	assert.Equal(t, types.StatusCancelled, o.Status)
	assert.True(t, o.FilledQuantity.Equal(decimal.NewFromInt(10)))
}

func TestOrderApplyFillRejectsPending(t *testing.T) {
	o := newOrder(100)

	err := o.ApplyFill(decimal.NewFromInt(10), now)
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidState, types.KindOf(err))

	err = o.ApplyFill(decimal.Zero, now)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestOrderToMatchingAttributes(t *testing.T) {
	o := newOrder(100)
	o.Type = types.TypeStopLimit
	o.StopPrice = decimal.NewNullDecimal(decimal.NewFromInt(44))
	o.FilledQuantity = decimal.NewFromInt(10)

	attrs := o.ToMatchingAttributes()
	assert.Equal(t, "VCS:2021", attrs.Symbol)
	assert.True(t, attrs.IsPendingStop())
	assert.Equal(t, now, attrs.CreatedAt)
	assert.True(t, attrs.UnfilledQuantity().Equal(decimal.NewFromInt(90)))

	ranked := now.Add(time.Hour)
	o.RankedAt = ranked
	o.TriggeredAt = null.TimeFrom(now)

	attrs = o.ToMatchingAttributes()
	assert.Equal(t, types.TypeLimit, attrs.Type)
	assert.False(t, attrs.IsPendingStop())
	assert.Equal(t, ranked, attrs.CreatedAt)
}

func TestInstrumentKey(t *testing.T) {
	assert.Equal(t, "VCS:2021", NewInstrument(" vcs ", 2021, "").Key())
	assert.Equal(t, "GS:2019:P-42", NewInstrument("gs", 2019, "P-42").Key())

	instrument, ok := ParseInstrumentKey("gs:2019:P-42")
	require.True(t, ok)
	assert.Equal(t, NewInstrument("GS", 2019, "P-42"), instrument)

	_, ok = ParseInstrumentKey("VCS")
	assert.False(t, ok)
	_, ok = ParseInstrumentKey("VCS:abc")
	assert.False(t, ok)
}
