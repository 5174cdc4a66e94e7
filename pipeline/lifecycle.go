package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/models/concerns"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/settlement"
	"github.com/zsmartex/carbonex/types"
)

const (
	defaultCancelReason   = "cancelled by member"
	unsettledCancelReason = "cancelled after a failed settlement"
)

var (
	ErrOrderForbidden     = types.NewError(types.KindForbidden, "market.order.forbidden", "order belongs to another member")
	ErrOrderNotCancelable = types.NewError(types.KindInvalidState, "market.order.not_cancellable", "order is not active")
	ErrOrderNotModifiable = types.NewError(types.KindInvalidState, "market.order.not_modifiable", "order is not active")
)

func (c *Coordinator) ownedOrder(ctx context.Context, memberID, orderID int64) (*models.Order, error) {
	order, err := c.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, unavailable(err)
	}

	if order.MemberID != memberID {
		return nil, ErrOrderForbidden
	}

	return order, nil
}

// CancelOrder takes the order off its book and releases its reservation.
// Matches computed before the cancel still settle.
func (c *Coordinator) CancelOrder(ctx context.Context, memberID, orderID int64, reason string) (*OrderResult, error) {
	order, err := c.ownedOrder(ctx, memberID, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsActive() {
		return nil, ErrOrderNotCancelable
	}

	if len(reason) == 0 {
		reason = defaultCancelReason
	}

	closed, err := c.removeOrder(ctx, order, types.StatusCancelled, reason)
	if err != nil {
		if errors.Is(err, ErrOrderNotModifiable) {
			return nil, ErrOrderNotCancelable
		}

		return nil, err
	}

	c.auditor.Record(ctx, audit.Event{
		Kind:      audit.KindOrderCancelled,
		MemberID:  closed.MemberID,
		OrderID:   closed.ID,
		Details:   map[string]interface{}{"reason": reason, "filled_quantity": closed.FilledQuantity},
		CreatedAt: closed.ClosedAt.Time,
	})
	c.publishOrder(closed)

	return c.resultFor(ctx, closed)
}

// ExpireOrders moves every active order whose expiry is at or before now to
// EXPIRED and returns how many were expired.
func (c *Coordinator) ExpireOrders(ctx context.Context, now time.Time) (int, error) {
	orders, err := c.store.ExpiredOrders(ctx, now)
	if err != nil {
		return 0, unavailable(err)
	}

	expired := 0
	for _, order := range orders {
		closed, err := c.removeOrder(ctx, order, types.StatusExpired, "")
		if errors.Is(err, ErrOrderNotModifiable) {
			continue
		} else if err != nil {
			config.Logger.Warnf("[carbonex.pipeline] failed to expire order %d: %v", order.ID, err)
			continue
		}

		expired++

		c.auditor.Record(ctx, audit.Event{
			Kind:      audit.KindOrderExpired,
			MemberID:  closed.MemberID,
			OrderID:   closed.ID,
			Details:   map[string]interface{}{"expires_at": closed.ExpiresAt.Time},
			CreatedAt: now,
		})
		c.publishOrder(closed)
	}

	if expired > 0 {
		config.Logger.Infof("[carbonex.pipeline] expired %d orders", expired)
	}

	return expired, nil
}

// removeOrder closes an active order on its book's worker.
func (c *Coordinator) removeOrder(ctx context.Context, order *models.Order, status types.OrderStatus, reason string) (*models.Order, error) {
	var closed *models.Order

	err := c.onWorker(ctx, order.Key(), func(ctx context.Context) error {
		var err error
		closed, err = c.closeOrder(ctx, c.engineFor(ctx, order.Instrument), order.ID, status, reason)
		return err
	})

	return closed, err
}

// closeOrder takes an active order off engine and moves it to status. The
// reservation backing trades still awaiting settlement stays locked. The book
// entry is put back when the ledger update fails. It must run on the book's
// worker.
func (c *Coordinator) closeOrder(ctx context.Context, engine *matching.Engine, orderID int64, status types.OrderStatus, reason string) (*models.Order, error) {
	var closed *models.Order

	booked, inBook := engine.Cancel(orderID)

	err := c.tx(ctx, func(uow ledger.UnitOfWork) error {
		current, err := uow.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !current.IsActive() {
			return ErrOrderNotModifiable
		}

		if err := current.Transition(status, c.Now()); err != nil {
			return err
		}

		if status == types.StatusCancelled {
			current.CancelReason = null.StringFrom(reason)
		}

		held, err := c.heldForOpenTrades(ctx, uow, current)
		if err != nil {
			return err
		}

		if err := c.adjustReservation(ctx, uow, current, held); err != nil {
			return err
		}

		closed = current
		return uow.SaveOrder(ctx, current)
	})

	if err != nil && inBook && !errors.Is(err, ErrOrderNotModifiable) {
		engine.Restore(booked)
	}

	return closed, err
}

// ModifyOrder amends quantity, prices or expiry of an active order. Lowering
// the quantity keeps the order's place in the book; any other change to
// price or quantity re-queues it at the back and may match at once.
func (c *Coordinator) ModifyOrder(ctx context.Context, memberID, orderID int64, fields models.ModifyFields) (*OrderResult, error) {
	if fields.Empty() {
		return nil, types.NewError(types.KindValidation, "market.order.invalid_params", "nothing to modify").WithViolations("market.order.nothing_to_modify")
	}

	order, err := c.ownedOrder(ctx, memberID, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsActive() {
		return nil, ErrOrderNotModifiable
	}

	if err := validateModify(order, fields, c.Now()); err != nil {
		return nil, err
	}

	if fields.Quantity.Valid && fields.Quantity.Decimal.GreaterThan(order.Quantity) {
		if err := c.recheckRisk(ctx, order, fields); err != nil {
			return nil, err
		}
	}

	var trades []*models.Trade
	err = c.onWorker(ctx, order.Key(), func(ctx context.Context) error {
		var err error
		trades, err = c.modify(ctx, order.ID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}

	fresh, err := c.store.FindOrder(ctx, order.ID)
	if err != nil {
		return nil, unavailable(err)
	}

	c.auditor.Record(ctx, audit.Event{
		Kind:     audit.KindOrderModified,
		MemberID: fresh.MemberID,
		OrderID:  fresh.ID,
		Details: map[string]interface{}{
			"quantity":   fresh.Quantity,
			"price":      fresh.Price,
			"stop_price": fresh.StopPrice,
			"expires_at": fresh.ExpiresAt,
		},
		CreatedAt: c.Now(),
	})
	c.publishOrder(fresh)

	return newResult(fresh, trades), nil
}

func validateModify(order *models.Order, fields models.ModifyFields, now time.Time) error {
	var codes []string
	precision := concerns.PrecisionValidator{}

	if fields.Quantity.Valid {
		if !fields.Quantity.Decimal.IsPositive() {
			codes = append(codes, "market.order.non_positive_quantity")
		} else if fields.Quantity.Decimal.LessThan(order.FilledQuantity) {
			codes = append(codes, "market.order.quantity_below_filled")
		} else if !precision.LessThanOrEqTo(fields.Quantity.Decimal, concerns.QuantityPrecision) {
			codes = append(codes, "market.order.quantity_precision")
		}
	}

	if fields.Price.Valid {
		if !order.Type.RequiresPrice() {
			codes = append(codes, "market.order.unexpected_price")
		} else if !fields.Price.Decimal.IsPositive() {
			codes = append(codes, "market.order.non_positive_price")
		} else if !precision.LessThanOrEqTo(fields.Price.Decimal, concerns.PricePrecision) {
			codes = append(codes, "market.order.price_precision")
		}
	}

	if fields.StopPrice.Valid {
		switch {
		case !order.Type.RequiresStopPrice():
			codes = append(codes, "market.order.unexpected_stop_price")
		case order.TriggeredAt.Valid:
			codes = append(codes, "market.order.already_triggered")
		case !fields.StopPrice.Decimal.IsPositive():
			codes = append(codes, "market.order.non_positive_stop_price")
		}
	}

	if fields.ExpiresAt.Valid && !fields.ExpiresAt.Time.After(now) {
		codes = append(codes, "market.order.expired")
	}

	if len(codes) > 0 {
		return types.NewError(types.KindValidation, "market.order.invalid_params", "modification is invalid").WithViolations(codes...)
	}

	return nil
}

// recheckRisk runs the risk gate on the quantity a modification adds.
func (c *Coordinator) recheckRisk(ctx context.Context, order *models.Order, fields models.ModifyFields) error {
	member, err := c.members.FindMember(ctx, order.MemberID)
	if err != nil {
		return unavailable(err)
	}

	intent := models.OrderIntent{
		ClientOrderID: order.ClientOrderID,
		CreditType:    order.Instrument.CreditType,
		VintageYear:   order.Instrument.VintageYear,
		ProjectID:     order.Instrument.ProjectID,
		Side:          order.Side,
		Type:          order.Type,
		Quantity:      fields.Quantity.Decimal.Sub(order.Quantity),
		Price:         order.Price,
		StopPrice:     order.StopPrice,
	}
	if fields.Price.Valid {
		intent.Price = fields.Price
	}
	if fields.StopPrice.Valid {
		intent.StopPrice = fields.StopPrice
	}

	result := c.risk.CheckOrderRisk(ctx, member, intent)
	if result.Approved {
		return nil
	}

	return types.NewError(types.KindRiskRejection, "risk.order.rejected", "modification rejected by the risk gate").WithViolations(result.Violations.Codes()...)
}

// modify applies fields in the ledger, then replays the change on the book.
// It must run on the book's worker.
func (c *Coordinator) modify(ctx context.Context, orderID int64, fields models.ModifyFields) ([]*models.Trade, error) {
	now := c.Now()

	var (
		updated   *models.Order
		committed decimal.Decimal
		requeue   bool
		reduced   bool
	)

	err := c.tx(ctx, func(uow ledger.UnitOfWork) error {
		order, err := uow.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !order.IsActive() {
			return ErrOrderNotModifiable
		}

		if committed, err = committedQuantity(ctx, uow, order); err != nil {
			return err
		}

		oldRemaining := order.RemainingQuantity()
		perUnit := decimal.Zero
		if oldRemaining.IsPositive() {
			perUnit = order.Locked.Div(oldRemaining)
		}

		requeue, reduced = false, false

		if fields.Price.Valid && !fields.Price.Decimal.Equal(order.Price.Decimal) {
			order.Price = fields.Price
			requeue = true
		}

		if fields.StopPrice.Valid && !fields.StopPrice.Decimal.Equal(order.StopPrice.Decimal) {
			order.StopPrice = fields.StopPrice
			requeue = true
		}

		if fields.Quantity.Valid {
			quantity := fields.Quantity.Decimal
			if quantity.LessThan(committed) {
				return types.NewError(types.KindValidation, "market.order.invalid_params", "quantity is below the matched quantity").WithViolations("market.order.quantity_below_filled")
			}

			switch {
			case quantity.GreaterThan(order.Quantity):
				requeue = true
			case quantity.LessThan(order.Quantity):
				reduced = true
			}
			order.Quantity = quantity
		}

		if fields.ExpiresAt.Valid {
			order.ExpiresAt = fields.ExpiresAt
		}

		if requeue {
			order.RankedAt = now
		}

		if order.RemainingQuantity().IsZero() {
			if err := order.Transition(types.StatusFilled, now); err != nil {
				return err
			}

			if err := c.adjustReservation(ctx, uow, order, decimal.Zero); err != nil {
				return err
			}
		} else if err := c.adjustReservation(ctx, uow, order, c.modifiedReservation(order, perUnit)); err != nil {
			return err
		}

		updated = order
		return uow.SaveOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	engine := c.engineFor(ctx, updated.Instrument)

	switch {
	case !updated.IsActive() || updated.Quantity.Equal(committed):
		engine.Cancel(updated.ID)
	case requeue:
		engine.Cancel(updated.ID)

		attributes := updated.ToMatchingAttributes()
		attributes.FilledQuantity = committed

		return c.afterMatch(ctx, engine, updated.Instrument, engine.Submit(attributes))
	case reduced:
		engine.Amend(updated.ID, updated.Quantity)
	}

	return nil, nil
}

// modifiedReservation sizes the reservation of an amended order. Buys with a
// limit price reserve at the new limit; other buys keep the unit reservation
// they were submitted with.
func (c *Coordinator) modifiedReservation(order *models.Order, perUnit decimal.Decimal) decimal.Decimal {
	if !order.IsBuy() {
		return order.RemainingQuantity()
	}

	if _, ok := order.LimitPrice(); ok {
		return c.reservation(order, decimal.Zero)
	}

	return order.RemainingQuantity().Mul(perUnit)
}

// heldForOpenTrades is the part of order's reservation its unsettled trades
// still draw on, capped at what the order holds.
func (c *Coordinator) heldForOpenTrades(ctx context.Context, uow ledger.UnitOfWork, order *models.Order) (decimal.Decimal, error) {
	held, err := settlement.OpenTradesReservation(ctx, uow, c.fees, order, 0)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.Min(held, order.Locked), nil
}
