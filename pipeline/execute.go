package pipeline

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/types"
)

// engineFor returns the book of instrument, seeding its last price from the
// ledger the first time it is used.
func (c *Coordinator) engineFor(ctx context.Context, instrument models.Instrument) *matching.Engine {
	engine := c.engines.Get(instrument.Key())
	if engine.Initialized() {
		return engine
	}

	price := decimal.Zero
	if trade, err := c.store.LastTrade(ctx, instrument); err == nil {
		price = trade.Price
	} else if !errors.Is(err, ledger.ErrNotFound) {
		config.Logger.Warnf("[carbonex.pipeline] failed to load last price of %s: %v", instrument.Key(), err)
	}

	engine.Initialize(price)
	return engine
}

// afterMatch persists what one book pass produced: triggered stops, then one
// PENDING trade per match, then settles each trade. Orders behind matches that
// cannot be recorded, or whose trade fails for good, are closed. It must run
// on the book's worker.
func (c *Coordinator) afterMatch(ctx context.Context, engine *matching.Engine, instrument models.Instrument, matches []matching.Match) ([]*models.Trade, error) {
	if triggered := engine.TakeTriggered(); len(triggered) > 0 {
		c.markTriggered(ctx, triggered)
	}

	if len(matches) == 0 {
		return nil, nil
	}

	trades, err := c.recordTrades(ctx, instrument, matches)
	if err != nil {
		config.Logger.WithFields(logrus.Fields{
			"instrument": instrument.Key(),
			"matches":    len(matches),
		}).Errorf("[carbonex.pipeline] ALERT failed to record matches: %v", err)

		orderIDs := make([]int64, 0, 2*len(matches))
		for _, match := range matches {
			orderIDs = append(orderIDs, match.BuyOrderID, match.SellOrderID)
		}
		c.dropUnsettled(ctx, engine, orderIDs)

		return nil, types.Wrap(types.KindSettlementFailure, "settlement.trade.not_recorded", err)
	}

	var failed []int64
	for _, trade := range trades {
		outcome, err := c.settlement.Settle(ctx, trade.ID)
		if err != nil {
			config.Logger.Warnf("[carbonex.pipeline] trade %d left for the retry job: %v", trade.ID, err)
		}

		if outcome != nil && outcome.Status == types.TradeStatusFailed {
			failed = append(failed, trade.BuyOrderID, trade.SellOrderID)
		}
	}

	c.publishTrades(engine.Symbol, trades)
	c.dropUnsettled(ctx, engine, failed)

	return trades, nil
}

// dropUnsettled closes the orders behind matches that will never settle, so
// the book stops counting those fills, and releases what already closed
// orders still held for them. It must run on the book's worker.
func (c *Coordinator) dropUnsettled(ctx context.Context, engine *matching.Engine, orderIDs []int64) {
	seen := make(map[int64]bool, len(orderIDs))

	for _, id := range orderIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		closed, err := c.closeOrder(ctx, engine, id, types.StatusCancelled, unsettledCancelReason)
		if errors.Is(err, ErrOrderNotModifiable) {
			err = c.releaseUnsettled(ctx, id)
		} else if err == nil {
			c.auditor.Record(ctx, audit.Event{
				Kind:      audit.KindOrderCancelled,
				MemberID:  closed.MemberID,
				OrderID:   closed.ID,
				Details:   map[string]interface{}{"reason": unsettledCancelReason, "filled_quantity": closed.FilledQuantity},
				CreatedAt: closed.ClosedAt.Time,
			})
			c.publishOrder(closed)
		}

		if err != nil {
			config.Logger.Errorf("[carbonex.pipeline] ALERT failed to close order %d after a lost match: %v", id, err)
		}
	}
}

// releaseUnsettled trims the reservation of a closed order to what its open
// trades still need.
func (c *Coordinator) releaseUnsettled(ctx context.Context, orderID int64) error {
	return c.tx(ctx, func(uow ledger.UnitOfWork) error {
		order, err := uow.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		held, err := c.heldForOpenTrades(ctx, uow, order)
		if err != nil {
			return err
		}

		if held.Equal(order.Locked) {
			return nil
		}

		if err := c.adjustReservation(ctx, uow, order, held); err != nil {
			return err
		}

		return uow.SaveOrder(ctx, order)
	})
}

func (c *Coordinator) recordTrades(ctx context.Context, instrument models.Instrument, matches []matching.Match) ([]*models.Trade, error) {
	now := c.Now()

	var trades []*models.Trade
	err := c.tx(ctx, func(uow ledger.UnitOfWork) error {
		trades = make([]*models.Trade, 0, len(matches))

		for _, match := range matches {
			trade := &models.Trade{
				BuyOrderID:   match.BuyOrderID,
				SellOrderID:  match.SellOrderID,
				BuyerID:      match.BuyerID,
				SellerID:     match.SellerID,
				MakerOrderID: match.MakerOrderID,
				TakerOrderID: match.TakerOrderID,
				Instrument:   instrument,
				Quantity:     match.Quantity,
				Price:        match.Price,
				TotalValue:   match.Total(),
				Status:       types.TradeStatusPending,
				ExecutedAt:   now,
			}

			if err := uow.CreateTrade(ctx, trade); err != nil {
				return err
			}
			trades = append(trades, trade)
		}

		return nil
	})

	return trades, err
}

// markTriggered stamps the trigger time of stop orders the book converted.
func (c *Coordinator) markTriggered(ctx context.Context, ids []int64) {
	now := c.Now()

	for _, id := range ids {
		err := c.tx(ctx, func(uow ledger.UnitOfWork) error {
			order, err := uow.LockOrder(ctx, id)
			if err != nil {
				return err
			}

			if order.TriggeredAt.Valid {
				return nil
			}
			order.TriggeredAt = null.TimeFrom(now)

			return uow.SaveOrder(ctx, order)
		})
		if err != nil {
			config.Logger.Errorf("[carbonex.pipeline] failed to mark stop order %d triggered: %v", id, err)
		}
	}
}

// committedQuantity is what the book considers filled: the settled fills plus
// the quantity of trades still awaiting settlement.
func committedQuantity(ctx context.Context, reader ledger.Reader, order *models.Order) (decimal.Decimal, error) {
	trades, err := reader.ListTrades(ctx, ledger.TradeFilter{
		OrderID:  order.ID,
		Statuses: []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed},
	})
	if err != nil {
		return decimal.Zero, err
	}

	committed := order.FilledQuantity
	for _, trade := range trades {
		committed = committed.Add(trade.Quantity)
	}

	return committed, nil
}

// RetrySettlements re-settles every due trade on its book's worker.
func (c *Coordinator) RetrySettlements(ctx context.Context) (int, error) {
	trades, err := c.store.DueTrades(ctx, c.Now())
	if err != nil {
		return 0, unavailable(err)
	}

	settled := 0
	for _, trade := range trades {
		trade := trade

		err := c.onWorker(ctx, trade.Key(), func(ctx context.Context) error {
			outcome, err := c.settlement.Settle(ctx, trade.ID)
			if outcome != nil && outcome.Status == types.TradeStatusFailed {
				c.dropUnsettled(ctx, c.engineFor(ctx, trade.Instrument), []int64{trade.BuyOrderID, trade.SellOrderID})
			}
			if err != nil {
				return err
			}

			if outcome.Status == types.TradeStatusSettled {
				settled++
			}
			return nil
		})
		if err != nil {
			config.Logger.Warnf("[carbonex.pipeline] retry of trade %d failed: %v", trade.ID, err)
		}
	}

	return settled, nil
}
