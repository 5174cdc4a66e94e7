// Package settlement turns matched trades into final holdings and cash
// movements. Each trade settles in a single ledger transaction.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/types"
)

var ErrTradeFailed = types.NewError(types.KindInvalidState, "settlement.trade.failed", "trade has been marked failed")

// Confirmer obtains the external settlement confirmation for a trade.
type Confirmer interface {
	Confirm(ctx context.Context, trade *models.Trade) (reference string, err error)
}

// ImmediateConfirmer confirms synchronously with a reference derived from the
// trade uuid.
type ImmediateConfirmer struct{}

func (ImmediateConfirmer) Confirm(_ context.Context, trade *models.Trade) (string, error) {
	return "STL-" + trade.UUID.String(), nil
}

type Outcome struct {
	TradeID   int64             `json:"trade_id"`
	Status    types.TradeStatus `json:"status"`
	Reference string            `json:"reference,omitempty"`
	Attempts  int               `json:"attempts"`
}

type Engine struct {
	store     ledger.Store
	fees      *models.FeeSchedule
	policy    config.SettlementPolicy
	confirmer Confirmer
	auditor   audit.Auditor
	recorder  Recorder
	Now       func() time.Time
}

func NewEngine(store ledger.Store, fees *models.FeeSchedule, policy config.SettlementPolicy, confirmer Confirmer, auditor audit.Auditor, recorder Recorder) *Engine {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Engine{
		store:     store,
		fees:      fees,
		policy:    policy,
		confirmer: confirmer,
		auditor:   auditor,
		recorder:  recorder,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Settle settles the trade. Version conflicts are retried; any other failure
// leaves every row untouched, counts an attempt and schedules a retry, and
// after the last attempt marks the trade FAILED.
func (e *Engine) Settle(ctx context.Context, tradeID int64) (*Outcome, error) {
	var (
		trade *models.Trade
		err   error
	)

	retries := e.policy.MaxConflictRetries
	for attempt := 0; ; attempt++ {
		trade, err = e.settleOnce(ctx, tradeID)
		if err == nil || !errors.Is(err, ledger.ErrConflict) || attempt >= retries {
			break
		}

		config.Logger.Warnf("[carbonex.settlement] trade %d hit a version conflict, retrying (%d/%d)", tradeID, attempt+1, retries)
	}

	if err == nil {
		e.afterSettled(ctx, trade)
		return &Outcome{TradeID: trade.ID, Status: trade.Status, Reference: trade.SettlementReference.String, Attempts: trade.Attempts}, nil
	}

	if errors.Is(err, ErrTradeFailed) || errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	outcome := e.recordFailure(ctx, tradeID, err)

	if errors.Is(err, ledger.ErrConflict) {
		return outcome, types.Wrap(types.KindTemporarilyUnavailable, "settlement.trade.busy", err)
	}

	return outcome, types.Wrap(types.KindSettlementFailure, "settlement.trade.failed_attempt", err)
}

func (e *Engine) settleOnce(ctx context.Context, tradeID int64) (*models.Trade, error) {
	var settled *models.Trade

	err := e.store.Tx(ctx, func(uow ledger.UnitOfWork) error {
		trade, err := uow.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}

		switch trade.Status {
		case types.TradeStatusSettled:
			settled = trade
			return nil
		case types.TradeStatusFailed:
			return fmt.Errorf("trade %d: %w", trade.ID, ErrTradeFailed)
		}

		s := &strike{uow: uow, trade: trade, fees: e.fees, now: e.Now()}
		if err := s.execute(ctx); err != nil {
			return err
		}

		if trade.Status == types.TradeStatusPending {
			if err := trade.Confirm(); err != nil {
				return err
			}
		}

		reference, err := e.confirmer.Confirm(ctx, trade)
		if err != nil {
			return fmt.Errorf("confirming trade %d: %w", trade.ID, err)
		}

		if err := trade.MarkSettled(reference, s.now); err != nil {
			return err
		}

		trade.FailureReason.Valid = false
		trade.NextAttemptAt.Valid = false

		if err := uow.SaveTrade(ctx, trade); err != nil {
			return err
		}

		settled = trade
		return nil
	})

	return settled, err
}

// recordFailure books a failed attempt in its own transaction.
func (e *Engine) recordFailure(ctx context.Context, tradeID int64, cause error) *Outcome {
	var outcome *Outcome
	now := e.Now()

	err := e.store.Tx(ctx, func(uow ledger.UnitOfWork) error {
		trade, err := uow.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}

		if !trade.IsOpen() {
			outcome = &Outcome{TradeID: trade.ID, Status: trade.Status, Attempts: trade.Attempts}
			return nil
		}

		if e.policy.MaxAttempts > 0 && trade.Attempts+1 >= e.policy.MaxAttempts {
			trade.Attempts++
			trade.MarkFailed(cause.Error())
		} else {
			trade.ScheduleRetry(cause.Error(), e.policy.RetryBackoff.Duration, now)
		}

		if err := uow.SaveTrade(ctx, trade); err != nil {
			return err
		}

		outcome = &Outcome{TradeID: trade.ID, Status: trade.Status, Attempts: trade.Attempts}
		return nil
	})

	if err != nil {
		config.Logger.Errorf("[carbonex.settlement] failed to record failure of trade %d: %v (cause: %v)", tradeID, err, cause)
		return &Outcome{TradeID: tradeID, Status: types.TradeStatusPending}
	}

	if outcome.Status == types.TradeStatusFailed {
		config.Logger.WithFields(logrus.Fields{
			"trade_id": tradeID,
			"attempts": outcome.Attempts,
		}).Errorf("[carbonex.settlement] ALERT trade %d failed permanently: %v", tradeID, cause)

		e.auditor.Record(ctx, audit.Event{
			Kind:      audit.KindTradeFailed,
			TradeID:   tradeID,
			Details:   map[string]interface{}{"reason": cause.Error(), "attempts": outcome.Attempts},
			CreatedAt: now,
		})
	} else {
		config.Logger.Warnf("[carbonex.settlement] trade %d attempt %d failed, retrying later: %v", tradeID, outcome.Attempts, cause)
	}

	return outcome
}

func (e *Engine) afterSettled(ctx context.Context, trade *models.Trade) {
	if err := e.recorder.RecordTrade(trade); err != nil {
		config.Logger.Warnf("[carbonex.settlement] failed to record trade %d metrics: %v", trade.ID, err)
	}

	e.auditor.Record(ctx, audit.Event{
		Kind:    audit.KindTradeSettled,
		TradeID: trade.ID,
		Details: map[string]interface{}{
			"instrument": trade.Key(),
			"quantity":   trade.Quantity,
			"price":      trade.Price,
			"reference":  trade.SettlementReference.String,
		},
		CreatedAt: trade.SettledAt.Time,
	})
}

// RetryDue re-settles every open trade whose next attempt is due. It is
// driven by the settlement retry job.
func (e *Engine) RetryDue(ctx context.Context) (settled int, err error) {
	trades, err := e.store.DueTrades(ctx, e.Now())
	if err != nil {
		return 0, err
	}

	for _, trade := range trades {
		outcome, err := e.Settle(ctx, trade.ID)
		if err != nil {
			continue
		}

		if outcome.Status == types.TradeStatusSettled {
			settled++
		}
	}

	return settled, nil
}

// validateTrade checks the match against both orders before any balance moves.
func validateTrade(trade *models.Trade, buy, sell *models.Order) error {
	if buy.Side != types.SideBuy || sell.Side != types.SideSell {
		return types.Errorf(types.KindInvalidState, "settlement.trade.side_mismatch", "trade %d pairs order %d (%s) with %d (%s)", trade.ID, buy.ID, buy.Side, sell.ID, sell.Side)
	}

	if buy.Key() != trade.Key() || sell.Key() != trade.Key() {
		return types.Errorf(types.KindInvalidState, "settlement.trade.instrument_mismatch", "trade %d on %s does not match its orders", trade.ID, trade.Key())
	}

	if limit, ok := buy.LimitPrice(); ok && limit.LessThan(trade.Price) {
		return types.Errorf(types.KindInvalidState, "settlement.trade.price_above_bid", "trade price %s exceeds bid %s", trade.Price, limit)
	}

	if limit, ok := sell.LimitPrice(); ok && limit.GreaterThan(trade.Price) {
		return types.Errorf(types.KindInvalidState, "settlement.trade.price_below_ask", "trade price %s is below ask %s", trade.Price, limit)
	}

	if !trade.Quantity.IsPositive() || decimal.Min(buy.RemainingQuantity(), sell.RemainingQuantity()).LessThan(trade.Quantity) {
		return types.Errorf(types.KindInvalidState, "settlement.trade.overfill", "trade %d quantity %s exceeds the remaining quantity of its orders", trade.ID, trade.Quantity)
	}

	return nil
}
