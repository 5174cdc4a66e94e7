package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zsmartex/carbonex/compliance"
	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/risk"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/types"
)

// SubmitOrder validates intent, runs both gates, reserves the member's cash
// or credits and hands the order to its book. Resubmitting a client order id
// returns the order created the first time.
func (c *Coordinator) SubmitOrder(ctx context.Context, memberID int64, intent models.OrderIntent) (*OrderResult, error) {
	if err := intent.Validate(c.Now()); err != nil {
		return nil, err
	}

	key := strconv.FormatInt(memberID, 10) + ":" + intent.ClientOrderID
	value, err, _ := c.submissions.Do(key, func() (interface{}, error) {
		return c.submit(ctx, memberID, intent)
	})

	result, _ := value.(*OrderResult)
	return result, err
}

func (c *Coordinator) submit(ctx context.Context, memberID int64, intent models.OrderIntent) (*OrderResult, error) {
	if existing, err := c.store.FindOrderByClientID(ctx, memberID, intent.ClientOrderID); err == nil {
		return c.resultFor(ctx, existing)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, unavailable(err)
	}

	member, err := c.members.FindMember(ctx, memberID)
	if err != nil {
		return nil, unavailable(err)
	}

	var (
		riskResult       risk.Result
		complianceResult compliance.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		riskResult = c.risk.CheckOrderRisk(gctx, member, intent)
		return nil
	})
	g.Go(func() error {
		complianceResult = c.compliance.CheckOrderCompliance(gctx, member, intent)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.Now()
	order := &models.Order{
		ClientOrderID:     intent.ClientOrderID,
		MemberID:          member.ID,
		Instrument:        intent.Instrument(),
		Side:              intent.Side,
		Type:              intent.Type,
		Quantity:          intent.Quantity,
		Price:             intent.Price,
		StopPrice:         intent.StopPrice,
		Status:            types.StatusPending,
		RiskChecked:       true,
		ComplianceChecked: true,
		RiskScore:         riskResult.RiskScore,
		RequiresReview:    complianceResult.RequiresManualReview,
		ReportingRequired: complianceResult.RequiresReporting,
		ExpiresAt:         intent.ExpiresAt,
		CreatedAt:         now,
		RankedAt:          now,
	}

	if rejection := gateRejection(riskResult, complianceResult); rejection != nil {
		return c.reject(ctx, order, rejection)
	}

	var shortfall error
	err = c.tx(ctx, func(uow ledger.UnitOfWork) error {
		order.ID = 0
		order.Locked = decimal.Zero
		order.Status = types.StatusPending
		shortfall = nil

		if err := c.adjustReservation(ctx, uow, order, c.reservation(order, riskResult.ReferencePrice)); err != nil {
			if types.KindOf(err) != types.KindInsufficientBalance {
				return err
			}

			shortfall = err
			if err := order.Reject(types.CodeOf(err), now); err != nil {
				return err
			}

			return uow.CreateOrder(ctx, order)
		}

		if err := order.Transition(types.StatusOpen, now); err != nil {
			return err
		}

		return uow.CreateOrder(ctx, order)
	})

	if errors.Is(err, ledger.ErrDuplicate) {
		return c.replay(ctx, memberID, intent.ClientOrderID)
	} else if err != nil {
		return nil, unavailable(err)
	}

	if shortfall != nil {
		c.recordRejection(ctx, order, []string{types.CodeOf(shortfall)})
		return newResult(order, nil), shortfall
	}

	c.auditor.Record(ctx, audit.Event{
		Kind:     audit.KindOrderSubmitted,
		MemberID: order.MemberID,
		OrderID:  order.ID,
		Details: map[string]interface{}{
			"instrument":         order.Key(),
			"side":               order.Side,
			"type":               order.Type,
			"quantity":           order.Quantity,
			"risk_score":         order.RiskScore,
			"requires_review":    order.RequiresReview,
			"reporting_required": order.ReportingRequired,
			"warnings":           append(riskResult.Violations.Codes(), complianceResult.Violations.Codes()...),
		},
		CreatedAt: now,
	})
	c.publishOrder(order)

	err = c.onWorker(ctx, order.Key(), func(ctx context.Context) error {
		engine := c.engineFor(ctx, order.Instrument)
		_, err := c.afterMatch(ctx, engine, order.Instrument, engine.Submit(order.ToMatchingAttributes()))
		return err
	})
	if err != nil {
		return nil, err
	}

	fresh, err := c.store.FindOrder(ctx, order.ID)
	if err != nil {
		return nil, unavailable(err)
	}

	return c.resultFor(ctx, fresh)
}

// replay answers a submission that lost the race for its client order id.
func (c *Coordinator) replay(ctx context.Context, memberID int64, clientOrderID string) (*OrderResult, error) {
	existing, err := c.store.FindOrderByClientID(ctx, memberID, clientOrderID)
	if err != nil {
		return nil, unavailable(err)
	}

	return c.resultFor(ctx, existing)
}

// gateRejection merges the verdicts of both gates. Risk takes precedence when
// both reject; the violations of both are reported.
func gateRejection(riskResult risk.Result, complianceResult compliance.Result) *types.Error {
	if riskResult.Approved && complianceResult.Approved {
		return nil
	}

	codes := append(riskResult.Violations.Codes(), complianceResult.Violations.Codes()...)

	if !riskResult.Approved {
		return types.NewError(types.KindRiskRejection, "risk.order.rejected", "order rejected by the risk gate").WithViolations(codes...)
	}

	return types.NewError(types.KindComplianceRejection, "compliance.order.rejected", "order rejected by the compliance gate").WithViolations(codes...)
}

// reject persists order as REJECTED and returns the rejection to the caller.
func (c *Coordinator) reject(ctx context.Context, order *models.Order, cause *types.Error) (*OrderResult, error) {
	if err := order.Reject(cause.Code+": "+strings.Join(cause.Violations, ", "), order.CreatedAt); err != nil {
		return nil, err
	}

	err := c.tx(ctx, func(uow ledger.UnitOfWork) error {
		return uow.CreateOrder(ctx, order)
	})
	if errors.Is(err, ledger.ErrDuplicate) {
		return c.replay(ctx, order.MemberID, order.ClientOrderID)
	} else if err != nil {
		return nil, unavailable(err)
	}

	c.recordRejection(ctx, order, cause.Violations)
	return newResult(order, nil), cause
}

func (c *Coordinator) recordRejection(ctx context.Context, order *models.Order, violations []string) {
	config.Logger.WithFields(logrus.Fields{
		"member_id":  order.MemberID,
		"order_id":   order.ID,
		"instrument": order.Key(),
		"violations": violations,
	}).Info("[carbonex.pipeline] order rejected")

	c.auditor.Record(ctx, audit.Event{
		Kind:     audit.KindOrderRejected,
		MemberID: order.MemberID,
		OrderID:  order.ID,
		Details: map[string]interface{}{
			"reason":     order.RejectionReason.String,
			"violations": violations,
		},
		CreatedAt: order.CreatedAt,
	})
	c.publishOrder(order)
}

// reservation is the cash (buys) or quantity (sells) held for the unfilled
// part of order. Buys without a limit price reserve at the reference price
// plus the market buffer; every buy reserves the worst-case buyer fee.
func (c *Coordinator) reservation(order *models.Order, referencePrice decimal.Decimal) decimal.Decimal {
	remaining := order.RemainingQuantity()
	if !order.IsBuy() {
		return remaining
	}

	price, ok := order.LimitPrice()
	if !ok {
		price = referencePrice.Mul(decimal.NewFromInt(1).Add(c.policy.Risk.MarketReserveBuffer.Decimal))
	}

	return remaining.Mul(price).Mul(decimal.NewFromInt(1).Add(c.fees.MaxBuyerRate()))
}

// adjustReservation moves the order's reservation to target, locking or
// releasing the difference on the member's account or holding.
func (c *Coordinator) adjustReservation(ctx context.Context, uow ledger.UnitOfWork, order *models.Order, target decimal.Decimal) error {
	delta := target.Sub(order.Locked)
	if delta.IsZero() {
		return nil
	}

	if order.IsBuy() {
		account, err := uow.LockAccount(ctx, order.MemberID)
		if err != nil {
			return err
		}

		if delta.IsPositive() {
			err = account.LockFunds(delta)
		} else if release := decimal.Min(delta.Neg(), account.Locked); release.IsPositive() {
			err = account.UnlockFunds(release)
		}
		if err != nil {
			return err
		}

		if err := uow.SaveAccount(ctx, account); err != nil {
			return err
		}
	} else {
		holding, err := uow.LockHolding(ctx, order.MemberID, order.Instrument)
		if err != nil {
			return err
		}

		if delta.IsPositive() {
			err = holding.Lock(delta)
		} else if release := decimal.Min(delta.Neg(), holding.Locked); release.IsPositive() {
			err = holding.Unlock(release)
		} else {
			order.Locked = target
			return nil
		}
		if err != nil {
			return err
		}

		if err := uow.SaveHolding(ctx, holding); err != nil {
			return err
		}
	}

	order.Locked = target
	return nil
}

// tx runs fn in a ledger transaction, retrying version conflicts.
func (c *Coordinator) tx(ctx context.Context, fn func(uow ledger.UnitOfWork) error) error {
	retries := c.policy.Settlement.MaxConflictRetries

	var err error
	for attempt := 0; ; attempt++ {
		err = c.store.Tx(ctx, fn)
		if err == nil || !errors.Is(err, ledger.ErrConflict) || attempt >= retries {
			break
		}
	}

	if errors.Is(err, ledger.ErrConflict) {
		return types.Wrap(types.KindTemporarilyUnavailable, ErrUnavailable.Code, err)
	}

	return err
}
