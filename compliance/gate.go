// Package compliance implements the pre-trade regulatory gate: KYC,
// sanctions, velocity and market-abuse heuristics over recent history.
package compliance

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
	"github.com/zsmartex/carbonex/services/oracle"
	"github.com/zsmartex/carbonex/types"
)

const (
	CodeDataUnavailable     = "compliance.data_unavailable"
	CodeMemberInactive      = "compliance.member_inactive"
	CodeKYCRequired         = "compliance.kyc_required"
	CodeEnhancedKYCRequired = "compliance.enhanced_kyc_required"
	CodeSanctioned          = "compliance.sanctioned"
	CodeOutsideTradingHours = "compliance.outside_trading_hours"
	CodeHourlyVelocity      = "compliance.hourly_velocity_exceeded"
	CodeDailyVelocity       = "compliance.daily_velocity_exceeded"
	CodeWashTrading         = "compliance.wash_trading_suspected"
	CodePriceImpact         = "compliance.price_impact"
	CodeCancelRate          = "compliance.excessive_cancel_rate"
	CodeLargeTransaction    = "compliance.large_transaction"
)

var weekdays = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

type Result struct {
	Approved             bool             `json:"approved"`
	Violations           types.Violations `json:"violations"`
	RequiresManualReview bool             `json:"requires_manual_review"`
	RequiresReporting    bool             `json:"requires_reporting"`
}

type Gate struct {
	policy    config.CompliancePolicy
	store     ledger.Reader
	prices    oracle.PriceOracle
	watchlist Watchlist
	location  *time.Location
	Now       func() time.Time
}

func NewGate(policy config.CompliancePolicy, store ledger.Reader, prices oracle.PriceOracle, watchlist Watchlist) (*Gate, error) {
	location := time.UTC
	if len(policy.TradingHours.Location) > 0 {
		loc, err := time.LoadLocation(policy.TradingHours.Location)
		if err != nil {
			return nil, fmt.Errorf("trading hours location: %w", err)
		}
		location = loc
	}

	return &Gate{
		policy:    policy,
		store:     store,
		prices:    prices,
		watchlist: watchlist,
		location:  location,
		Now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type check struct {
	violations types.Violations
	review     bool
	reporting  bool
}

func (c *check) add(code string, severity types.Severity, format string, args ...interface{}) {
	c.violations = append(c.violations, types.Violation{
		Code:     code,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

// CheckOrderCompliance runs every compliance rule for intent. It reads order
// and trade history and never mutates it.
func (g *Gate) CheckOrderCompliance(ctx context.Context, member *models.Member, intent models.OrderIntent) Result {
	now := g.Now()
	instrument := intent.Instrument()
	c := &check{}

	value, err := g.orderValue(ctx, intent)
	if err != nil {
		return g.unavailable(member, "price oracle", err)
	}

	if !member.IsActive() {
		c.add(CodeMemberInactive, types.SeverityCritical, "member %d is %s", member.ID, member.State)
	}

	g.checkKYC(c, member, value)

	listed, err := g.watchlist.IsListed(ctx, member)
	if err != nil {
		return g.unavailable(member, "watchlist", err)
	}
	if listed || member.Sanctioned {
		c.add(CodeSanctioned, types.SeverityCritical, "member %d is on a sanctions list", member.ID)
	}

	g.checkTradingHours(c, member, now)

	steps := []func(context.Context, *check, *models.Member, models.OrderIntent, time.Time) error{
		g.checkVelocity,
		g.checkWashTrading,
		g.checkCancelRate,
	}
	for _, step := range steps {
		if err := step(ctx, c, member, intent, now); err != nil {
			return g.unavailable(member, "order history", err)
		}
	}

	if err := g.checkPriceImpact(ctx, c, instrument, intent, now); err != nil {
		return g.unavailable(member, "trade history", err)
	}

	if threshold := g.policy.ReportingThreshold.Decimal; threshold.IsPositive() && value.GreaterThanOrEqual(threshold) {
		c.add(CodeLargeTransaction, types.SeverityLow, "order value %s reaches the reporting threshold %s", value.StringFixed(2), threshold)
		c.reporting = true
	}

	result := Result{
		Approved:             !c.violations.Blocking(),
		Violations:           c.violations,
		RequiresManualReview: c.review,
		RequiresReporting:    c.reporting,
	}

	if !result.Approved || result.RequiresManualReview {
		config.Logger.WithFields(logrus.Fields{
			"member_id":  member.ID,
			"instrument": instrument.Key(),
			"violations": c.violations.Codes(),
			"approved":   result.Approved,
		}).Info("[carbonex.compliance] order flagged")
	}

	return result
}

// orderValue prices the intent at its own price, else the oracle price. An
// unpriceable order is valued at zero and left to the risk gate.
func (g *Gate) orderValue(ctx context.Context, intent models.OrderIntent) (decimal.Decimal, error) {
	if price, ok := intent.PriceHint(); ok {
		return intent.Quantity.Mul(price), nil
	}

	price, err := g.prices.GetCurrentPrice(ctx, intent.Instrument())
	if errors.Is(err, oracle.ErrNoPriceData) {
		return decimal.Zero, nil
	} else if err != nil {
		return decimal.Zero, err
	}

	return intent.Quantity.Mul(price), nil
}

func (g *Gate) unavailable(member *models.Member, what string, err error) Result {
	config.Logger.Errorf("[carbonex.compliance] failed to read %s for member %d, rejecting order: %v", what, member.ID, err)

	return Result{
		Approved: false,
		Violations: types.Violations{{
			Code:     CodeDataUnavailable,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("%s unavailable", what),
		}},
	}
}
