// Package risk implements the pre-trade risk gate. It only reads the ledger.
package risk

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
	CodeDataUnavailable      = "risk.data_unavailable"
	CodeNoReferencePrice     = "risk.no_reference_price"
	CodeOrderValue           = "risk.order_value_exceeded"
	CodeDailyValue           = "risk.daily_value_exceeded"
	CodePositionConcentrated = "risk.position_concentration"
	CodeSectorConcentrated   = "risk.sector_concentration"
	CodeVintageConcentrated  = "risk.vintage_concentration"
	CodePortfolioHHI         = "risk.portfolio_hhi"
	CodeTierLimit            = "risk.tier_limit_exceeded"
	CodeLiquidityBuffer      = "risk.liquidity_buffer"
	CodeMarketVolatility     = "risk.market_volatility"
	CodePriceDeviationWarn   = "risk.price_deviation"
	CodePriceDeviationBlock  = "risk.price_deviation_block"
)

type Result struct {
	Approved   bool             `json:"approved"`
	Violations types.Violations `json:"violations"`
	RiskScore  int              `json:"risk_score"`
	// ReferencePrice values the order: its own limit or stop price, else the
	// oracle price. Zero when no price is known.
	ReferencePrice decimal.Decimal `json:"reference_price"`
	OrderValue     decimal.Decimal `json:"order_value"`
}

type Gate struct {
	policy config.RiskPolicy
	store  ledger.Reader
	prices oracle.PriceOracle
	Now    func() time.Time
}

func NewGate(policy config.RiskPolicy, store ledger.Reader, prices oracle.PriceOracle) *Gate {
	return &Gate{
		policy: policy,
		store:  store,
		prices: prices,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// CheckOrderRisk runs every risk check for intent on behalf of member.
// Unreadable dependencies reject the order.
func (g *Gate) CheckOrderRisk(ctx context.Context, member *models.Member, intent models.OrderIntent) Result {
	instrument := intent.Instrument()
	now := g.Now()

	marketPrice, err := g.prices.GetCurrentPrice(ctx, instrument)
	if err != nil && !errors.Is(err, oracle.ErrNoPriceData) {
		return g.unavailable("price oracle", err)
	}

	refPrice, ok := intent.PriceHint()
	if !ok {
		refPrice = marketPrice
	}

	if !refPrice.IsPositive() {
		return g.finish(member, types.Violations{{
			Code:     CodeNoReferencePrice,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("no reference price for %s", instrument.Key()),
		}}, decimal.Zero, decimal.Zero)
	}

	value := intent.Quantity.Mul(refPrice)

	var violations types.Violations

	if ceiling := g.policy.MaxOrderValue.Decimal; ceiling.IsPositive() && value.GreaterThan(ceiling) {
		violations = append(violations, types.Violation{
			Code:     CodeOrderValue,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("order value %s exceeds %s", value.StringFixed(2), ceiling),
		})
	}

	startOfDay := now.UTC().Truncate(24 * time.Hour)
	traded, err := g.store.DailyTradedValue(ctx, member.ID, startOfDay)
	if err != nil {
		return g.unavailable("daily traded value", err)
	}

	if ceiling := g.policy.MaxDailyValue.Decimal; ceiling.IsPositive() && traded.Add(value).GreaterThan(ceiling) {
		violations = append(violations, types.Violation{
			Code:     CodeDailyValue,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("daily traded value %s plus order %s exceeds %s", traded.StringFixed(2), value.StringFixed(2), ceiling),
		})
	}

	if limit, ok := g.policy.TierLimits[string(member.RiskTier)]; ok && limit.IsPositive() && value.GreaterThan(limit.Decimal) {
		violations = append(violations, types.Violation{
			Code:     CodeTierLimit,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("order value %s exceeds the %s tier limit %s", value.StringFixed(2), member.RiskTier, limit.Decimal),
		})
	}

	if intent.Side == types.SideBuy {
		portfolio, err := g.loadPortfolio(ctx, member.ID)
		if err != nil {
			return g.unavailable("portfolio", err)
		}

		violations = append(violations, g.checkConcentration(portfolio, instrument, value)...)
		violations = append(violations, g.checkLiquidity(portfolio, value)...)
	}

	volatility, err := g.checkVolatility(ctx, instrument, now)
	if err != nil {
		return g.unavailable("recent trades", err)
	}
	violations = append(violations, volatility...)

	if limitPrice, ok := intent.PriceHint(); ok && marketPrice.IsPositive() {
		violations = append(violations, g.checkPriceDeviation(limitPrice, marketPrice)...)
	}

	return g.finish(member, violations, refPrice, value)
}

func (g *Gate) finish(member *models.Member, violations types.Violations, refPrice, value decimal.Decimal) Result {
	result := Result{
		Approved:       !violations.Blocking(),
		Violations:     violations,
		RiskScore:      violations.Score(),
		ReferencePrice: refPrice,
		OrderValue:     value,
	}

	if !result.Approved {
		config.Logger.WithFields(logrus.Fields{
			"member_id":  member.ID,
			"violations": violations.Codes(),
		}).Infof("[carbonex.risk] rejected order, score %d", result.RiskScore)
	}

	return result
}

func (g *Gate) unavailable(what string, err error) Result {
	config.Logger.Errorf("[carbonex.risk] failed to read %s, rejecting order: %v", what, err)

	violations := types.Violations{{
		Code:     CodeDataUnavailable,
		Severity: types.SeverityCritical,
		Message:  fmt.Sprintf("%s unavailable", what),
	}}

	return Result{
		Approved:   false,
		Violations: violations,
		RiskScore:  violations.Score(),
	}
}
