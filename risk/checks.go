package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type portfolio struct {
	holdings  []*models.PortfolioHolding
	cash      decimal.Decimal
	available decimal.Decimal
}

func (g *Gate) loadPortfolio(ctx context.Context, memberID int64) (*portfolio, error) {
	holdings, err := g.store.ListHoldings(ctx, memberID)
	if err != nil {
		return nil, err
	}

	p := &portfolio{holdings: holdings}

	account, err := g.store.FindAccount(ctx, memberID)
	if errors.Is(err, ledger.ErrNotFound) {
		return p, nil
	} else if err != nil {
		return nil, err
	}

	p.cash = account.Amount()
	p.available = account.Balance

	return p, nil
}

func (p *portfolio) holdingsValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.holdings {
		total = total.Add(h.MarketValue())
	}

	return total
}

// valueAfterBuy is the portfolio value once value of cash has been converted
// into credits. Cash never goes below zero.
func (p *portfolio) valueAfterBuy(value decimal.Decimal) decimal.Decimal {
	remaining := p.cash.Sub(value)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return p.holdingsValue().Add(value).Add(remaining)
}

func (g *Gate) checkConcentration(p *portfolio, instrument models.Instrument, value decimal.Decimal) types.Violations {
	total := p.valueAfterBuy(value)
	if !total.IsPositive() {
		return nil
	}

	position, sector, vintage := value, value, value
	positions := map[string]decimal.Decimal{instrument.Key(): value}

	for _, h := range p.holdings {
		mv := h.MarketValue()
		if !mv.IsPositive() {
			continue
		}

		positions[h.InstrumentKey] = positions[h.InstrumentKey].Add(mv)

		if h.InstrumentKey == instrument.Key() {
			position = position.Add(mv)
		}
		if h.Instrument.CreditType == instrument.CreditType {
			sector = sector.Add(mv)
		}
		if h.Instrument.VintageYear == instrument.VintageYear {
			vintage = vintage.Add(mv)
		}
	}

	var violations types.Violations

	checks := []struct {
		code     string
		severity types.Severity
		label    string
		amount   decimal.Decimal
		limit    decimal.Decimal
	}{
		{CodePositionConcentrated, types.SeverityHigh, "position in " + instrument.Key(), position, g.policy.MaxPositionPct.Decimal},
		{CodeSectorConcentrated, types.SeverityHigh, "credit type " + instrument.CreditType, sector, g.policy.MaxSectorPct.Decimal},
		{CodeVintageConcentrated, types.SeverityMedium, fmt.Sprintf("vintage %d", instrument.VintageYear), vintage, g.policy.MaxVintagePct.Decimal},
	}

	for _, c := range checks {
		if !c.limit.IsPositive() {
			continue
		}

		share := c.amount.Div(total)
		if share.GreaterThan(c.limit) {
			violations = append(violations, types.Violation{
				Code:     c.code,
				Severity: c.severity,
				Message:  fmt.Sprintf("%s would be %s of the portfolio, above %s", c.label, share.StringFixed(4), c.limit),
			})
		}
	}

	if hhi, ok := herfindahl(positions); ok && g.policy.MaxHHI.IsPositive() && hhi.GreaterThan(g.policy.MaxHHI.Decimal) {
		violations = append(violations, types.Violation{
			Code:     CodePortfolioHHI,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("portfolio HHI would be %s, above %s", hhi.StringFixed(4), g.policy.MaxHHI.Decimal),
		})
	}

	return violations
}

// herfindahl is the sum of squared weights of the credit positions. A
// single position is not scored.
func herfindahl(positions map[string]decimal.Decimal) (decimal.Decimal, bool) {
	if len(positions) < 2 {
		return decimal.Zero, false
	}

	total := decimal.Zero
	for _, v := range positions {
		total = total.Add(v)
	}

	if !total.IsPositive() {
		return decimal.Zero, false
	}

	hhi := decimal.Zero
	for _, v := range positions {
		w := v.Div(total)
		hhi = hhi.Add(w.Mul(w))
	}

	return hhi, true
}

func (g *Gate) checkLiquidity(p *portfolio, value decimal.Decimal) types.Violations {
	ratio := g.policy.MinLiquidityRatio.Decimal
	if !ratio.IsPositive() {
		return nil
	}

	required := ratio.Mul(p.valueAfterBuy(value))
	left := p.available.Sub(value)

	if left.LessThan(required) {
		return types.Violations{{
			Code:     CodeLiquidityBuffer,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("cash after the order %s is below the buffer %s", left.StringFixed(2), required.StringFixed(2)),
		}}
	}

	return nil
}

func (g *Gate) checkVolatility(ctx context.Context, instrument models.Instrument, now time.Time) (types.Violations, error) {
	limit := g.policy.MaxVolatility.Decimal
	if !limit.IsPositive() || g.policy.VolatilityWindow.Duration <= 0 {
		return nil, nil
	}

	trades, err := g.store.ListTrades(ctx, ledger.TradeFilter{
		Instrument: &instrument,
		Statuses:   []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed, types.TradeStatusSettled},
		From:       now.Add(-g.policy.VolatilityWindow.Duration),
		OrderBy:    types.OrderByAsc,
	})
	if err != nil {
		return nil, err
	}

	minTrades := g.policy.VolatilityMinTrades
	if minTrades < 2 {
		minTrades = 2
	}

	if len(trades) < minTrades {
		return nil, nil
	}

	returns := make([]decimal.Decimal, 0, len(trades)-1)
	for i := 1; i < len(trades); i++ {
		prev := trades[i-1].Price
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, trades[i].Price.Div(prev).Sub(decimal.NewFromInt(1)))
	}

	variance := populationVariance(returns)
	if variance.GreaterThan(limit.Mul(limit)) {
		return types.Violations{{
			Code:     CodeMarketVolatility,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("return variance %s over %s exceeds %s squared", variance.StringFixed(6), g.policy.VolatilityWindow.Duration, limit),
		}}, nil
	}

	return nil, nil
}

func populationVariance(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	n := decimal.NewFromInt(int64(len(values)))

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.Div(n)

	squares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		squares = squares.Add(diff.Mul(diff))
	}

	return squares.Div(n)
}

func (g *Gate) checkPriceDeviation(price, marketPrice decimal.Decimal) types.Violations {
	deviation := price.Sub(marketPrice).Abs().Div(marketPrice)

	if block := g.policy.PriceDeviationBlock.Decimal; block.IsPositive() && deviation.GreaterThan(block) {
		return types.Violations{{
			Code:     CodePriceDeviationBlock,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("price %s deviates %s from market %s", price, deviation.StringFixed(4), marketPrice),
		}}
	}

	if warn := g.policy.PriceDeviationWarn.Decimal; warn.IsPositive() && deviation.GreaterThan(warn) {
		return types.Violations{{
			Code:     CodePriceDeviationWarn,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("price %s deviates %s from market %s", price, deviation.StringFixed(4), marketPrice),
		}}
	}

	return nil
}
