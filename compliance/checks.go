package compliance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

func (g *Gate) checkKYC(c *check, member *models.Member, value decimal.Decimal) {
	if !member.KYCApproved() || member.KYCLevel < 1 {
		c.add(CodeKYCRequired, types.SeverityCritical, "member %d KYC is %s at level %d", member.ID, member.KYCStatus, member.KYCLevel)
		return
	}

	if threshold := g.policy.EnhancedKYCThreshold.Decimal; threshold.IsPositive() && value.GreaterThan(threshold) && member.KYCLevel < 2 {
		c.add(CodeEnhancedKYCRequired, types.SeverityCritical, "order value %s above %s requires KYC level 2", value.StringFixed(2), threshold)
	}
}

func (g *Gate) checkTradingHours(c *check, member *models.Member, now time.Time) {
	hours := g.policy.TradingHours
	local := now.In(g.location)

	dayAllowed := len(hours.Days) == 0
	for _, day := range hours.Days {
		if day == weekdays[local.Weekday()] {
			dayAllowed = true
			break
		}
	}

	hourAllowed := local.Hour() >= hours.StartHour && local.Hour() < hours.EndHour

	if !dayAllowed || !hourAllowed {
		c.add(CodeOutsideTradingHours, types.SeverityLow, "order placed at %s outside trading hours", local.Format(time.RFC3339))
		config.Logger.Warnf("[carbonex.compliance] member %d trading outside hours at %s", member.ID, local.Format(time.RFC3339))
	}
}

func (g *Gate) checkVelocity(ctx context.Context, c *check, member *models.Member, _ models.OrderIntent, now time.Time) error {
	windows := []struct {
		code   string
		label  string
		period time.Duration
		limit  int
	}{
		{CodeHourlyVelocity, "hour", time.Hour, g.policy.MaxOrdersPerHour},
		{CodeDailyVelocity, "day", 24 * time.Hour, g.policy.MaxOrdersPerDay},
	}

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}

		total, _, err := g.store.CountOrders(ctx, member.ID, now.Add(-w.period))
		if err != nil {
			return err
		}

		if total+1 > int64(w.limit) {
			c.add(w.code, types.SeverityCritical, "%d orders in the last %s, limit %d", total+1, w.label, w.limit)
		}
	}

	return nil
}

func (g *Gate) checkWashTrading(ctx context.Context, c *check, member *models.Member, intent models.OrderIntent, now time.Time) error {
	window := g.policy.WashTradeWindow.Duration
	if window <= 0 {
		return nil
	}

	instrument := intent.Instrument()
	opposite, err := g.store.ListOrders(ctx, ledger.OrderFilter{
		MemberID:   member.ID,
		Instrument: &instrument,
		Side:       intent.Side.Opposite(),
		Statuses:   []types.OrderStatus{types.StatusPending, types.StatusOpen, types.StatusPartiallyFilled, types.StatusFilled},
		Since:      now.Add(-window),
		Limit:      1,
	})
	if err != nil {
		return err
	}

	if len(opposite) > 0 {
		c.add(CodeWashTrading, types.SeverityMedium, "member %d placed a %s order on %s within %s", member.ID, intent.Side.Opposite(), instrument.Key(), window)
		c.review = true
	}

	return nil
}

func (g *Gate) checkCancelRate(ctx context.Context, c *check, member *models.Member, _ models.OrderIntent, now time.Time) error {
	window := g.policy.CancelRateWindow.Duration
	limit := g.policy.MaxCancelRate.Decimal
	if window <= 0 || !limit.IsPositive() {
		return nil
	}

	total, cancelled, err := g.store.CountOrders(ctx, member.ID, now.Add(-window))
	if err != nil {
		return err
	}

	if total == 0 || total < int64(g.policy.CancelRateMinOrders) {
		return nil
	}

	rate := decimal.NewFromInt(cancelled).Div(decimal.NewFromInt(total))
	if rate.GreaterThan(limit) {
		c.add(CodeCancelRate, types.SeverityMedium, "cancelled %d of %d orders in %s", cancelled, total, window)
		c.review = true
	}

	return nil
}

// checkPriceImpact compares a limit price with the VWAP of recent trades.
func (g *Gate) checkPriceImpact(ctx context.Context, c *check, instrument models.Instrument, intent models.OrderIntent, now time.Time) error {
	window := g.policy.VWAPWindow.Duration
	limit := g.policy.MaxPriceImpact.Decimal
	if window <= 0 || !limit.IsPositive() || !intent.Price.Valid {
		return nil
	}

	trades, err := g.store.ListTrades(ctx, ledger.TradeFilter{
		Instrument: &instrument,
		Statuses:   []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed, types.TradeStatusSettled},
		From:       now.Add(-window),
	})
	if err != nil {
		return err
	}

	volume, notional := decimal.Zero, decimal.Zero
	for _, t := range trades {
		volume = volume.Add(t.Quantity)
		notional = notional.Add(t.TotalValue)
	}

	if !volume.IsPositive() {
		return nil
	}

	vwap := notional.Div(volume)
	impact := intent.Price.Decimal.Sub(vwap).Abs().Div(vwap)

	if impact.GreaterThan(limit) {
		c.add(CodePriceImpact, types.SeverityMedium, "price %s is %s away from VWAP %s", intent.Price.Decimal, impact.StringFixed(4), vwap.StringFixed(4))
		c.review = true
	}

	return nil
}
