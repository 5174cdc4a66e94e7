package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/services/oracle"
	"github.com/zsmartex/carbonex/types"
)

var (
	now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	vcs = models.NewInstrument("VCS", 2021, "")
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type brokenHoldings struct {
	ledger.Reader
}

func (brokenHoldings) ListHoldings(context.Context, int64) ([]*models.PortfolioHolding, error) {
	return nil, errors.New("connection refused")
}

type brokenOracle struct{}

func (brokenOracle) GetCurrentPrice(context.Context, models.Instrument) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("timeout")
}

type suiteRiskGateTester struct {
	suite.Suite
	ctx    context.Context
	store  *ledger.GormStore
	prices oracle.Static
	gate   *Gate
	member *models.Member
}

func (s *suiteRiskGateTester) SetupTest() {
	store, err := ledger.OpenSQLite(":memory:")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = store
	s.prices = oracle.Static{vcs.Key(): d("45")}
	s.gate = s.newGate(store, s.prices)
	s.member = &models.Member{ID: 1, RiskTier: types.RiskTierMedium}
}

func (s *suiteRiskGateTester) newGate(store ledger.Reader, prices oracle.PriceOracle) *Gate {
	gate := NewGate(config.DefaultPolicy().Risk, store, prices)
	gate.Now = func() time.Time { return now }
	return gate
}

func (s *suiteRiskGateTester) fund(memberID int64, amount string) {
	s.Require().NoError(s.store.Tx(s.ctx, func(uow ledger.UnitOfWork) error {
		account, err := uow.LockAccount(s.ctx, memberID)
		if err != nil {
			return err
		}
		if err := account.PlusFunds(d(amount)); err != nil {
			return err
		}
		return uow.SaveAccount(s.ctx, account)
	}))
}

func (s *suiteRiskGateTester) trade(buyer, seller int64, qty, price string, at time.Time) {
	s.Require().NoError(s.store.Tx(s.ctx, func(uow ledger.UnitOfWork) error {
		return uow.CreateTrade(s.ctx, &models.Trade{
			BuyerID:    buyer,
			SellerID:   seller,
			Instrument: vcs,
			Quantity:   d(qty),
			Price:      d(price),
			TotalValue: d(qty).Mul(d(price)),
			Status:     types.TradeStatusSettled,
			ExecutedAt: at,
		})
	}))
}

func buy(qty, price string) models.OrderIntent {
	return models.OrderIntent{
		ClientOrderID: "c",
		CreditType:    "VCS",
		VintageYear:   2021,
		Side:          types.SideBuy,
		Type:          types.TypeLimit,
		Quantity:      d(qty),
		Price:         decimal.NewNullDecimal(d(price)),
	}
}

func (s *suiteRiskGateTester) TestApprovesOrdinaryOrder() {
	s.fund(1, "1000000")

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("100", "45"))
	s.True(result.Approved)
	s.Empty(result.Violations)
	s.Equal(0, result.RiskScore)
	s.True(result.OrderValue.Equal(d("4500")))
	s.True(result.ReferencePrice.Equal(d("45")))
}

func (s *suiteRiskGateTester) TestRejectsOrderAboveValueCeiling() {
	s.fund(1, "100000000")

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("40000", "50"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeOrderValue))
	s.GreaterOrEqual(result.RiskScore, 50)
}

func (s *suiteRiskGateTester) TestMarketOrderWithoutReferencePrice() {
	intent := buy("10", "1")
	intent.Type = types.TypeMarket
	intent.Price = decimal.NullDecimal{}

	gate := s.newGate(s.store, oracle.Static{})
	result := gate.CheckOrderRisk(s.ctx, s.member, intent)
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeNoReferencePrice))

	s.fund(1, "1000000")
	result = s.gate.CheckOrderRisk(s.ctx, s.member, intent)
	s.True(result.Approved)
	s.True(result.ReferencePrice.Equal(d("45")))
}

func (s *suiteRiskGateTester) TestFailsClosedWhenPortfolioUnavailable() {
	gate := s.newGate(brokenHoldings{s.store}, s.prices)

	result := gate.CheckOrderRisk(s.ctx, s.member, buy("1", "45"))
	s.False(result.Approved)
	s.Equal([]string{CodeDataUnavailable}, result.Violations.Codes())
}

func (s *suiteRiskGateTester) TestFailsClosedWhenOracleErrors() {
	gate := s.newGate(s.store, brokenOracle{})

	result := gate.CheckOrderRisk(s.ctx, s.member, buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeDataUnavailable))
}

func (s *suiteRiskGateTester) TestConcentrationRejectsOnTwoHighViolations() {
	s.fund(1, "10000")

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("100", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodePositionConcentrated))
	s.True(result.Violations.Has(CodeSectorConcentrated))
	s.False(result.Violations.Has(CodeVintageConcentrated))
}

func (s *suiteRiskGateTester) TestSellsSkipConcentration() {
	intent := buy("100", "45")
	intent.Side = types.SideSell

	result := s.gate.CheckOrderRisk(s.ctx, s.member, intent)
	s.True(result.Approved)
	s.Empty(result.Violations)
}

func (s *suiteRiskGateTester) TestPriceDeviation() {
	s.fund(1, "10000000")

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("10", "60"))
	s.True(result.Approved)
	s.Equal([]string{CodePriceDeviationWarn}, result.Violations.Codes())
	s.Equal(15, result.RiskScore)

	result = s.gate.CheckOrderRisk(s.ctx, s.member, buy("10", "100"))
	s.True(result.Approved)
	s.Equal([]string{CodePriceDeviationBlock}, result.Violations.Codes())
}

func (s *suiteRiskGateTester) TestTierLimit() {
	s.fund(1, "10000000")
	s.member.RiskTier = types.RiskTierLow

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("1400", "45"))
	s.True(result.Approved)
	s.Equal([]string{CodeTierLimit}, result.Violations.Codes())
	s.Equal(30, result.RiskScore)
}

func (s *suiteRiskGateTester) TestDailyValueIncludesTodaysTrades() {
	s.fund(1, "100000000")
	s.trade(1, 2, "99800", "50", now.Add(-time.Hour))
	s.trade(3, 1, "100000", "50", now.Add(-48*time.Hour))

	result := s.gate.CheckOrderRisk(s.ctx, s.member, buy("200", "50"))
	s.True(result.Approved)

	result = s.gate.CheckOrderRisk(s.ctx, s.member, buy("500", "50"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeDailyValue))
}

func (s *suiteRiskGateTester) TestVolatileMarket() {
	s.fund(1, "10000000")
	for i, price := range []string{"40", "60", "40", "60", "40", "60"} {
		s.trade(7, 8, "1", price, now.Add(time.Duration(i-10)*time.Minute))
	}

	intent := buy("10", "55")
	result := s.gate.CheckOrderRisk(s.ctx, s.member, intent)
	s.True(result.Approved)
	s.True(result.Violations.Has(CodeMarketVolatility))
}

func TestRiskGate(t *testing.T) {
	suite.Run(t, new(suiteRiskGateTester))
}
