package compliance

import (
	"context"
	"errors"
	"fmt"
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

// 2024-03-01 is a Friday.
var (
	now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	vcs = models.NewInstrument("VCS", 2021, "")
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type brokenWatchlist struct{}

func (brokenWatchlist) IsListed(context.Context, *models.Member) (bool, error) {
	return false, errors.New("redis: connection refused")
}

type suiteComplianceGateTester struct {
	suite.Suite
	ctx       context.Context
	store     *ledger.GormStore
	policy    config.CompliancePolicy
	watchlist Watchlist
	member    *models.Member
	seq       int
}

func (s *suiteComplianceGateTester) SetupTest() {
	store, err := ledger.OpenSQLite(":memory:")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = store
	s.policy = config.DefaultPolicy().Compliance
	s.watchlist = StaticWatchlist{}
	s.member = &models.Member{
		ID:        1,
		UID:       "U1",
		KYCLevel:  1,
		KYCStatus: types.KYCStatusApproved,
		State:     types.MemberStateActive,
	}
}

func (s *suiteComplianceGateTester) check(intent models.OrderIntent) Result {
	gate, err := NewGate(s.policy, s.store, oracle.Static{vcs.Key(): d("45")}, s.watchlist)
	s.Require().NoError(err)
	gate.Now = func() time.Time { return now }

	return gate.CheckOrderCompliance(s.ctx, s.member, intent)
}

func (s *suiteComplianceGateTester) seedOrder(side types.OrderSide, status types.OrderStatus, at time.Time) {
	s.seq++
	order := &models.Order{
		ClientOrderID: fmt.Sprintf("seed-%d", s.seq),
		MemberID:      s.member.ID,
		Instrument:    vcs,
		Side:          side,
		Type:          types.TypeLimit,
		Quantity:      d("10"),
		Price:         decimal.NewNullDecimal(d("45")),
		Status:        status,
		CreatedAt:     at,
		RankedAt:      at,
	}

	s.Require().NoError(s.store.Tx(s.ctx, func(uow ledger.UnitOfWork) error {
		return uow.CreateOrder(s.ctx, order)
	}))
}

func (s *suiteComplianceGateTester) seedTrade(qty, price string, at time.Time) {
	s.Require().NoError(s.store.Tx(s.ctx, func(uow ledger.UnitOfWork) error {
		return uow.CreateTrade(s.ctx, &models.Trade{
			BuyerID:    8,
			SellerID:   9,
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

func (s *suiteComplianceGateTester) TestApprovesCleanOrder() {
	result := s.check(buy("100", "45"))
	s.True(result.Approved)
	s.Empty(result.Violations)
	s.False(result.RequiresManualReview)
	s.False(result.RequiresReporting)
}

func (s *suiteComplianceGateTester) TestKYCRequired() {
	s.member.KYCStatus = types.KYCStatusPending

	result := s.check(buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeKYCRequired))
}

func (s *suiteComplianceGateTester) TestEnhancedKYCAndReporting() {
	result := s.check(buy("4000", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeEnhancedKYCRequired))
	s.True(result.RequiresReporting)

	s.member.KYCLevel = 2
	result = s.check(buy("4000", "45"))
	s.True(result.Approved)
	s.Equal([]string{CodeLargeTransaction}, result.Violations.Codes())
	s.True(result.RequiresReporting)
	s.False(result.RequiresManualReview)
}

func (s *suiteComplianceGateTester) TestSanctions() {
	s.watchlist = StaticWatchlist{"U1": true}
	result := s.check(buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeSanctioned))

	s.watchlist = StaticWatchlist{}
	s.member.Sanctioned = true
	result = s.check(buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeSanctioned))
}

func (s *suiteComplianceGateTester) TestSuspendedMember() {
	s.member.State = types.MemberStateSuspended

	result := s.check(buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeMemberInactive))
}

func (s *suiteComplianceGateTester) TestFailsClosedWhenWatchlistUnavailable() {
	s.watchlist = brokenWatchlist{}

	result := s.check(buy("1", "45"))
	s.False(result.Approved)
	s.Equal([]string{CodeDataUnavailable}, result.Violations.Codes())
}

func (s *suiteComplianceGateTester) TestTradingHoursAreNonBlocking() {
	s.policy.TradingHours.Days = []string{"mon"}

	result := s.check(buy("1", "45"))
	s.True(result.Approved)
	s.Equal([]string{CodeOutsideTradingHours}, result.Violations.Codes())

	s.policy.TradingHours = config.TradingHours{StartHour: 13, EndHour: 17, Location: "UTC"}
	result = s.check(buy("1", "45"))
	s.True(result.Violations.Has(CodeOutsideTradingHours))
}

func (s *suiteComplianceGateTester) TestVelocity() {
	s.policy.MaxOrdersPerHour = 3
	for i := 0; i < 3; i++ {
		s.seedOrder(types.SideBuy, types.StatusOpen, now.Add(-time.Duration(10+i)*time.Minute))
	}
	s.seedOrder(types.SideBuy, types.StatusOpen, now.Add(-2*time.Hour))

	result := s.check(buy("1", "45"))
	s.False(result.Approved)
	s.True(result.Violations.Has(CodeHourlyVelocity))
	s.False(result.Violations.Has(CodeDailyVelocity))
}

func (s *suiteComplianceGateTester) TestWashTradingFlagsReview() {
	s.seedOrder(types.SideSell, types.StatusOpen, now.Add(-2*time.Minute))

	result := s.check(buy("1", "45"))
	s.True(result.Approved)
	s.True(result.RequiresManualReview)
	s.Equal([]string{CodeWashTrading}, result.Violations.Codes())

	s.SetupTest()
	s.seedOrder(types.SideSell, types.StatusOpen, now.Add(-10*time.Minute))
	s.seedOrder(types.SideSell, types.StatusRejected, now.Add(-time.Minute))
	result = s.check(buy("1", "45"))
	s.False(result.RequiresManualReview)
}

func (s *suiteComplianceGateTester) TestCancelRate() {
	for i := 0; i < 10; i++ {
		status := types.StatusCancelled
		if i == 0 {
			status = types.StatusFilled
		}
		s.seedOrder(types.SideBuy, status, now.Add(-time.Duration(i+1)*time.Minute))
	}

	result := s.check(buy("1", "45"))
	s.True(result.Approved)
	s.True(result.RequiresManualReview)
	s.Equal([]string{CodeCancelRate}, result.Violations.Codes())
}

func (s *suiteComplianceGateTester) TestPriceImpactAgainstVWAP() {
	s.seedTrade("10", "44", now.Add(-time.Hour))
	s.seedTrade("10", "46", now.Add(-30*time.Minute))

	result := s.check(buy("1", "46"))
	s.True(result.Approved)
	s.Empty(result.Violations)

	result = s.check(buy("1", "50"))
	s.True(result.Approved)
	s.True(result.RequiresManualReview)
	s.Equal([]string{CodePriceImpact}, result.Violations.Codes())
}

func TestComplianceGate(t *testing.T) {
	suite.Run(t, new(suiteComplianceGateTester))
}
