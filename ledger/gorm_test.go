package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type suiteLedgerTester struct {
	suite.Suite
	ctx   context.Context
	store *GormStore
}

func (s *suiteLedgerTester) SetupTest() {
	store, err := OpenSQLite(":memory:")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = store
}

func (s *suiteLedgerTester) TearDownTest() {
	db, err := s.store.DB().DB()
	s.Require().NoError(err)
	s.NoError(db.Close())
}

func (s *suiteLedgerTester) newOrder(memberID int64, clientOrderID string) *models.Order {
	return &models.Order{
		UUID:          uuid.New(),
		ClientOrderID: clientOrderID,
		MemberID:      memberID,
		Instrument:    models.NewInstrument("VCS", 2021, ""),
		Side:          types.SideBuy,
		Type:          types.TypeLimit,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewNullDecimal(decimal.NewFromInt(45)),
		Status:        types.StatusOpen,
		CreatedAt:     now,
		RankedAt:      now,
	}
}

func (s *suiteLedgerTester) createOrder(order *models.Order) {
	s.Require().NoError(s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		return uow.CreateOrder(s.ctx, order)
	}))
}

func (s *suiteLedgerTester) TestCreateAndFindOrder() {
	order := s.newOrder(1, "c-1")
	s.createOrder(order)
	s.NotZero(order.ID)

	found, err := s.store.FindOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(order.UUID, found.UUID)
	s.Equal("VCS:2021", found.Key())
	s.True(found.Price.Valid)
	s.True(found.Price.Decimal.Equal(decimal.NewFromInt(45)))
	s.False(found.StopPrice.Valid)

	byClient, err := s.store.FindOrderByClientID(s.ctx, 1, "c-1")
	s.Require().NoError(err)
	s.Equal(order.ID, byClient.ID)

	_, err = s.store.FindOrder(s.ctx, 999)
	s.True(errors.Is(err, ErrNotFound))
	s.Equal(types.KindNotFound, types.KindOf(err))
}

func (s *suiteLedgerTester) TestDuplicateClientOrderID() {
	s.createOrder(s.newOrder(1, "dup"))

	err := s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		return uow.CreateOrder(s.ctx, s.newOrder(1, "dup"))
	})
	s.True(errors.Is(err, ErrDuplicate))

	s.createOrder(s.newOrder(2, "dup"))
}

func (s *suiteLedgerTester) TestSaveOrderDetectsStaleVersion() {
	order := s.newOrder(1, "v")
	s.createOrder(order)

	stale := *order

	s.Require().NoError(s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		order.FilledQuantity = decimal.NewFromInt(10)
		return uow.SaveOrder(s.ctx, order)
	}))
	s.Equal(int64(1), order.Version)

	err := s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		stale.FilledQuantity = decimal.NewFromInt(20)
		return uow.SaveOrder(s.ctx, &stale)
	})
	s.True(errors.Is(err, ErrConflict))
	s.Equal(types.KindConcurrencyConflict, types.KindOf(err))
	s.Equal(int64(0), stale.Version)

	found, err := s.store.FindOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.True(found.FilledQuantity.Equal(decimal.NewFromInt(10)))
}

func (s *suiteLedgerTester) TestTxRollsBack() {
	boom := errors.New("boom")

	err := s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		account, err := uow.LockAccount(s.ctx, 5)
		if err != nil {
			return err
		}

		if err := account.PlusFunds(decimal.NewFromInt(100)); err != nil {
			return err
		}

		if err := uow.SaveAccount(s.ctx, account); err != nil {
			return err
		}

		holding, err := uow.LockHolding(s.ctx, 5, models.NewInstrument("VCS", 2021, ""))
		if err != nil {
			return err
		}

		if err := holding.AddPosition(decimal.NewFromInt(10), decimal.NewFromInt(40)); err != nil {
			return err
		}

		if err := uow.SaveHolding(s.ctx, holding); err != nil {
			return err
		}

		return boom
	})
	s.True(errors.Is(err, boom))

	_, err = s.store.FindAccount(s.ctx, 5)
	s.True(errors.Is(err, ErrNotFound))

	_, err = s.store.FindHolding(s.ctx, 5, models.NewInstrument("VCS", 2021, ""))
	s.True(errors.Is(err, ErrNotFound))
}

func (s *suiteLedgerTester) TestHoldingsAndAccounts() {
	instrument := models.NewInstrument("GS", 2020, "P-1")

	s.Require().NoError(s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		holding, err := uow.LockHolding(s.ctx, 3, instrument)
		if err != nil {
			return err
		}
		if err := holding.AddPosition(decimal.NewFromInt(10), decimal.NewFromInt(12)); err != nil {
			return err
		}
		if err := uow.SaveHolding(s.ctx, holding); err != nil {
			return err
		}

		account, err := uow.LockAccount(s.ctx, 3)
		if err != nil {
			return err
		}
		if err := account.PlusFunds(decimal.NewFromInt(500)); err != nil {
			return err
		}
		return uow.SaveAccount(s.ctx, account)
	}))

	s.Require().NoError(s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		holding, err := uow.LockHolding(s.ctx, 3, instrument)
		if err != nil {
			return err
		}
		s.NotZero(holding.ID)
		if err := holding.Lock(decimal.NewFromInt(4)); err != nil {
			return err
		}
		return uow.SaveHolding(s.ctx, holding)
	}))

	holdings, err := s.store.ListHoldings(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(holdings, 1)
	s.True(holdings[0].Locked.Equal(decimal.NewFromInt(4)))
	s.Equal(instrument, holdings[0].Instrument)

	account, err := s.store.FindAccount(s.ctx, 3)
	s.Require().NoError(err)
	s.True(account.Balance.Equal(decimal.NewFromInt(500)))
}

func (s *suiteLedgerTester) TestTradeQueries() {
	instrument := models.NewInstrument("VCS", 2021, "")

	trades := []*models.Trade{
		{UUID: uuid.New(), BuyerID: 1, SellerID: 2, Instrument: instrument, Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(40), TotalValue: decimal.NewFromInt(400), Status: types.TradeStatusSettled, ExecutedAt: now.Add(-2 * time.Hour)},
		{UUID: uuid.New(), BuyerID: 2, SellerID: 1, Instrument: instrument, Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(42), TotalValue: decimal.NewFromInt(210), Status: types.TradeStatusPending, ExecutedAt: now.Add(-time.Hour)},
		{UUID: uuid.New(), BuyerID: 3, SellerID: 4, Instrument: instrument, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(41), TotalValue: decimal.NewFromInt(41), Status: types.TradeStatusFailed, ExecutedAt: now},
		{UUID: uuid.New(), BuyerID: 3, SellerID: 4, Instrument: instrument, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(43), TotalValue: decimal.NewFromInt(43), Status: types.TradeStatusPending, ExecutedAt: now, NextAttemptAt: null.TimeFrom(now.Add(time.Minute))},
	}

	s.Require().NoError(s.store.Tx(s.ctx, func(uow UnitOfWork) error {
		for _, trade := range trades {
			if err := uow.CreateTrade(s.ctx, trade); err != nil {
				return err
			}
		}
		return nil
	}))

	value, err := s.store.DailyTradedValue(s.ctx, 1, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.True(value.Equal(decimal.NewFromInt(610)))

	last, err := s.store.LastTrade(s.ctx, instrument)
	s.Require().NoError(err)
	s.Equal(trades[3].ID, last.ID)

	due, err := s.store.DueTrades(s.ctx, now)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(trades[1].ID, due[0].ID)

	due, err = s.store.DueTrades(s.ctx, now.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Len(due, 2)

	listed, err := s.store.ListTrades(s.ctx, TradeFilter{MemberID: 1, OrderBy: types.OrderByAsc})
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(trades[0].ID, listed[0].ID)

	page, err := s.store.ListTrades(s.ctx, TradeFilter{Limit: 1, Page: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
}

func (s *suiteLedgerTester) TestOrderQueries() {
	open := s.newOrder(1, "a")
	open.RankedAt = now.Add(time.Minute)
	open.ExpiresAt = null.TimeFrom(now.Add(-time.Second))
	s.createOrder(open)

	earlier := s.newOrder(1, "b")
	s.createOrder(earlier)

	cancelled := s.newOrder(1, "c")
	cancelled.Status = types.StatusCancelled
	s.createOrder(cancelled)

	active, err := s.store.ActiveOrders(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(earlier.ID, active[0].ID)

	expired, err := s.store.ExpiredOrders(s.ctx, now)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(open.ID, expired[0].ID)

	total, cancelledCount, err := s.store.CountOrders(s.ctx, 1, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Equal(int64(1), cancelledCount)

	orders, err := s.store.ListOrders(s.ctx, OrderFilter{MemberID: 1, Statuses: []types.OrderStatus{types.StatusCancelled}})
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Equal(cancelled.ID, orders[0].ID)
}

func TestLedger(t *testing.T) {
	suite.Run(t, new(suiteLedgerTester))
}
