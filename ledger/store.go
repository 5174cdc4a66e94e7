// Package ledger is the durable record of orders, trades, holdings, cash
// accounts and revenue. Every mutation runs inside a unit of work.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

var (
	ErrNotFound  = types.NewError(types.KindNotFound, "record.not_found", "record not found")
	ErrDuplicate = types.NewError(types.KindConcurrencyConflict, "record.duplicate", "record already exists")
	ErrConflict  = types.NewError(types.KindConcurrencyConflict, "record.version_conflict", "record was modified concurrently")
)

type OrderFilter struct {
	MemberID   int64
	Instrument *models.Instrument
	Side       types.OrderSide
	Statuses   []types.OrderStatus
	Since      time.Time
	Limit      int
	Page       int
	OrderBy    types.OrderBy
}

type TradeFilter struct {
	MemberID   int64
	OrderID    int64
	Instrument *models.Instrument
	Statuses   []types.TradeStatus
	From       time.Time
	To         time.Time
	Limit      int
	Page       int
	OrderBy    types.OrderBy
}

type Reader interface {
	FindOrder(ctx context.Context, id int64) (*models.Order, error)
	FindOrderByClientID(ctx context.Context, memberID int64, clientOrderID string) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error)
	// ActiveOrders returns every open or partially filled order by book priority.
	ActiveOrders(ctx context.Context) ([]*models.Order, error)
	ExpiredOrders(ctx context.Context, now time.Time) ([]*models.Order, error)
	CountOrders(ctx context.Context, memberID int64, since time.Time) (total int64, cancelled int64, err error)

	FindTrade(ctx context.Context, id int64) (*models.Trade, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]*models.Trade, error)
	LastTrade(ctx context.Context, instrument models.Instrument) (*models.Trade, error)
	// DueTrades returns unsettled trades whose next attempt is due at now.
	DueTrades(ctx context.Context, now time.Time) ([]*models.Trade, error)
	DailyTradedValue(ctx context.Context, memberID int64, since time.Time) (decimal.Decimal, error)

	FindHolding(ctx context.Context, memberID int64, instrument models.Instrument) (*models.PortfolioHolding, error)
	ListHoldings(ctx context.Context, memberID int64) ([]*models.PortfolioHolding, error)
	FindAccount(ctx context.Context, memberID int64) (*models.Account, error)
}

// UnitOfWork is the transactional view handed to Store.Tx. Lock methods take
// row locks for the rest of the transaction.
type UnitOfWork interface {
	Reader

	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	LockTrade(ctx context.Context, id int64) (*models.Trade, error)
	// LockAccount returns the member's account, creating an empty one if needed.
	LockAccount(ctx context.Context, memberID int64) (*models.Account, error)
	// LockHolding returns the member's holding, or an unsaved empty one.
	LockHolding(ctx context.Context, memberID int64, instrument models.Instrument) (*models.PortfolioHolding, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	SaveOrder(ctx context.Context, order *models.Order) error
	CreateTrade(ctx context.Context, trade *models.Trade) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
	SaveHolding(ctx context.Context, holding *models.PortfolioHolding) error
	SaveAccount(ctx context.Context, account *models.Account) error
	CreateRevenue(ctx context.Context, revenue *models.Revenue) error
}

type Store interface {
	Reader

	// Tx runs fn in one transaction, committing when fn returns nil.
	Tx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
