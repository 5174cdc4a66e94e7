package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type GormStore struct {
	gormReader
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{gormReader{db: db}}
}

// Migrate creates the ledger tables. Production schemas are managed outside
// the service; this is for development and test databases.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.Member{},
		&models.Account{},
		&models.Order{},
		&models.Trade{},
		&models.PortfolioHolding{},
		&models.Revenue{},
	)
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Tx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormUnitOfWork{gormReader{db: tx}})
	})
}

type gormReader struct {
	db *gorm.DB
}

func instrumentScope(instrument models.Instrument) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("credit_type = ? AND vintage_year = ? AND project_id = ?", instrument.CreditType, instrument.VintageYear, instrument.ProjectID)
	}
}

func paginate(limit, page int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}

		if page < 1 {
			page = 1
		}

		return db.Limit(limit).Offset((page - 1) * limit)
	}
}

func direction(orderBy types.OrderBy) string {
	if orderBy == types.OrderByAsc {
		return "ASC"
	}

	return "DESC"
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}

	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func (r gormReader) FindOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err, "order %d", id)
	}

	return &order, nil
}

func (r gormReader) FindOrderByClientID(ctx context.Context, memberID int64, clientOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND client_order_id = ?", memberID, clientOrderID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, "order %s of member %d", clientOrderID, memberID)
	}

	return &order, nil
}

func (r gormReader) ListOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	tx := r.db.WithContext(ctx).Model(&models.Order{})

	if filter.MemberID > 0 {
		tx = tx.Where("member_id = ?", filter.MemberID)
	}
	if filter.Instrument != nil {
		tx = tx.Scopes(instrumentScope(*filter.Instrument))
	}
	if len(filter.Side) > 0 {
		tx = tx.Where("side = ?", filter.Side)
	}
	if len(filter.Statuses) > 0 {
		tx = tx.Where("status IN ?", filter.Statuses)
	}
	if !filter.Since.IsZero() {
		tx = tx.Where("created_at >= ?", filter.Since)
	}

	dir := direction(filter.OrderBy)

	var orders []*models.Order
	err := tx.Scopes(paginate(filter.Limit, filter.Page)).
		Order("created_at " + dir).
		Order("id " + dir).
		Find(&orders).Error

	return orders, err
}

func (r gormReader) ActiveOrders(ctx context.Context) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []types.OrderStatus{types.StatusOpen, types.StatusPartiallyFilled}).
		Order("ranked_at ASC").
		Order("id ASC").
		Find(&orders).Error

	return orders, err
}

func (r gormReader) ExpiredOrders(ctx context.Context, now time.Time) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []types.OrderStatus{types.StatusOpen, types.StatusPartiallyFilled}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("id ASC").
		Find(&orders).Error

	return orders, err
}

func (r gormReader) CountOrders(ctx context.Context, memberID int64, since time.Time) (int64, int64, error) {
	var total, cancelled int64

	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("member_id = ? AND created_at >= ?", memberID, since)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}

	if err := base.Session(&gorm.Session{}).Where("status = ?", types.StatusCancelled).Count(&cancelled).Error; err != nil {
		return 0, 0, err
	}

	return total, cancelled, nil
}

func (r gormReader) FindTrade(ctx context.Context, id int64) (*models.Trade, error) {
	var trade models.Trade
	if err := r.db.WithContext(ctx).First(&trade, id).Error; err != nil {
		return nil, notFound(err, "trade %d", id)
	}

	return &trade, nil
}

func (r gormReader) ListTrades(ctx context.Context, filter TradeFilter) ([]*models.Trade, error) {
	tx := r.db.WithContext(ctx).Model(&models.Trade{})

	if filter.MemberID > 0 {
		tx = tx.Where("buyer_id = ? OR seller_id = ?", filter.MemberID, filter.MemberID)
	}
	if filter.OrderID > 0 {
		tx = tx.Where("buy_order_id = ? OR sell_order_id = ?", filter.OrderID, filter.OrderID)
	}
	if filter.Instrument != nil {
		tx = tx.Scopes(instrumentScope(*filter.Instrument))
	}
	if len(filter.Statuses) > 0 {
		tx = tx.Where("status IN ?", filter.Statuses)
	}
	if !filter.From.IsZero() {
		tx = tx.Where("executed_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		tx = tx.Where("executed_at < ?", filter.To)
	}

	dir := direction(filter.OrderBy)

	var trades []*models.Trade
	err := tx.Scopes(paginate(filter.Limit, filter.Page)).
		Order("executed_at " + dir).
		Order("id " + dir).
		Find(&trades).Error

	return trades, err
}

func (r gormReader) LastTrade(ctx context.Context, instrument models.Instrument) (*models.Trade, error) {
	var trade models.Trade
	err := r.db.WithContext(ctx).
		Scopes(instrumentScope(instrument)).
		Where("status <> ?", types.TradeStatusFailed).
		Order("executed_at DESC").
		Order("id DESC").
		First(&trade).Error
	if err != nil {
		return nil, notFound(err, "last trade of %s", instrument.Key())
	}

	return &trade, nil
}

func (r gormReader) DueTrades(ctx context.Context, now time.Time) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := r.db.WithContext(ctx).
		Where("status IN ?", []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed}).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("id ASC").
		Find(&trades).Error

	return trades, err
}

func (r gormReader) DailyTradedValue(ctx context.Context, memberID int64, since time.Time) (decimal.Decimal, error) {
	trades, err := r.ListTrades(ctx, TradeFilter{
		MemberID: memberID,
		Statuses: []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed, types.TradeStatusSettled},
		From:     since,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, trade := range trades {
		total = total.Add(trade.TotalValue)
	}

	return total, nil
}

func (r gormReader) FindHolding(ctx context.Context, memberID int64, instrument models.Instrument) (*models.PortfolioHolding, error) {
	var holding models.PortfolioHolding
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND instrument_key = ?", memberID, instrument.Key()).
		First(&holding).Error
	if err != nil {
		return nil, notFound(err, "holding %s of member %d", instrument.Key(), memberID)
	}

	return &holding, nil
}

func (r gormReader) ListHoldings(ctx context.Context, memberID int64) ([]*models.PortfolioHolding, error) {
	var holdings []*models.PortfolioHolding
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("instrument_key ASC").
		Find(&holdings).Error

	return holdings, err
}

func (r gormReader) FindAccount(ctx context.Context, memberID int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&account).Error; err != nil {
		return nil, notFound(err, "account of member %d", memberID)
	}

	return &account, nil
}

type gormUnitOfWork struct {
	gormReader
}

func (u *gormUnitOfWork) locking(ctx context.Context, table string) *gorm.DB {
	return u.db.WithContext(ctx).Clauses(clause.Locking{
		Strength: "UPDATE",
		Table:    clause.Table{Name: table},
	})
}

func (u *gormUnitOfWork) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := u.locking(ctx, "orders").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, "order %d", id)
	}

	return &order, nil
}

func (u *gormUnitOfWork) LockTrade(ctx context.Context, id int64) (*models.Trade, error) {
	var trade models.Trade
	if err := u.locking(ctx, "trades").Where("id = ?", id).First(&trade).Error; err != nil {
		return nil, notFound(err, "trade %d", id)
	}

	return &trade, nil
}

func (u *gormUnitOfWork) LockAccount(ctx context.Context, memberID int64) (*models.Account, error) {
	var account models.Account
	err := u.locking(ctx, "accounts").
		Where(models.Account{MemberID: memberID}).
		FirstOrCreate(&account).Error

	return &account, err
}

func (u *gormUnitOfWork) LockHolding(ctx context.Context, memberID int64, instrument models.Instrument) (*models.PortfolioHolding, error) {
	var holding models.PortfolioHolding
	err := u.locking(ctx, "portfolio_holdings").
		Where("member_id = ? AND instrument_key = ?", memberID, instrument.Key()).
		First(&holding).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewPortfolioHolding(memberID, instrument), nil
	} else if err != nil {
		return nil, err
	}

	return &holding, nil
}

func (u *gormUnitOfWork) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.UUID == uuid.Nil {
		order.UUID = uuid.New()
	}

	if err := u.db.WithContext(ctx).Create(order).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("order %s of member %d: %w", order.ClientOrderID, order.MemberID, ErrDuplicate)
		}

		return err
	}

	return nil
}

// saveVersioned updates every column of record if its version still matches,
// bumping the version. A stale version yields ErrConflict.
func (u *gormUnitOfWork) saveVersioned(ctx context.Context, record interface{}, version *int64, what string) error {
	current := *version
	*version = current + 1

	result := u.db.WithContext(ctx).
		Model(record).
		Where("version = ?", current).
		Select("*").
		Omit("id", "created_at").
		Updates(record)

	if result.Error != nil {
		*version = current
		return result.Error
	}

	if result.RowsAffected == 0 {
		*version = current
		return fmt.Errorf("%s at version %d: %w", what, current, ErrConflict)
	}

	return nil
}

func (u *gormUnitOfWork) SaveOrder(ctx context.Context, order *models.Order) error {
	return u.saveVersioned(ctx, order, &order.Version, fmt.Sprintf("order %d", order.ID))
}

func (u *gormUnitOfWork) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if trade.UUID == uuid.Nil {
		trade.UUID = uuid.New()
	}

	return u.db.WithContext(ctx).Create(trade).Error
}

func (u *gormUnitOfWork) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return u.db.WithContext(ctx).Save(trade).Error
}

func (u *gormUnitOfWork) SaveHolding(ctx context.Context, holding *models.PortfolioHolding) error {
	if holding.ID == 0 {
		return u.db.WithContext(ctx).Create(holding).Error
	}

	return u.saveVersioned(ctx, holding, &holding.Version, fmt.Sprintf("holding %d", holding.ID))
}

func (u *gormUnitOfWork) SaveAccount(ctx context.Context, account *models.Account) error {
	return u.saveVersioned(ctx, account, &account.Version, fmt.Sprintf("account %d", account.ID))
}

func (u *gormUnitOfWork) CreateRevenue(ctx context.Context, revenue *models.Revenue) error {
	return u.db.WithContext(ctx).Create(revenue).Error
}

// OpenSQLite opens and migrates a sqlite ledger. ":memory:" gives a private
// in-memory database.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := config.NewDatabase(config.DatabaseConfig{
		Adapter: "sqlite",
		Path:    path,
	})
	if err != nil {
		return nil, err
	}

	store := NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, err
	}

	return store, nil
}
