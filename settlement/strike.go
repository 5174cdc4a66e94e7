package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

// strike applies one trade to both orders, both holdings and both cash
// accounts inside the caller's unit of work.
type strike struct {
	uow   ledger.UnitOfWork
	trade *models.Trade
	fees  *models.FeeSchedule
	now   time.Time

	buyOrder  *models.Order
	sellOrder *models.Order
	accounts  map[int64]*models.Account
}

func (s *strike) execute(ctx context.Context) error {
	trade := s.trade

	var err error
	if s.buyOrder, err = s.uow.LockOrder(ctx, trade.BuyOrderID); err != nil {
		return err
	}
	if s.sellOrder, err = s.uow.LockOrder(ctx, trade.SellOrderID); err != nil {
		return err
	}

	if err := validateTrade(trade, s.buyOrder, s.sellOrder); err != nil {
		return err
	}

	if err := s.lockAccounts(ctx); err != nil {
		return err
	}

	fees := s.fees.Calculate(trade.TotalValue)
	trade.BuyerFee = fees.Buyer
	trade.SellerFee = fees.Seller
	trade.PlatformFee = fees.Platform

	if err := s.strikeBuyer(ctx); err != nil {
		return err
	}

	if err := s.strikeSeller(ctx); err != nil {
		return err
	}

	for _, fee := range []struct {
		amount   decimal.Decimal
		memberID int64
	}{
		{trade.BuyerFee, trade.BuyerID},
		{trade.SellerFee, trade.SellerID},
	} {
		if !fee.amount.IsPositive() {
			continue
		}

		reference := models.Reference{ID: trade.ID, Type: models.ReferenceTypeTrade}
		if err := s.uow.CreateRevenue(ctx, models.RevenueCredit(fee.amount, reference, fee.memberID)); err != nil {
			return err
		}
	}

	for _, account := range s.accounts {
		if err := s.uow.SaveAccount(ctx, account); err != nil {
			return err
		}
	}

	if err := s.uow.SaveOrder(ctx, s.buyOrder); err != nil {
		return err
	}

	return s.uow.SaveOrder(ctx, s.sellOrder)
}

// lockAccounts takes the account row locks in member id order.
func (s *strike) lockAccounts(ctx context.Context) error {
	ids := []int64{s.trade.BuyerID, s.trade.SellerID}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}

	s.accounts = make(map[int64]*models.Account, 2)
	for _, id := range ids {
		if _, ok := s.accounts[id]; ok {
			continue
		}

		account, err := s.uow.LockAccount(ctx, id)
		if err != nil {
			return err
		}
		s.accounts[id] = account
	}

	return nil
}

// strikeBuyer pays for the credits, from the order's reservation first, and
// adds them to the buyer's holding.
func (s *strike) strikeBuyer(ctx context.Context) error {
	trade, order := s.trade, s.buyOrder
	account := s.accounts[trade.BuyerID]

	cost := trade.TotalValue.Add(trade.BuyerFee)
	reserved := decimal.Min(order.Locked, cost)

	if reserved.IsPositive() {
		if err := account.UnlockAndSubFunds(reserved); err != nil {
			return err
		}
		order.Locked = order.Locked.Sub(reserved)
	}

	if rest := cost.Sub(reserved); rest.IsPositive() {
		if err := account.SubFunds(rest); err != nil {
			return err
		}
	}

	if err := order.ApplyFill(trade.Quantity, trade.ExecutedAt); err != nil {
		return err
	}

	// A closed order keeps only what its other open trades still need.
	if !order.IsActive() && order.Locked.IsPositive() {
		keep, err := s.keep(ctx, order)
		if err != nil {
			return err
		}

		if release := order.Locked.Sub(keep); release.IsPositive() {
			if err := account.UnlockFunds(release); err != nil {
				return err
			}
			order.Locked = keep
		}
	}

	holding, err := s.uow.LockHolding(ctx, trade.BuyerID, trade.Instrument)
	if err != nil {
		return err
	}

	if err := holding.AddPosition(trade.Quantity, trade.Price); err != nil {
		return err
	}
	holding.MarkToMarket(trade.Price)

	return s.uow.SaveHolding(ctx, holding)
}

// strikeSeller releases the sold credits from the order's reservation,
// realizes P&L on them and credits the proceeds net of fee.
func (s *strike) strikeSeller(ctx context.Context) error {
	trade, order := s.trade, s.sellOrder
	account := s.accounts[trade.SellerID]

	holding, err := s.uow.LockHolding(ctx, trade.SellerID, trade.Instrument)
	if err != nil {
		return err
	}

	if reserved := decimal.Min(order.Locked, trade.Quantity); reserved.IsPositive() {
		if err := holding.Unlock(reserved); err != nil {
			return err
		}
		order.Locked = order.Locked.Sub(reserved)
	}

	if err := order.ApplyFill(trade.Quantity, trade.ExecutedAt); err != nil {
		return err
	}

	if !order.IsActive() && order.Locked.IsPositive() {
		keep, err := s.keep(ctx, order)
		if err != nil {
			return err
		}

		if release := decimal.Min(order.Locked.Sub(keep), holding.Locked); release.IsPositive() {
			if err := holding.Unlock(release); err != nil {
				return err
			}
			order.Locked = order.Locked.Sub(release)
		}
	}

	if _, err := holding.ReducePosition(trade.Quantity, trade.Price); err != nil {
		return err
	}

	if holding.Quantity.LessThan(holding.Locked) {
		return types.Errorf(types.KindInsufficientBalance, "portfolio.holding.overcommitted", "member %d holds %s of %s with %s reserved by other orders", trade.SellerID, holding.Quantity, holding.InstrumentKey, holding.Locked)
	}
	holding.MarkToMarket(trade.Price)

	if err := s.uow.SaveHolding(ctx, holding); err != nil {
		return err
	}

	if proceeds := trade.TotalValue.Sub(trade.SellerFee); proceeds.IsPositive() {
		return account.PlusFunds(proceeds)
	}

	return nil
}

// keep is the reservation order still owes its open trades besides this one.
func (s *strike) keep(ctx context.Context, order *models.Order) (decimal.Decimal, error) {
	return OpenTradesReservation(ctx, s.uow, s.fees, order, s.trade.ID)
}
