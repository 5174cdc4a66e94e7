package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/types"
)

// Account is the cash account a member trades credits against.
type Account struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	MemberID  int64           `json:"member_id" gorm:"uniqueIndex"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(32,16)" validate:"ValidateBalance"`
	Locked    decimal.Decimal `json:"locked" gorm:"type:numeric(32,16)" validate:"ValidateLocked"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a Account) ValidateBalance(Balance decimal.Decimal) bool {
	return Balance.GreaterThanOrEqual(decimal.Zero)
}

func (a Account) ValidateLocked(Locked decimal.Decimal) bool {
	return Locked.GreaterThanOrEqual(decimal.Zero)
}

func (a *Account) PlusFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return a.fundsError("market.account.invalid_amount", "add", amount)
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

func (a *Account) SubFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(a.Balance) {
		return a.fundsError("market.account.insufficient_balance", "subtract", amount)
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (a *Account) LockFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(a.Balance) {
		return a.fundsError("market.account.insufficient_balance", "lock", amount)
	}

	a.Balance = a.Balance.Sub(amount)
	a.Locked = a.Locked.Add(amount)
	return nil
}

func (a *Account) UnlockFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(a.Locked) {
		return a.fundsError("market.account.invalid_unlock", "unlock", amount)
	}

	a.Balance = a.Balance.Add(amount)
	a.Locked = a.Locked.Sub(amount)
	return nil
}

func (a *Account) UnlockAndSubFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(a.Locked) {
		return a.fundsError("market.account.invalid_unlock", "unlock and subtract", amount)
	}

	a.Locked = a.Locked.Sub(amount)
	return nil
}

func (a *Account) Amount() decimal.Decimal {
	return a.Balance.Add(a.Locked)
}

func (a *Account) fundsError(code, op string, amount decimal.Decimal) error {
	kind := types.KindInsufficientBalance
	if code != "market.account.insufficient_balance" {
		kind = types.KindInvalidState
	}

	return types.Errorf(kind, code, "cannot %s funds (member id: %d, amount: %s, balance: %s, locked: %s)", op, a.MemberID, amount, a.Balance, a.Locked)
}
