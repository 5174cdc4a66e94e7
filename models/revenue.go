package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const ReferenceTypeTrade = "Trade"

type Revenue struct {
	ID            int64           `json:"id" gorm:"primaryKey"`
	MemberID      int64           `json:"member_id"`
	ReferenceType string          `json:"reference_type" gorm:"index:idx_revenues_reference"`
	ReferenceID   int64           `json:"reference_id" gorm:"index:idx_revenues_reference"`
	Debit         decimal.Decimal `json:"debit" gorm:"type:numeric(32,16)"`
	Credit        decimal.Decimal `json:"credit" gorm:"type:numeric(32,16)"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RevenueCredit books a fee charged to memberID against the referenced record.
func RevenueCredit(amount decimal.Decimal, reference Reference, memberID int64) *Revenue {
	return &Revenue{
		MemberID:      memberID,
		ReferenceType: reference.Type,
		ReferenceID:   reference.ID,
		Credit:        amount,
	}
}
