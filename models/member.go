package models

import (
	"time"

	"github.com/zsmartex/carbonex/types"
)

type Member struct {
	ID         int64             `json:"id" gorm:"primaryKey"`
	UID        string            `json:"uid" gorm:"uniqueIndex"`
	Email      string            `json:"email"`
	KYCLevel   int32             `json:"kyc_level" gorm:"default:0" validate:"min:0"`
	KYCStatus  types.KYCStatus   `json:"kyc_status" gorm:"default:pending"`
	RiskTier   types.RiskTier    `json:"risk_tier" gorm:"default:medium"`
	State      types.MemberState `json:"state" gorm:"default:active"`
	Sanctioned bool              `json:"sanctioned"`
	Group      string            `json:"group" gorm:"default:vip-0"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (m *Member) IsActive() bool {
	return m.State == types.MemberStateActive
}

func (m *Member) KYCApproved() bool {
	return m.KYCStatus == types.KYCStatusApproved
}
