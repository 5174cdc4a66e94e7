package models

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
)

type TradingFee struct {
	MinValue   decimal.Decimal
	BuyerRate  decimal.Decimal
	SellerRate decimal.Decimal
}

// Fees is the fee split of one trade.
type Fees struct {
	Buyer    decimal.Decimal
	Seller   decimal.Decimal
	Platform decimal.Decimal
}

// FeeSchedule is a tiered schedule keyed on trade value.
type FeeSchedule struct {
	tiers []TradingFee
}

func NewFeeSchedule(policy config.FeePolicy) *FeeSchedule {
	tiers := make([]TradingFee, 0, len(policy.Tiers))
	for _, t := range policy.Tiers {
		tiers = append(tiers, TradingFee{
			MinValue:   t.MinValue.Decimal,
			BuyerRate:  t.BuyerRate.Decimal,
			SellerRate: t.SellerRate.Decimal,
		})
	}

	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinValue.LessThan(tiers[j].MinValue)
	})

	return &FeeSchedule{tiers: tiers}
}

// TradingFeeFor returns the tier with the highest threshold not above value.
// A value below every threshold pays no fee.
func (s *FeeSchedule) TradingFeeFor(value decimal.Decimal) TradingFee {
	fee := TradingFee{}

	for _, tier := range s.tiers {
		if tier.MinValue.GreaterThan(value) {
			break
		}

		fee = tier
	}

	return fee
}

func (s *FeeSchedule) Calculate(value decimal.Decimal) Fees {
	fee := s.TradingFeeFor(value)

	buyer := value.Mul(fee.BuyerRate)
	seller := value.Mul(fee.SellerRate)

	return Fees{
		Buyer:    buyer,
		Seller:   seller,
		Platform: buyer.Add(seller),
	}
}

// MaxBuyerRate is the highest buyer rate of any tier, used to reserve fees
// before the final trade value is known.
func (s *FeeSchedule) MaxBuyerRate() decimal.Decimal {
	max := decimal.Zero
	for _, tier := range s.tiers {
		if tier.BuyerRate.GreaterThan(max) {
			max = tier.BuyerRate
		}
	}

	return max
}
