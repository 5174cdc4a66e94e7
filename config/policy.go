package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Amount is a decimal read from the policy file; both "0.25" and 0.25 are accepted.
type Amount struct {
	decimal.Decimal
}

func NewAmount(value string) Amount {
	return Amount{decimal.RequireFromString(value)}
}

func (a *Amount) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	a.Decimal = d
	return nil
}

// Duration is a time.Duration read from strings such as "5m" or "24h".
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{d}
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	d.Duration = parsed
	return nil
}

type FeeTier struct {
	MinValue   Amount `yaml:"min_value"`
	BuyerRate  Amount `yaml:"buyer_rate"`
	SellerRate Amount `yaml:"seller_rate"`
}

type FeePolicy struct {
	Tiers []FeeTier `yaml:"tiers"`
}

type RiskPolicy struct {
	MaxOrderValue       Amount            `yaml:"max_order_value"`
	MaxDailyValue       Amount            `yaml:"max_daily_value"`
	MaxPositionPct      Amount            `yaml:"max_position_pct"`
	MaxSectorPct        Amount            `yaml:"max_sector_pct"`
	MaxVintagePct       Amount            `yaml:"max_vintage_pct"`
	MaxHHI              Amount            `yaml:"max_hhi"`
	TierLimits          map[string]Amount `yaml:"tier_limits"`
	MinLiquidityRatio   Amount            `yaml:"min_liquidity_ratio"`
	MaxVolatility       Amount            `yaml:"max_volatility"`
	VolatilityWindow    Duration          `yaml:"volatility_window"`
	VolatilityMinTrades int               `yaml:"volatility_min_trades"`
	PriceDeviationWarn  Amount            `yaml:"price_deviation_warn"`
	PriceDeviationBlock Amount            `yaml:"price_deviation_block"`
	// MarketReserveBuffer inflates the reference price when reserving cash for
	// orders that carry no limit price.
	MarketReserveBuffer Amount `yaml:"market_reserve_buffer"`
}

type TradingHours struct {
	StartHour int      `yaml:"start_hour"`
	EndHour   int      `yaml:"end_hour"`
	Days      []string `yaml:"days"`
	Location  string   `yaml:"location"`
}

type CompliancePolicy struct {
	EnhancedKYCThreshold Amount       `yaml:"enhanced_kyc_threshold"`
	TradingHours         TradingHours `yaml:"trading_hours"`
	MaxOrdersPerHour     int          `yaml:"max_orders_per_hour"`
	MaxOrdersPerDay      int          `yaml:"max_orders_per_day"`
	WashTradeWindow      Duration     `yaml:"wash_trade_window"`
	VWAPWindow           Duration     `yaml:"vwap_window"`
	MaxPriceImpact       Amount       `yaml:"max_price_impact"`
	CancelRateWindow     Duration     `yaml:"cancel_rate_window"`
	MaxCancelRate        Amount       `yaml:"max_cancel_rate"`
	CancelRateMinOrders  int          `yaml:"cancel_rate_min_orders"`
	ReportingThreshold   Amount       `yaml:"reporting_threshold"`
}

type SettlementPolicy struct {
	MaxAttempts        int      `yaml:"max_attempts"`
	RetryBackoff       Duration `yaml:"retry_backoff"`
	MaxConflictRetries int      `yaml:"max_conflict_retries"`
}

type Policy struct {
	Fees       FeePolicy        `yaml:"fees"`
	Risk       RiskPolicy       `yaml:"risk"`
	Compliance CompliancePolicy `yaml:"compliance"`
	Settlement SettlementPolicy `yaml:"settlement"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		Fees: FeePolicy{
			Tiers: []FeeTier{
				{MinValue: NewAmount("0"), BuyerRate: NewAmount("0.0025"), SellerRate: NewAmount("0.0025")},
				{MinValue: NewAmount("10000"), BuyerRate: NewAmount("0.0015"), SellerRate: NewAmount("0.0015")},
				{MinValue: NewAmount("100000"), BuyerRate: NewAmount("0.001"), SellerRate: NewAmount("0.001")},
			},
		},
		Risk: RiskPolicy{
			MaxOrderValue:  NewAmount("1000000"),
			MaxDailyValue:  NewAmount("5000000"),
			MaxPositionPct: NewAmount("0.25"),
			MaxSectorPct:   NewAmount("0.40"),
			MaxVintagePct:  NewAmount("0.50"),
			MaxHHI:         NewAmount("0.5"),
			TierLimits: map[string]Amount{
				"low":    NewAmount("50000"),
				"medium": NewAmount("250000"),
				"high":   NewAmount("1000000"),
			},
			MinLiquidityRatio:   NewAmount("0.10"),
			MaxVolatility:       NewAmount("0.15"),
			VolatilityWindow:    NewDuration(24 * time.Hour),
			VolatilityMinTrades: 5,
			PriceDeviationWarn:  NewAmount("0.10"),
			PriceDeviationBlock: NewAmount("0.50"),
			MarketReserveBuffer: NewAmount("0.05"),
		},
		Compliance: CompliancePolicy{
			EnhancedKYCThreshold: NewAmount("100000"),
			TradingHours: TradingHours{
				StartHour: 0,
				EndHour:   24,
				Days:      []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
				Location:  "UTC",
			},
			MaxOrdersPerHour:    100,
			MaxOrdersPerDay:     1000,
			WashTradeWindow:     NewDuration(5 * time.Minute),
			VWAPWindow:          NewDuration(24 * time.Hour),
			MaxPriceImpact:      NewAmount("0.05"),
			CancelRateWindow:    NewDuration(time.Hour),
			MaxCancelRate:       NewAmount("0.8"),
			CancelRateMinOrders: 10,
			ReportingThreshold:  NewAmount("50000"),
		},
		Settlement: SettlementPolicy{
			MaxAttempts:        5,
			RetryBackoff:       NewDuration(2 * time.Second),
			MaxConflictRetries: 3,
		},
	}
}

// LoadPolicy overlays the yaml file at path on DefaultPolicy. A missing file
// yields the defaults.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()

	buf, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return policy, nil
	} else if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(buf, policy); err != nil {
		return nil, err
	}

	return policy, nil
}
