// Package oracle supplies reference prices for instruments. Prices are
// published by an external pricing service; a missing price is reported as
// ErrNoPriceData and never substituted with a made-up value.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

var ErrNoPriceData = types.NewError(types.KindNotFound, "oracle.price.no_data", "no price data for instrument")

type PriceOracle interface {
	GetCurrentPrice(ctx context.Context, instrument models.Instrument) (decimal.Decimal, error)
}

// Quote is the payload stored under PriceKey by the pricing service.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func PriceKey(instrument models.Instrument) string {
	return "carbonex:price:" + instrument.Key()
}

type RedisOracle struct {
	cache  *config.CacheService
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisOracle reads quotes from redis. Quotes older than maxAge are treated
// as missing; a zero maxAge accepts any quote.
func NewRedisOracle(cache *config.CacheService, maxAge time.Duration) *RedisOracle {
	return &RedisOracle{cache: cache, maxAge: maxAge, now: time.Now}
}

func (o *RedisOracle) GetCurrentPrice(ctx context.Context, instrument models.Instrument) (decimal.Decimal, error) {
	var quote Quote
	if err := o.cache.GetKey(ctx, PriceKey(instrument), &quote); errors.Is(err, redis.Nil) {
		return decimal.Zero, ErrNoPriceData
	} else if err != nil {
		return decimal.Zero, err
	}

	if !quote.Price.IsPositive() {
		return decimal.Zero, ErrNoPriceData
	}

	if o.maxAge > 0 && o.now().Sub(quote.UpdatedAt) > o.maxAge {
		return decimal.Zero, ErrNoPriceData
	}

	return quote.Price, nil
}

// Publish stores a quote; used by tooling that seeds prices.
func (o *RedisOracle) Publish(ctx context.Context, instrument models.Instrument, price decimal.Decimal) error {
	return o.cache.SetKey(ctx, PriceKey(instrument), Quote{Price: price, UpdatedAt: o.now()}, 0)
}

// LastTradeOracle prices an instrument at its most recent trade.
type LastTradeOracle struct {
	store ledger.Reader
}

func NewLastTradeOracle(store ledger.Reader) *LastTradeOracle {
	return &LastTradeOracle{store: store}
}

func (o *LastTradeOracle) GetCurrentPrice(ctx context.Context, instrument models.Instrument) (decimal.Decimal, error) {
	trade, err := o.store.LastTrade(ctx, instrument)
	if errors.Is(err, ledger.ErrNotFound) {
		return decimal.Zero, ErrNoPriceData
	} else if err != nil {
		return decimal.Zero, err
	}

	return trade.Price, nil
}

// Chain asks each oracle in turn and returns the first price found. When no
// oracle has a price, the first hard error wins over ErrNoPriceData.
type Chain []PriceOracle

func (c Chain) GetCurrentPrice(ctx context.Context, instrument models.Instrument) (decimal.Decimal, error) {
	var firstErr error

	for _, o := range c {
		price, err := o.GetCurrentPrice(ctx, instrument)
		if err == nil {
			return price, nil
		}

		if !errors.Is(err, ErrNoPriceData) && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return decimal.Zero, firstErr
	}

	return decimal.Zero, ErrNoPriceData
}

// Static serves prices from a fixed table keyed by instrument key.
type Static map[string]decimal.Decimal

func (s Static) GetCurrentPrice(_ context.Context, instrument models.Instrument) (decimal.Decimal, error) {
	price, ok := s[instrument.Key()]
	if !ok {
		return decimal.Zero, ErrNoPriceData
	}

	return price, nil
}
