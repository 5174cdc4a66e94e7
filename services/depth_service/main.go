package depth_service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/matching"
)

// Cache is the part of config.CacheService the depth service writes to.
type Cache interface {
	SetKey(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func Key(symbol string) string {
	return "carbonex:" + symbol + ":depth"
}

type Depth struct {
	Asks      [][]decimal.Decimal `json:"asks"`
	Bids      [][]decimal.Decimal `json:"bids"`
	LastPrice decimal.Decimal     `json:"last_price"`
	Sequence  uint64              `json:"sequence"`
}

func FromSnapshot(snapshot *matching.Snapshot) Depth {
	depth := Depth{
		Asks:      make([][]decimal.Decimal, 0, len(snapshot.Asks)),
		Bids:      make([][]decimal.Decimal, 0, len(snapshot.Bids)),
		LastPrice: snapshot.LastPrice,
		Sequence:  snapshot.Sequence,
	}

	for _, level := range snapshot.Asks {
		depth.Asks = append(depth.Asks, []decimal.Decimal{level.Price, level.Quantity})
	}
	for _, level := range snapshot.Bids {
		depth.Bids = append(depth.Bids, []decimal.Decimal{level.Price, level.Quantity})
	}

	return depth
}

// DepthService mirrors order book snapshots into the cache for the public
// websocket and REST readers.
type DepthService struct {
	cache     Cache
	mutex     sync.Mutex
	sequences map[string]uint64
}

func NewDepthService(cache Cache) *DepthService {
	return &DepthService{
		cache:     cache,
		sequences: make(map[string]uint64),
	}
}

// Publish writes snapshot unless a snapshot with the same sequence was
// already written. It reports whether the cache was updated.
func (d *DepthService) Publish(ctx context.Context, snapshot *matching.Snapshot) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if sequence, ok := d.sequences[snapshot.Symbol]; ok && sequence == snapshot.Sequence {
		return false, nil
	}

	if err := d.cache.SetKey(ctx, Key(snapshot.Symbol), FromSnapshot(snapshot), 0); err != nil {
		return false, err
	}

	d.sequences[snapshot.Symbol] = snapshot.Sequence
	return true, nil
}
