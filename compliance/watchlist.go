package compliance

import (
	"context"
	"strconv"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/models"
)

const WatchlistKey = "carbonex:watchlist"

// Watchlist answers sanctions lookups.
type Watchlist interface {
	IsListed(ctx context.Context, member *models.Member) (bool, error)
}

// RedisWatchlist checks member UIDs against a redis set maintained by the
// sanctions screening service.
type RedisWatchlist struct {
	cache *config.CacheService
	key   string
}

func NewRedisWatchlist(cache *config.CacheService) *RedisWatchlist {
	return &RedisWatchlist{cache: cache, key: WatchlistKey}
}

func (w *RedisWatchlist) IsListed(ctx context.Context, member *models.Member) (bool, error) {
	id := member.UID
	if len(id) == 0 {
		id = strconv.FormatInt(member.ID, 10)
	}

	return w.cache.IsMember(ctx, w.key, id)
}

// StaticWatchlist is an in-memory list of member UIDs.
type StaticWatchlist map[string]bool

func (w StaticWatchlist) IsListed(_ context.Context, member *models.Member) (bool, error) {
	return w[member.UID], nil
}
