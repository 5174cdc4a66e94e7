package matching

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetCreatesOnce(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	engines := make([]*Engine, 16)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = registry.Get("VCS:2021")
		}(i)
	}
	wg.Wait()

	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}

	_, ok := registry.Lookup("GS:2020")
	assert.False(t, ok)

	registry.Get("GS:2020")
	assert.Equal(t, []string{"GS:2020", "VCS:2021"}, registry.Symbols())
}

func TestEngineInitializeKeepsExistingPrice(t *testing.T) {
	engine := NewEngine(symbol, decimal.Zero)
	assert.False(t, engine.Initialized())

	engine.Initialize(decimal.NewFromInt(40))
	assert.True(t, engine.MarketPrice().Equal(decimal.NewFromInt(40)))
	assert.True(t, engine.Initialized())

	engine.Initialize(decimal.NewFromInt(50))
	assert.True(t, engine.MarketPrice().Equal(decimal.NewFromInt(40)))
}

func TestEngineSubmitAndCancel(t *testing.T) {
	engine := NewEngine(symbol, decimal.Zero)

	require.Empty(t, engine.Submit(parseOrder("1, 1, ASK, limit, 45, 60")))
	assert.True(t, engine.Contains(1))

	matches := engine.Submit(parseOrder("2, 2, BID, limit, 45, 100"))
	require.Len(t, matches, 1)
	assert.Equal(t, symbol, matches[0].Symbol)
	assert.True(t, matches[0].Total().Equal(decimal.NewFromInt(2700)))
	assert.False(t, engine.Contains(1))

	cancelled, ok := engine.Cancel(2)
	require.True(t, ok)
	assert.True(t, cancelled.UnfilledQuantity().Equal(decimal.NewFromInt(40)))
	assert.Empty(t, engine.Snapshot(10).Bids)
}
