package matching

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type Engine struct {
	MatchingMutex sync.RWMutex
	Symbol        string
	OrderBook     *OrderBook
	initialized   bool
}

func NewEngine(symbol string, price decimal.Decimal) *Engine {
	return &Engine{
		Symbol:    symbol,
		OrderBook: NewOrderBook(symbol, price),
	}
}

func (e *Engine) Submit(o *Order) []Match {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	return e.OrderBook.Add(o)
}

func (e *Engine) Cancel(id int64) (*Order, bool) {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	return e.OrderBook.Cancel(id)
}

func (e *Engine) Amend(id int64, quantity decimal.Decimal) bool {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	return e.OrderBook.Amend(id, quantity)
}

func (e *Engine) Restore(o *Order) {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	e.OrderBook.Restore(o)
}

func (e *Engine) TakeTriggered() []int64 {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	return e.OrderBook.TakeTriggered()
}

func (e *Engine) Contains(id int64) bool {
	e.MatchingMutex.RLock()
	defer e.MatchingMutex.RUnlock()

	_, ok := e.OrderBook.Get(id)
	return ok
}

func (e *Engine) Snapshot(limit int) *Snapshot {
	e.MatchingMutex.RLock()
	defer e.MatchingMutex.RUnlock()

	return e.OrderBook.Snapshot(limit)
}

func (e *Engine) MarketPrice() decimal.Decimal {
	e.MatchingMutex.RLock()
	defer e.MatchingMutex.RUnlock()

	return e.OrderBook.MarketPrice
}

// Initialize seeds the last price of a freshly loaded book. It does not
// trigger stops.
func (e *Engine) Initialize(price decimal.Decimal) {
	e.MatchingMutex.Lock()
	defer e.MatchingMutex.Unlock()

	if e.OrderBook.MarketPrice.IsZero() {
		e.OrderBook.MarketPrice = price
	}
	e.initialized = true
}

// Initialized reports whether the last price has been seeded.
func (e *Engine) Initialized() bool {
	e.MatchingMutex.RLock()
	defer e.MatchingMutex.RUnlock()

	return e.initialized
}

// Registry maps instrument keys to their engines.
type Registry struct {
	mutex   sync.RWMutex
	engines map[string]*Engine
}

func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
	}
}

// Get returns the engine for symbol, creating an empty one on first use.
func (r *Registry) Get(symbol string) *Engine {
	r.mutex.RLock()
	engine, ok := r.engines[symbol]
	r.mutex.RUnlock()

	if ok {
		return engine
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if engine, ok = r.engines[symbol]; !ok {
		engine = NewEngine(symbol, decimal.Zero)
		r.engines[symbol] = engine
	}

	return engine
}

func (r *Registry) Lookup(symbol string) (*Engine, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	engine, ok := r.engines[symbol]
	return engine, ok
}

func (r *Registry) Symbols() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	symbols := make([]string, 0, len(r.engines))
	for symbol := range r.engines {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return symbols
}
