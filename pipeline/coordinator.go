// Package pipeline drives orders through the risk and compliance gates, the
// matching engine and settlement. Everything that touches an order book runs
// on the book's worker, so matching and settlement see one order of events
// per instrument.
package pipeline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/zsmartex/carbonex/compliance"
	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/mq_client"
	"github.com/zsmartex/carbonex/risk"
	"github.com/zsmartex/carbonex/services/audit"
	"github.com/zsmartex/carbonex/services/users"
	"github.com/zsmartex/carbonex/settlement"
	"github.com/zsmartex/carbonex/types"
	"github.com/zsmartex/carbonex/workers"
)

var ErrUnavailable = types.NewError(types.KindTemporarilyUnavailable, "server.temporarily_unavailable", "service temporarily unavailable")

// OrderResult is what a member gets back for submit, cancel and modify.
type OrderResult struct {
	OrderID         int64             `json:"order_id"`
	UUID            string            `json:"uuid"`
	Status          types.OrderStatus `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	FilledQuantity  decimal.Decimal   `json:"filled_quantity"`
	Trades          []*models.Trade   `json:"trades,omitempty"`
}

type Options struct {
	Store      ledger.Store
	Members    users.Service
	Risk       *risk.Gate
	Compliance *compliance.Gate
	Settlement *settlement.Engine
	Engines    *matching.Registry
	Dispatcher *workers.Dispatcher
	Fees       *models.FeeSchedule
	Policy     *config.Policy
	Auditor    audit.Auditor
	// Events is optional; without it no order or trade events are published.
	Events *mq_client.Client
}

type Coordinator struct {
	store      ledger.Store
	members    users.Service
	risk       *risk.Gate
	compliance *compliance.Gate
	settlement *settlement.Engine
	engines    *matching.Registry
	dispatcher *workers.Dispatcher
	fees       *models.FeeSchedule
	policy     *config.Policy
	auditor    audit.Auditor
	events     *mq_client.Client

	submissions singleflight.Group
	Now         func() time.Time
}

func New(opts Options) *Coordinator {
	if opts.Engines == nil {
		opts.Engines = matching.NewRegistry()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = workers.NewDispatcher(0)
	}
	if opts.Auditor == nil {
		opts.Auditor = audit.LogAuditor{}
	}

	return &Coordinator{
		store:      opts.Store,
		members:    opts.Members,
		risk:       opts.Risk,
		compliance: opts.Compliance,
		settlement: opts.Settlement,
		engines:    opts.Engines,
		dispatcher: opts.Dispatcher,
		fees:       opts.Fees,
		policy:     opts.Policy,
		auditor:    opts.Auditor,
		events:     opts.Events,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Engines exposes the order books, e.g. for the depth cache job.
func (c *Coordinator) Engines() *matching.Registry {
	return c.engines
}

// onWorker runs fn on the worker of key. The job is detached from the
// caller's cancellation so a computed match is always persisted.
func (c *Coordinator) onWorker(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	jobCtx := context.WithoutCancel(ctx)

	return c.dispatcher.Do(ctx, key, func() error {
		return fn(jobCtx)
	})
}

func (c *Coordinator) resultFor(ctx context.Context, order *models.Order) (*OrderResult, error) {
	trades, err := c.store.ListTrades(ctx, ledger.TradeFilter{OrderID: order.ID, OrderBy: types.OrderByAsc})
	if err != nil {
		return nil, unavailable(err)
	}

	return newResult(order, trades), nil
}

func newResult(order *models.Order, trades []*models.Trade) *OrderResult {
	return &OrderResult{
		OrderID:         order.ID,
		UUID:            order.UUID.String(),
		Status:          order.Status,
		RejectionReason: order.RejectionReason.String,
		FilledQuantity:  order.FilledQuantity,
		Trades:          trades,
	}
}

// unavailable wraps storage failures that are not already typed.
func unavailable(err error) error {
	var typed *types.Error
	if errors.As(err, &typed) {
		if errors.Is(err, ledger.ErrConflict) {
			return types.Wrap(types.KindTemporarilyUnavailable, ErrUnavailable.Code, err)
		}

		return err
	}

	return types.Wrap(types.KindTemporarilyUnavailable, ErrUnavailable.Code, err)
}

// publishOrder sends the order update to its member's private stream.
func (c *Coordinator) publishOrder(order *models.Order) {
	if c.events == nil {
		return
	}

	if err := c.events.EnqueueEvent("private", strconv.FormatInt(order.MemberID, 10), "order", order); err != nil {
		config.Logger.Warnf("[carbonex.pipeline] failed to publish order %d update: %v", order.ID, err)
	}
}

// publishTrades sends new trades to the public stream of their book.
func (c *Coordinator) publishTrades(key string, trades []*models.Trade) {
	if c.events == nil || len(trades) == 0 {
		return
	}

	if err := c.events.EnqueueEvent("public", key, "trades", trades); err != nil {
		config.Logger.Warnf("[carbonex.pipeline] failed to publish %d trades of %s: %v", len(trades), key, err)
	}
}
