// Package audit emits fire-and-forget audit events. Persistence of the audit
// log belongs to the consuming service.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/mq_client"
)

const (
	KindOrderSubmitted = "order_submitted"
	KindOrderRejected  = "order_rejected"
	KindOrderCancelled = "order_cancelled"
	KindOrderModified  = "order_modified"
	KindOrderExpired   = "order_expired"
	KindTradeSettled   = "trade_settled"
	KindTradeFailed    = "trade_failed"
)

type Event struct {
	Kind      string                 `json:"kind"`
	MemberID  int64                  `json:"member_id,omitempty"`
	OrderID   int64                  `json:"order_id,omitempty"`
	TradeID   int64                  `json:"trade_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Auditor interface {
	Record(ctx context.Context, event Event)
}

// NatsAuditor publishes events on carbonex.audit.<kind>.
type NatsAuditor struct {
	client *mq_client.Client
}

func NewNatsAuditor(client *mq_client.Client) *NatsAuditor {
	return &NatsAuditor{client: client}
}

func (a *NatsAuditor) Record(_ context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := a.client.Enqueue("carbonex.audit."+event.Kind, event); err != nil {
		config.Logger.Errorf("[carbonex.audit] failed to publish %s event: %v", event.Kind, err)
	}
}

// LogAuditor writes events to the process log.
type LogAuditor struct{}

func (LogAuditor) Record(_ context.Context, event Event) {
	config.Logger.WithFields(logrus.Fields{
		"member_id": event.MemberID,
		"order_id":  event.OrderID,
		"trade_id":  event.TradeID,
		"details":   event.Details,
	}).Infof("[carbonex.audit] %s", event.Kind)
}
