package cron

import (
	"context"

	"github.com/zsmartex/carbonex/config"
)

type SettlementRetrier interface {
	RetrySettlements(ctx context.Context) (int, error)
}

// SettlementRetryJob re-drives trades whose settlement failed and whose
// backoff has elapsed.
type SettlementRetryJob struct {
	Trades SettlementRetrier
}

func (j *SettlementRetryJob) Name() string {
	return "settlement_retry"
}

func (j *SettlementRetryJob) Process(ctx context.Context) error {
	settled, err := j.Trades.RetrySettlements(ctx)
	if settled > 0 {
		config.Logger.Infof("[carbonex.cron] settled %d trades on retry", settled)
	}

	return err
}
