package cron

import (
	"context"
	"time"
)

type OrderExpirer interface {
	ExpireOrders(ctx context.Context, now time.Time) (int, error)
}

// ExpireOrdersJob sweeps orders whose good-till time has passed.
type ExpireOrdersJob struct {
	Orders OrderExpirer
}

func (j *ExpireOrdersJob) Name() string {
	return "expire_orders"
}

func (j *ExpireOrdersJob) Process(ctx context.Context) error {
	_, err := j.Orders.ExpireOrders(ctx, time.Now().UTC())
	return err
}
