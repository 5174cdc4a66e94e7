package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsmartex/carbonex/jobs"
)

type fakePipeline struct {
	expiredAt time.Time
	retries   int
	err       error
}

func (f *fakePipeline) ExpireOrders(_ context.Context, now time.Time) (int, error) {
	f.expiredAt = now
	return 2, f.err
}

func (f *fakePipeline) RetrySettlements(context.Context) (int, error) {
	f.retries++
	return 1, f.err
}

type fakeDepth struct{ runs int }

func (f *fakeDepth) Process(context.Context) error {
	f.runs++
	return nil
}

func TestJobsDelegate(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{}
	depth := &fakeDepth{}

	all := []jobs.Job{
		&ExpireOrdersJob{Orders: p},
		&SettlementRetryJob{Trades: p},
		&DepthCacheJob{Worker: depth},
	}

	names := make([]string, 0, len(all))
	for _, job := range all {
		require.NoError(t, job.Process(ctx))
		names = append(names, job.Name())
	}

	assert.Equal(t, []string{"expire_orders", "settlement_retry", "depth_cache"}, names)
	assert.Equal(t, time.UTC, p.expiredAt.Location())
	assert.Equal(t, 1, p.retries)
	assert.Equal(t, 1, depth.runs)
}

func TestJobsSurfaceErrors(t *testing.T) {
	boom := errors.New("database is locked")
	p := &fakePipeline{err: boom}

	assert.ErrorIs(t, (&ExpireOrdersJob{Orders: p}).Process(context.Background()), boom)
	assert.ErrorIs(t, (&SettlementRetryJob{Trades: p}).Process(context.Background()), boom)
}
