package daemons

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickJob struct {
	runs int32
	err  error
}

func (j *tickJob) Name() string {
	return "tick"
}

func (j *tickJob) Process(context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestCronJobRunsUntilCancelled(t *testing.T) {
	ok := &tickJob{}
	failing := &tickJob{err: errors.New("boom")}
	disabled := &tickJob{}

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()

	cron := NewCronJob(
		Schedule{Every: 1, Job: ok},
		Schedule{Every: 1, Job: failing},
		Schedule{Every: 0, Job: disabled},
	)
	require.NoError(t, cron.Start(ctx))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&ok.runs), int32(1))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&failing.runs), int32(1))
	assert.Zero(t, atomic.LoadInt32(&disabled.runs))
}

func TestProcessRunsJobOnce(t *testing.T) {
	job := &tickJob{}
	NewCronJob().Process(context.Background(), job)
	assert.Equal(t, int32(1), job.runs)
}
