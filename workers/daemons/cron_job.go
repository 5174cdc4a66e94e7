package daemons

import (
	"context"
	"time"

	"github.com/jasonlvhit/gocron"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/jobs"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop()
}

// Schedule runs Job every Every seconds.
type Schedule struct {
	Every uint64
	Job   jobs.Job
}

type CronJob struct {
	scheduler *gocron.Scheduler
	schedules []Schedule
	stopped   chan bool
}

func NewCronJob(schedules ...Schedule) *CronJob {
	return &CronJob{
		scheduler: gocron.NewScheduler(),
		schedules: schedules,
	}
}

// Start schedules every job and blocks until ctx is done or Stop is called.
func (c *CronJob) Start(ctx context.Context) error {
	for _, s := range c.schedules {
		if s.Every == 0 {
			config.Logger.Infof("[carbonex.cron] %s is disabled", s.Job.Name())
			continue
		}

		if err := c.scheduler.Every(s.Every).Seconds().Do(c.Process, ctx, s.Job); err != nil {
			return err
		}
	}

	c.stopped = c.scheduler.Start()
	config.Logger.Infof("[carbonex.cron] started %d jobs", c.scheduler.Len())

	<-ctx.Done()
	c.Stop()

	return nil
}

func (c *CronJob) Stop() {
	if c.stopped == nil {
		return
	}

	select {
	case c.stopped <- true:
	default:
	}
}

func (c *CronJob) Process(ctx context.Context, job jobs.Job) {
	started := time.Now()

	if err := job.Process(ctx); err != nil {
		config.Logger.Errorf("[carbonex.cron] %s failed: %v", job.Name(), err)
		return
	}

	config.Logger.Debugf("[carbonex.cron] %s finished in %s", job.Name(), time.Since(started))
}
