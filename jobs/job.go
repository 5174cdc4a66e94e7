package jobs

import "context"

// Job is one periodic task run by the cron daemon.
type Job interface {
	Name() string
	Process(ctx context.Context) error
}
