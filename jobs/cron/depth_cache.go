package cron

import "context"

type DepthPublisher interface {
	Process(ctx context.Context) error
}

type DepthCacheJob struct {
	Worker DepthPublisher
}

func (j *DepthCacheJob) Name() string {
	return "depth_cache"
}

func (j *DepthCacheJob) Process(ctx context.Context) error {
	return j.Worker.Process(ctx)
}
