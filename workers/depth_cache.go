package workers

import (
	"context"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/services/depth_service"
)

const defaultDepthLimit = 50

type DepthWorker struct {
	engines *matching.Registry
	depths  *depth_service.DepthService
	Limit   int
}

func NewDepthWorker(engines *matching.Registry, depths *depth_service.DepthService) *DepthWorker {
	return &DepthWorker{
		engines: engines,
		depths:  depths,
		Limit:   defaultDepthLimit,
	}
}

// Process publishes the depth of every loaded book that changed since the
// last run. It returns the last cache error, after trying every book.
func (w *DepthWorker) Process(ctx context.Context) error {
	var lastErr error

	for _, symbol := range w.engines.Symbols() {
		engine, ok := w.engines.Lookup(symbol)
		if !ok {
			continue
		}

		if _, err := w.depths.Publish(ctx, engine.Snapshot(w.Limit)); err != nil {
			config.Logger.Warnf("[carbonex.depth] failed to cache depth of %s: %v", symbol, err)
			lastErr = err
		}
	}

	return lastErr
}
