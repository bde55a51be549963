// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// QueueDepthSource reports counts of in-process job queue entries by
// status, the way internal/queue's Queue does. Kept as a tiny interface
// here (instead of importing internal/queue directly) to avoid a
// config/obs/queue import cycle.
type QueueDepthSource interface {
	DepthByStatus() map[string]int
}

// StartQueueDepthUpdater samples the job queue's depth and updates a gauge,
// replacing the teacher's Redis LLEN poll (there is no Redis list to poll;
// the Job Queue is in-process) with a poll of the queue's own counters.
func StartQueueDepthUpdater(ctx context.Context, interval time.Duration, src QueueDepthSource, log *zap.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for status, n := range src.DepthByStatus() {
					QueueDepth.WithLabelValues(status).Set(float64(n))
				}
			}
		}
	}()
}
