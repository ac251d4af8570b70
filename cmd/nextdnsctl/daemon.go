package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// minInterval is the shortest accepted sync --interval.
const minInterval = 1 * time.Minute

// every calls run immediately and then once per interval until ctx is done.
// Errors are logged and do not stop the loop.
func every(ctx context.Context, interval time.Duration, run func(context.Context) error, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil {
			logger.WithError(err).Error("sync failed")
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
