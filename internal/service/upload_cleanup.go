package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// UploadCleanup periodically removes uploads older than retention. The
// returned scheduler is already running; stop it on shutdown.
func UploadCleanup(schedule string, retention time.Duration, k *UploadKeeper) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		n, err := k.Prune(time.Now().Add(-retention))
		if err != nil {
			zap.L().Error("Failed to prune uploads", zap.Error(err))
			return
		}

		if n > 0 {
			zap.L().Debug("Pruned old uploads", zap.Int("removed", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q, %w", schedule, err)
	}

	zap.L().Debug("Upload cleanup attached",
		zap.String("schedule", schedule),
		zap.Duration("retention", retention))

	c.Start()
	return c, nil
}
