package uploadservice

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
)

// StartExpirySweep periodically removes pending Manifests whose
// UploadToken has expired without a merge ever completing. Call in a
// goroutine; it runs until ctx is cancelled.
func (s *service) StartExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.meta.SweepExpiredPendingManifests(ctx, time.Now())
			if err != nil {
				logger.Warn("uploadservice: expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("uploadservice: swept expired pending manifests", zap.Int64("count", n))
			}
		}
	}
}
