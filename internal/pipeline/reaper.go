package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/util"
)

const defaultRetention = 10 * time.Minute

// Reaper deletes transient document copies a fixed delay after dispatch
// concludes, leaving a window for operator inspection.
type Reaper struct {
	retention time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewReaper builds a Reaper with the given retention window.
func NewReaper(retention time.Duration, logger *zap.Logger) *Reaper {
	if retention <= 0 {
		retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{retention: retention, logger: logger}
}

// Schedule arranges deletion of path after the retention window. The
// deletion proceeds even if the scheduling run's context has ended; ctx only
// bounds process shutdown.
func (r *Reaper) Schedule(ctx context.Context, path string) {
	if path == "" {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := util.WaitFor(ctx, r.retention); err != nil {
			r.logger.Debug("document cleanup skipped on shutdown", zap.String("path", path))
			return
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("deleting transient document failed",
				zap.String("path", path),
				zap.Error(err),
			)
			return
		}

		r.logger.Debug("transient document deleted", zap.String("path", path))
	}()
}

// Wait blocks until every scheduled deletion has run or been skipped.
func (r *Reaper) Wait() {
	r.wg.Wait()
}
