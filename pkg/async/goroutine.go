package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// SafeGo executes fn in a goroutine bounded by timeout, recovering panics and logging
// errors under the task name. The returned channel is closed once fn has returned.
//
// Example:
//
//	async.SafeGo(ctx, 5*time.Minute, logger, "startup expiry pass", func(ctx context.Context) error {
//	    _, err := job.RunOnce(ctx)
//	    return err
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, logger *observability.Logger, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	log := logger.WithField("task", taskName)

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				}).Error("Background task panicked")
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			log.WithError(err).Error("Background task failed")
			return
		}
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Background task finished")
	}()

	return done
}
