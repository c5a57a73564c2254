package policies

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// DefaultRunTimeout bounds one expiry pass
const DefaultRunTimeout = 5 * time.Minute

// Expirer transitions lapsed policies
type Expirer interface {
	ExpireLapsedPolicies(ctx context.Context, asOf time.Time) (int64, error)
}

// Recorder records expiry runs
type Recorder interface {
	RecordPolicyExpiry(expired int64, err error)
}

// ExpiryJob marks lapsed policies expired, once or on a cron schedule
type ExpiryJob struct {
	store    Expirer
	recorder Recorder
	logger   *observability.Logger
	now      func() time.Time
	timeout  time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// NewExpiryJob creates an expiry job. recorder may be nil.
func NewExpiryJob(store Expirer, recorder Recorder, logger *observability.Logger) *ExpiryJob {
	return &ExpiryJob{
		store:    store,
		recorder: recorder,
		logger:   logger.WithComponent("policy_expiry"),
		now:      time.Now,
		timeout:  DefaultRunTimeout,
	}
}

// RunOnce performs one expiry pass and returns how many policies changed status
func (j *ExpiryJob) RunOnce(ctx context.Context) (int64, error) {
	start := j.now()
	n, err := j.store.ExpireLapsedPolicies(ctx, start)
	if j.recorder != nil {
		j.recorder.RecordPolicyExpiry(n, err)
	}

	log := j.logger.WithFields(map[string]interface{}{
		"expired":     n,
		"as_of":       start.UTC().Format("2006-01-02"),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("Policy expiry pass failed")
		return 0, fmt.Errorf("policy expiry failed: %w", err)
	}
	if n > 0 {
		log.Info("Expired lapsed policies")
	} else {
		log.Debug("No lapsed policies")
	}
	return n, nil
}

// Start schedules the pass with a standard five-field cron spec or a descriptor such as
// "@hourly". Overlapping runs are skipped.
func (j *ExpiryJob) Start(schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return fmt.Errorf("expiry job already started")
	}

	logger := cronLogger{j.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, j.scheduledRun); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", schedule, err)
	}

	c.Start()
	j.cron = c
	j.logger.WithField("schedule", schedule).Info("Policy expiry job scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (j *ExpiryJob) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (j *ExpiryJob) scheduledRun() {
	defer observability.RecoverPanic(j.logger, "policy expiry")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, _ = j.RunOnce(ctx)
}

// cronLogger adapts the portal logger to cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kv(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kv(keysAndValues)).WithError(err).Error(msg)
}

func kv(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
