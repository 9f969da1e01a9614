// Package maintenance runs scheduled background jobs: a periodic attendance
// summary and pruning of old scan audit rows. Registrant records are never
// deleted here or anywhere else.
package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/davidrys/gatepass/internal/store"
	"github.com/davidrys/gatepass/pkg/logger"
)

const (
	defaultSchedule       = "@daily"
	defaultEventRetention = 30 * 24 * time.Hour
)

// Reporter coordinates the scheduled maintenance tasks.
type Reporter struct {
	registrants *store.Registrants
	events      *store.ScanEvents
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger

	schedule  string
	retention time.Duration
}

// Option customises the Reporter.
type Option func(*Reporter)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reporter) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the maintenance run.
func WithSchedule(spec string) Option {
	return func(r *Reporter) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithEventRetention adjusts how long scan audit rows are retained.
func WithEventRetention(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewReporter constructs a Reporter with the provided stores.
func NewReporter(registrants *store.Registrants, events *store.ScanEvents, opts ...Option) (*Reporter, error) {
	if registrants == nil {
		return nil, errors.New("maintenance: registrant store is required")
	}
	if events == nil {
		return nil, errors.New("maintenance: scan event store is required")
	}

	r := &Reporter{
		registrants: registrants,
		events:      events,
		cron:        cron.New(),
		now:         time.Now,
		log:         logger.WithModule("maintenance"),
		schedule:    defaultSchedule,
		retention:   defaultEventRetention,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Start registers the maintenance job and begins the scheduler.
func (r *Reporter) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.log.Error("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Reporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RunOnce executes one maintenance pass: log the attendance summary, then
// prune expired scan events. Both tasks run even if one fails.
func (r *Reporter) RunOnce(ctx context.Context) error {
	var errs error

	counts, err := r.registrants.CountByStatus(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		r.log.Info("attendance summary",
			zap.Int64("invited", counts["invited"]),
			zap.Int64("checked_in", counts["checked_in"]),
			zap.Int64("cancelled", counts["cancelled"]),
		)
	}

	cutoff := r.now().Add(-r.retention)
	pruned, err := r.events.PruneBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if pruned > 0 {
		r.log.Info("pruned scan events", zap.Int64("count", pruned), zap.Time("cutoff", cutoff))
	}

	return errs
}
