package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/store"
	"github.com/davidrys/gatepass/pkg/logger"
	"github.com/davidrys/gatepass/pkg/metrics"
)

const defaultCheckInTimeout = 5 * time.Second

// Outcome classifies how a check-in attempt resolved.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeAlreadyCheckedIn Outcome = "already_checked_in"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeStoreError       Outcome = "store_error"
)

// Result is the full resolution of one check-in attempt. Err is populated
// only for OutcomeStoreError; everything else is a normal terminal answer.
type Result struct {
	Outcome Outcome
	Record  *models.Registrant
	Err     error
}

// CheckInOption customises CheckInService behaviour.
type CheckInOption func(*CheckInService)

// WithCheckInTimeout bounds the store round trip for one attempt.
func WithCheckInTimeout(d time.Duration) CheckInOption {
	return func(s *CheckInService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCheckInClock injects a custom clock primarily for testing.
func WithCheckInClock(clock func() time.Time) CheckInOption {
	return func(s *CheckInService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// CheckInService executes the read-modify-write protocol that turns a scanned
// token into the invited -> checked_in transition, exactly once per record.
// Its input is deliberately just the token: redundant payload fields can
// never reach a store write through this type.
type CheckInService struct {
	registrants *store.Registrants
	timeout     time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// NewCheckInService constructs a CheckInService.
func NewCheckInService(registrants *store.Registrants, opts ...CheckInOption) (*CheckInService, error) {
	if registrants == nil {
		return nil, errors.New("checkin service: registrant store is required")
	}

	service := &CheckInService{
		registrants: registrants,
		timeout:     defaultCheckInTimeout,
		now:         time.Now,
		log:         logger.WithModule("checkin"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CheckIn resolves a token into an outcome. Re-presenting a token after a
// successful check-in is a no-op that reports the existing record; a race
// lost to another scanner converges to the same answer instead of surfacing
// as an error. Store faults bound by the timeout come back as
// OutcomeStoreError and are retryable by rescanning.
func (s *CheckInService) CheckIn(ctx context.Context, tok string) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := s.checkIn(ctx, tok)
	metrics.CheckIns.WithLabelValues(string(result.Outcome)).Inc()

	switch result.Outcome {
	case OutcomeSucceeded:
		s.log.Info("checked in",
			zap.String("token", tok),
			zap.String("name", result.Record.Name),
		)
	case OutcomeStoreError:
		s.log.Error("store fault during check-in", zap.String("token", tok), zap.Error(result.Err))
	}

	return result
}

func (s *CheckInService) checkIn(ctx context.Context, tok string) Result {
	record, err := s.registrants.Get(ctx, tok)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Outcome: OutcomeNotFound}
		}
		return Result{Outcome: OutcomeStoreError, Err: err}
	}

	if record.CheckedIn() {
		return Result{Outcome: OutcomeAlreadyCheckedIn, Record: record}
	}

	now := s.now()
	// Physical presence overrides the declared intent, so coming_intent is
	// forced true here regardless of what the registrant answered upfront.
	err = s.registrants.UpdateIfStatus(ctx, tok, models.StatusInvited, map[string]any{
		"status":        models.StatusCheckedIn,
		"coming_intent": true,
		"checked_in_at": now,
	})

	switch {
	case err == nil:
		record.Status = models.StatusCheckedIn
		record.ComingIntent = true
		record.CheckedInAt = &now
		return Result{Outcome: OutcomeSucceeded, Record: record}

	case errors.Is(err, store.ErrStale):
		// Another station won the transition between our read and write;
		// re-read and report the terminal state.
		current, readErr := s.registrants.Get(ctx, tok)
		if readErr != nil {
			if errors.Is(readErr, store.ErrNotFound) {
				return Result{Outcome: OutcomeNotFound}
			}
			return Result{Outcome: OutcomeStoreError, Err: readErr}
		}
		return Result{Outcome: OutcomeAlreadyCheckedIn, Record: current}

	case errors.Is(err, store.ErrNotFound):
		return Result{Outcome: OutcomeNotFound}

	default:
		return Result{Outcome: OutcomeStoreError, Err: err}
	}
}
