// Package scanner runs the continuous decode/dispatch cycle: it pulls decode
// events from an acquired camera, debounces them through a fixed cooldown
// gate, classifies the payload, and hands tokens to the check-in coordinator
// one at a time.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/payload"
	"github.com/davidrys/gatepass/internal/services"
	"github.com/davidrys/gatepass/internal/store"
	"github.com/davidrys/gatepass/pkg/logger"
	"github.com/davidrys/gatepass/pkg/metrics"
)

// DefaultCooldown is the decode debounce window.
const DefaultCooldown = 200 * time.Millisecond

const idleHint = "Point the camera at a guest pass."

var (
	// ErrAlreadyRunning indicates Start was called on a running loop.
	ErrAlreadyRunning = errors.New("scanner: already running")
	// ErrNotRunning indicates Stop was called on a loop that is not running.
	ErrNotRunning = errors.New("scanner: not running")
)

// State is the lifecycle state of the loop.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
)

// Status is a snapshot of the loop for operator displays. Busy overlays the
// running state while a check-in round trip is in flight.
type Status struct {
	State   State  `json:"state"`
	Busy    bool   `json:"busy"`
	Message string `json:"message"`
}

// Callbacks are invoked from the loop's goroutines as events resolve.
type Callbacks struct {
	// OnCheckIn receives the resolution of each dispatched token.
	OnCheckIn func(result services.Result)
	// OnForeign receives the raw text of foreign and invalid codes.
	OnForeign func(raw string)
	// OnError receives store faults; the loop keeps running regardless.
	OnError func(err error)
}

// CheckInDispatcher resolves a token into a check-in result. The coordinator
// receives only the token, not the payload's redundant identity fields.
type CheckInDispatcher interface {
	CheckIn(ctx context.Context, tok string) services.Result
}

// Notifier fans scan activity out to realtime subscribers.
type Notifier interface {
	Publish(event string, data any)
}

// Option customises the loop.
type Option func(*Loop)

// WithCooldown overrides the debounce window.
func WithCooldown(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.cooldown = d
		}
	}
}

// WithClock injects a custom clock primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Loop) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithScanEvents enables audit recording of decode events.
func WithScanEvents(events *store.ScanEvents) Option {
	return func(l *Loop) {
		l.events = events
	}
}

// WithNotifier enables realtime publication of scan activity.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) {
		l.notifier = n
	}
}

// Loop owns all scan state as instance fields: multiple loops in one process
// never share cooldown or busy flags.
type Loop struct {
	camera   Camera
	checkins CheckInDispatcher
	cooldown time.Duration
	now      func() time.Time
	events   *store.ScanEvents
	notifier Notifier
	log      *zap.Logger

	mu          sync.Mutex
	state       State
	busy        bool
	nextAllowed time.Time
	message     string
	cb          Callbacks
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New constructs a scan loop in the idle state.
func New(camera Camera, checkins CheckInDispatcher, opts ...Option) (*Loop, error) {
	if camera == nil {
		return nil, errors.New("scanner: camera is required")
	}
	if checkins == nil {
		return nil, errors.New("scanner: check-in dispatcher is required")
	}

	l := &Loop{
		camera:   camera,
		checkins: checkins,
		cooldown: DefaultCooldown,
		now:      time.Now,
		log:      logger.WithModule("scanner"),
		state:    StateIdle,
		message:  "Scanner idle.",
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Start acquires the camera and begins the decode cycle. A classified camera
// failure leaves the loop idle with a cause-specific status message.
func (l *Loop) Start(ctx context.Context, cb Callbacks) error {
	l.mu.Lock()
	if l.state == StateStarting || l.state == StateRunning {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	// Claim the transition before releasing the lock: a concurrent Start must
	// not slip between the check and the acquisition, and only the claim's
	// owner may reset the state on acquisition failure.
	l.state = StateStarting
	l.mu.Unlock()

	stream, err := l.camera.Acquire(ctx)
	if err != nil {
		msg := "Could not start the camera."
		var camErr *CameraError
		if errors.As(err, &camErr) {
			msg = camErr.Message()
		}

		l.mu.Lock()
		l.state = StateIdle
		l.message = msg
		l.mu.Unlock()

		l.log.Warn("camera acquisition failed", zap.Error(err))
		return err
	}

	l.mu.Lock()
	l.state = StateRunning
	l.busy = false
	l.nextAllowed = time.Time{}
	l.message = idleHint
	l.cb = cb
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stop, done := l.stopCh, l.doneCh
	l.mu.Unlock()

	go l.run(stream, stop, done)

	l.log.Info("scanner started")
	return nil
}

// Stop halts the decode cycle and waits for the camera to be released. An
// in-flight check-in is not cancelled; its result is discarded on arrival.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.state = StateStopped
	l.message = "Scanner stopped."
	stop, done := l.stopCh, l.doneCh
	l.mu.Unlock()

	close(stop)
	<-done

	l.log.Info("scanner stopped")
	return nil
}

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{State: l.state, Busy: l.busy, Message: l.message}
}

// run consumes decode events until stopped. The camera is released on every
// exit path.
func (l *Loop) run(stream Stream, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := stream.Release(); err != nil {
			l.log.Warn("camera release failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-stream.Events():
			if !ok {
				l.mu.Lock()
				if l.state == StateRunning {
					l.state = StateStopped
					l.message = "Camera stream ended."
				}
				l.mu.Unlock()
				return
			}
			l.handleDecode(ev)
		}
	}
}

// handleDecode applies the cooldown gate and classifies one decode event.
func (l *Loop) handleDecode(ev Event) {
	raw := strings.TrimSpace(ev.Text)
	if raw == "" {
		return // decode miss: normal and free
	}

	now := l.now()

	l.mu.Lock()
	if now.Before(l.nextAllowed) {
		l.mu.Unlock()
		metrics.CooldownRejections.Inc()
		return
	}
	l.nextAllowed = now.Add(l.cooldown)
	cb := l.cb
	l.mu.Unlock()

	p, err := payload.Deserialize(raw)
	switch {
	case errors.Is(err, payload.ErrForeign):
		metrics.ScanDecodes.WithLabelValues(models.ScanClassForeign).Inc()
		l.record(models.ScanClassForeign, "", raw, "", nil)
		l.setMessage("Unrecognized code.")
		l.publish("scan.foreign", map[string]any{"raw": raw})
		if cb.OnForeign != nil {
			cb.OnForeign(raw)
		}

	case errors.Is(err, payload.ErrInvalid):
		metrics.ScanDecodes.WithLabelValues(models.ScanClassInvalid).Inc()
		l.record(models.ScanClassInvalid, "", raw, "", nil)
		l.setMessage("Code is not a guest pass.")
		l.publish("scan.invalid", map[string]any{"raw": raw})
		if cb.OnForeign != nil {
			cb.OnForeign(raw)
		}

	default:
		metrics.ScanDecodes.WithLabelValues(models.ScanClassRSVP).Inc()

		l.mu.Lock()
		if l.busy {
			// Single outstanding check-in at a time; extra decodes are
			// dropped, not queued.
			l.mu.Unlock()
			l.log.Debug("decode dropped while check-in in flight", zap.String("token", p.Token))
			return
		}
		l.busy = true
		l.message = "Checking in " + p.Name + "…"
		l.mu.Unlock()

		go l.dispatch(p, raw)
	}
}

// dispatch runs one check-in round trip. It is deliberately detached from the
// loop's stop signal: the round trip completes and the busy overlay is always
// cleared, but the result is discarded if the loop has stopped meanwhile.
func (l *Loop) dispatch(p *payload.ScanPayload, raw string) {
	result := l.checkins.CheckIn(context.Background(), p.Token)

	l.record(models.ScanClassRSVP, p.Token, raw, string(result.Outcome), p)

	l.mu.Lock()
	l.busy = false
	deliver := l.state == StateRunning
	cb := l.cb
	if deliver {
		l.message = idleHint
	}
	l.mu.Unlock()

	if !deliver {
		return
	}

	l.publish("scan.checkin", map[string]any{
		"token":   p.Token,
		"outcome": string(result.Outcome),
	})

	if result.Outcome == services.OutcomeStoreError && cb.OnError != nil {
		cb.OnError(result.Err)
	}
	if cb.OnCheckIn != nil {
		cb.OnCheckIn(result)
	}
}

func (l *Loop) setMessage(msg string) {
	l.mu.Lock()
	if l.state == StateRunning {
		l.message = msg
	}
	l.mu.Unlock()
}

func (l *Loop) publish(event string, data any) {
	if l.notifier == nil {
		return
	}
	l.notifier.Publish(event, data)
}

func (l *Loop) record(class, tok, raw, outcome string, p *payload.ScanPayload) {
	if l.events == nil {
		return
	}

	event := &models.ScanEvent{
		Classification: class,
		Token:          tok,
		RawText:        raw,
		Outcome:        outcome,
	}
	if p != nil {
		if encoded, err := json.Marshal(p); err == nil {
			event.Payload = datatypes.JSON(encoded)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.events.Record(ctx, event); err != nil {
		l.log.Warn("scan event not recorded", zap.Error(err))
	}
}
