package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidrys/gatepass/internal/services"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	tokens  []string
	release chan struct{} // when set, CheckIn blocks until closed
	result  services.Result
}

func (d *fakeDispatcher) CheckIn(ctx context.Context, tok string) services.Result {
	d.mu.Lock()
	d.tokens = append(d.tokens, tok)
	release := d.release
	d.mu.Unlock()

	if release != nil {
		<-release
	}
	return d.result
}

func (d *fakeDispatcher) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

func newRunningLoop(t *testing.T, dispatcher CheckInDispatcher, cb Callbacks, opts ...Option) (*Loop, *KioskCamera) {
	t.Helper()

	camera := NewKioskCamera(16)
	loop, err := New(camera, dispatcher, opts...)
	require.NoError(t, err)

	require.NoError(t, loop.Start(context.Background(), cb))
	t.Cleanup(func() { _ = loop.Stop() })

	return loop, camera
}

func TestCooldownGateDispatchWindows(t *testing.T) {
	base := time.Date(2026, 6, 21, 20, 0, 0, 0, time.UTC)
	current := base

	var mu sync.Mutex
	var seen []string

	dispatcher := &fakeDispatcher{}
	loop, err := New(NewKioskCamera(1), dispatcher,
		WithCooldown(200*time.Millisecond),
		WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	loop.cb = Callbacks{OnForeign: func(raw string) {
		mu.Lock()
		seen = append(seen, raw)
		mu.Unlock()
	}}

	offsets := []time.Duration{0, 1 * time.Millisecond, 199 * time.Millisecond, 201 * time.Millisecond}
	for _, off := range offsets {
		current = base.Add(off)
		loop.handleDecode(Event{Text: "hello world"})
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2, "only the events at t and t+201ms pass the gate")
}

func TestCooldownGateIsContentIndependent(t *testing.T) {
	base := time.Date(2026, 6, 21, 20, 0, 0, 0, time.UTC)
	current := base

	var mu sync.Mutex
	var seen []string

	loop, err := New(NewKioskCamera(1), &fakeDispatcher{},
		WithCooldown(200*time.Millisecond),
		WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)
	loop.cb = Callbacks{OnForeign: func(raw string) {
		mu.Lock()
		seen = append(seen, raw)
		mu.Unlock()
	}}

	loop.handleDecode(Event{Text: "first code"})
	current = base.Add(50 * time.Millisecond)
	// A different code inside the window is still discarded.
	loop.handleDecode(Event{Text: "second code"})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first code"}, seen)
}

func TestDecodeMissIsSilent(t *testing.T) {
	loop, err := New(NewKioskCamera(1), &fakeDispatcher{})
	require.NoError(t, err)

	fired := false
	loop.cb = Callbacks{OnForeign: func(string) { fired = true }}

	loop.handleDecode(Event{Text: ""})
	loop.handleDecode(Event{Text: "   "})
	require.False(t, fired)
}

func TestForeignCodeSurfacesRawText(t *testing.T) {
	var mu sync.Mutex
	var raws []string

	dispatcher := &fakeDispatcher{}
	_, camera := newRunningLoop(t, dispatcher, Callbacks{
		OnForeign: func(raw string) {
			mu.Lock()
			raws = append(raws, raw)
			mu.Unlock()
		},
	}, WithCooldown(time.Nanosecond))

	require.True(t, camera.Submit("hello world"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(raws) == 1 && raws[0] == "hello world"
	}, time.Second, 5*time.Millisecond)

	require.Empty(t, dispatcher.calls(), "foreign codes never reach the coordinator")
}

func TestValidPayloadDispatchesTokenOnly(t *testing.T) {
	done := make(chan services.Result, 1)
	dispatcher := &fakeDispatcher{result: services.Result{Outcome: services.OutcomeSucceeded}}

	_, camera := newRunningLoop(t, dispatcher, Callbacks{
		OnCheckIn: func(r services.Result) { done <- r },
	}, WithCooldown(time.Nanosecond))

	require.True(t, camera.Submit(`{"t":"rsvp","token":"tokAAAA11112222","name":"Ana"}`))

	select {
	case r := <-done:
		require.Equal(t, services.OutcomeSucceeded, r.Outcome)
	case <-time.After(time.Second):
		t.Fatal("check-in result not delivered")
	}

	require.Equal(t, []string{"tokAAAA11112222"}, dispatcher.calls())
}

func TestBusyOverlayDropsConcurrentDispatch(t *testing.T) {
	release := make(chan struct{})
	dispatcher := &fakeDispatcher{
		release: release,
		result:  services.Result{Outcome: services.OutcomeSucceeded},
	}

	results := make(chan services.Result, 2)
	foreign := make(chan string, 1)
	loop, camera := newRunningLoop(t, dispatcher, Callbacks{
		OnCheckIn: func(r services.Result) { results <- r },
		OnForeign: func(raw string) { foreign <- raw },
	}, WithCooldown(time.Nanosecond))

	require.True(t, camera.Submit(`{"t":"rsvp","token":"busy000000000001"}`))

	require.Eventually(t, func() bool { return loop.Status().Busy }, time.Second, time.Millisecond)

	// Two more decodes while the first check-in is in flight: the gate
	// accepts them, the dispatch is withheld and dropped.
	require.True(t, camera.Submit(`{"t":"rsvp","token":"busy000000000002"}`))
	require.True(t, camera.Submit(`{"t":"rsvp","token":"busy000000000003"}`))

	// Events are consumed in order, so once this sentinel surfaces the two
	// decodes above have been processed (and dropped).
	require.True(t, camera.Submit("sentinel"))
	select {
	case raw := <-foreign:
		require.Equal(t, "sentinel", raw)
	case <-time.After(time.Second):
		t.Fatal("sentinel decode not processed")
	}
	require.True(t, loop.Status().Busy)

	close(release)

	select {
	case r := <-results:
		require.Equal(t, services.OutcomeSucceeded, r.Outcome)
	case <-time.After(time.Second):
		t.Fatal("first check-in never resolved")
	}

	require.Eventually(t, func() bool { return !loop.Status().Busy }, time.Second, time.Millisecond)
	require.Equal(t, []string{"busy000000000001"}, dispatcher.calls())

	select {
	case <-results:
		t.Fatal("dropped decodes must not produce results")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopReleasesCameraAndDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	dispatcher := &fakeDispatcher{
		release: release,
		result:  services.Result{Outcome: services.OutcomeSucceeded},
	}

	delivered := make(chan services.Result, 1)
	camera := NewKioskCamera(4)
	loop, err := New(camera, dispatcher, WithCooldown(time.Nanosecond))
	require.NoError(t, err)

	require.NoError(t, loop.Start(context.Background(), Callbacks{
		OnCheckIn: func(r services.Result) { delivered <- r },
	}))

	require.True(t, camera.Submit(`{"t":"rsvp","token":"stop000000000001"}`))
	require.Eventually(t, func() bool { return loop.Status().Busy }, time.Second, time.Millisecond)

	require.NoError(t, loop.Stop())
	require.Equal(t, StateStopped, loop.Status().State)

	// Camera is released: submissions are rejected.
	require.False(t, camera.Submit("anything"))

	// The in-flight check-in completes but its result is discarded.
	close(release)
	require.Eventually(t, func() bool { return !loop.Status().Busy }, time.Second, time.Millisecond)

	select {
	case <-delivered:
		t.Fatal("result delivered after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartStopStatesAndErrors(t *testing.T) {
	camera := NewKioskCamera(1)
	loop, err := New(camera, &fakeDispatcher{})
	require.NoError(t, err)

	require.Equal(t, StateIdle, loop.Status().State)
	require.ErrorIs(t, loop.Stop(), ErrNotRunning)

	require.NoError(t, loop.Start(context.Background(), Callbacks{}))
	require.Equal(t, StateRunning, loop.Status().State)
	require.ErrorIs(t, loop.Start(context.Background(), Callbacks{}), ErrAlreadyRunning)

	require.NoError(t, loop.Stop())
	require.ErrorIs(t, loop.Stop(), ErrNotRunning)

	// The loop is restartable after a stop; the kiosk camera was released.
	require.NoError(t, loop.Start(context.Background(), Callbacks{}))
	require.NoError(t, loop.Stop())
}

// gatedCamera wedges Acquire between the entered signal and proceed, so a
// test can hold one Start mid-acquisition while racing another against it.
type gatedCamera struct {
	entered chan struct{}
	proceed chan struct{}
	inner   *KioskCamera
	calls   int32
}

func (c *gatedCamera) Acquire(ctx context.Context) (Stream, error) {
	atomic.AddInt32(&c.calls, 1)
	c.entered <- struct{}{}
	<-c.proceed
	return c.inner.Acquire(ctx)
}

func TestConcurrentStartCannotResetRunningState(t *testing.T) {
	camera := &gatedCamera{
		entered: make(chan struct{}, 2),
		proceed: make(chan struct{}),
		inner:   NewKioskCamera(4),
	}
	loop, err := New(camera, &fakeDispatcher{})
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() { firstErr <- loop.Start(context.Background(), Callbacks{}) }()

	// The first caller holds the transition and is wedged inside Acquire.
	<-camera.entered
	require.Equal(t, StateStarting, loop.Status().State)

	// A racing Start must be rejected before it ever reaches the camera;
	// losing after the winner flips to running would let its failure branch
	// knock the state back to idle with the decode goroutine still live.
	require.ErrorIs(t, loop.Start(context.Background(), Callbacks{}), ErrAlreadyRunning)
	require.EqualValues(t, 1, atomic.LoadInt32(&camera.calls))

	close(camera.proceed)
	require.NoError(t, <-firstErr)
	require.Equal(t, StateRunning, loop.Status().State)

	require.NoError(t, loop.Stop())
	require.Equal(t, StateStopped, loop.Status().State)
}

type failingCamera struct{ cause CameraCause }

func (c failingCamera) Acquire(ctx context.Context) (Stream, error) {
	return nil, &CameraError{Cause: c.cause}
}

func TestCameraFailureLeavesLoopIdleWithCauseMessage(t *testing.T) {
	cases := map[CameraCause]string{
		CausePermissionDenied: "permission",
		CauseNoDevice:         "No camera",
		CauseInsecureContext:  "secure",
		CauseUnknown:          "Could not start",
	}

	for cause, fragment := range cases {
		loop, err := New(failingCamera{cause: cause}, &fakeDispatcher{})
		require.NoError(t, err)

		err = loop.Start(context.Background(), Callbacks{})
		require.Error(t, err)

		status := loop.Status()
		require.Equal(t, StateIdle, status.State, "cause %s", cause)
		require.Contains(t, status.Message, fragment, "cause %s", cause)
	}
}
