package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// CameraCause is the platform-reported reason a camera failed to start.
type CameraCause string

const (
	CausePermissionDenied CameraCause = "permission_denied"
	CauseNoDevice         CameraCause = "no_device"
	CauseInsecureContext  CameraCause = "insecure_context"
	CauseUnknown          CameraCause = "unknown"
)

// CameraError classifies an acquisition failure into a user-facing cause.
type CameraError struct {
	Cause CameraCause
	Err   error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("camera: %s", e.Cause)
}

func (e *CameraError) Unwrap() error { return e.Err }

// Message returns the operator-facing status line for the failure cause.
func (e *CameraError) Message() string {
	switch e.Cause {
	case CausePermissionDenied:
		return "Camera permission denied. Allow camera access and try again."
	case CauseNoDevice:
		return "No camera device found."
	case CauseInsecureContext:
		return "Camera requires a secure (HTTPS) context."
	default:
		return "Could not start the camera."
	}
}

// Event is the result of one decode attempt. An empty Text is a decode miss:
// a normal, silent outcome, not an error.
type Event struct {
	Text string
}

// Stream delivers decode events from an acquired camera. Release must be
// safe to call on every exit path.
type Stream interface {
	Events() <-chan Event
	Release() error
}

// Camera acquires the optical decode stream. The decode primitive itself is
// external; implementations only transport its textual results.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// KioskCamera is a Camera fed over HTTP: an external decoder posts recovered
// text and this adapter forwards it as decode events.
type KioskCamera struct {
	mu       sync.Mutex
	stream   *kioskStream
	capacity int
}

// NewKioskCamera constructs a kiosk camera with the given event buffer.
func NewKioskCamera(capacity int) *KioskCamera {
	if capacity <= 0 {
		capacity = 16
	}
	return &KioskCamera{capacity: capacity}
}

// Acquire opens the event stream. Only one acquisition may be active at a time.
func (c *KioskCamera) Acquire(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil, &CameraError{Cause: CauseUnknown, Err: errors.New("kiosk camera already acquired")}
	}

	s := &kioskStream{
		events: make(chan Event, c.capacity),
		owner:  c,
	}
	c.stream = s
	return s, nil
}

// Submit forwards decoded text into the active stream. Submissions while no
// stream is acquired, or when the buffer is full, are dropped. The owner
// mutex is held across the send so Release cannot close the channel mid-send.
func (c *KioskCamera) Submit(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return false
	}

	select {
	case c.stream.events <- Event{Text: text}:
		return true
	default:
		return false
	}
}

func (c *KioskCamera) release(s *kioskStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == s {
		c.stream = nil
	}
	close(s.events)
}

type kioskStream struct {
	events chan Event
	owner  *KioskCamera
	once   sync.Once
}

func (s *kioskStream) Events() <-chan Event { return s.events }

func (s *kioskStream) Release() error {
	s.once.Do(func() {
		s.owner.release(s)
	})
	return nil
}
