package gesture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/pose"
)

// State is the capture readiness.
type State string

// Readiness states.
const (
	Disarmed State = "disarmed"
	Armed    State = "armed"
)

// Transition names.
const (
	eventArm    = "arm"
	eventDetect = "detect"
	eventDisarm = "disarm"
)

// CaptureIntent is the decision to take a picture. Each intent is handed to
// the Capturer exactly once.
type CaptureIntent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Capturer takes the picture for an intent. Capture must not block.
type Capturer interface {
	Capture(intent CaptureIntent)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(CaptureIntent)

// Capture calls f(intent).
func (f CapturerFunc) Capture(intent CaptureIntent) { f(intent) }

// Machine holds the readiness state and fires one CaptureIntent per
// armed period when a facepalm is seen. It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	fsm       *fsm.FSM
	capturer  Capturer
	publisher event.Publisher
	now       func() time.Time
	captures  int
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source used for intent timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine in the Disarmed state. A nil publisher
// discards notifications.
func NewMachine(capturer Capturer, publisher event.Publisher, opts ...Option) *Machine {
	if publisher == nil {
		publisher = event.Discard
	}
	if capturer == nil {
		capturer = CapturerFunc(func(CaptureIntent) {})
	}

	m := &Machine{
		capturer:  capturer,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.fsm = fsm.NewFSM(
		string(Disarmed),
		fsm.Events{
			{Name: eventArm, Src: []string{string(Disarmed)}, Dst: string(Armed)},
			{Name: eventDetect, Src: []string{string(Armed)}, Dst: string(Disarmed)},
			{Name: eventDisarm, Src: []string{string(Armed)}, Dst: string(Disarmed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("readiness changed", "component", "gesture", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)

	return m
}

// State returns the current readiness.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State(m.fsm.Current())
}

// IsArmed reports whether a facepalm would trigger a capture.
func (m *Machine) IsArmed() bool {
	return m.State() == Armed
}

// Captures returns how many intents have been emitted.
func (m *Machine) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// Arm moves Disarmed to Armed and reports whether the state changed.
// Arming an armed machine does nothing.
func (m *Machine) Arm() bool {
	if !m.fire(eventArm, Disarmed) {
		return false
	}
	m.publisher.Publish(event.New(event.Armed))
	return true
}

// Disarm moves Armed to Disarmed without capturing and reports whether the
// state changed.
func (m *Machine) Disarm() bool {
	if !m.fire(eventDisarm, Armed) {
		return false
	}
	m.publisher.Publish(event.New(event.Disarmed))
	return true
}

// fire runs transition name when the machine is in from.
func (m *Machine) fire(name string, from State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fireLocked(name, from)
}

func (m *Machine) fireLocked(name string, from State) bool {
	if !m.fsm.Is(string(from)) {
		return false
	}
	if err := m.fsm.Event(context.Background(), name); err != nil {
		log.Error("readiness transition failed", "component", "gesture", "event", name, "error", err)
		return false
	}
	return true
}

// OnPoseResult evaluates p while armed. On a facepalm the machine disarms and
// hands exactly one CaptureIntent to the Capturer. Results that arrive while
// disarmed are discarded without evaluation. It reports whether an intent was
// emitted.
func (m *Machine) OnPoseResult(p *pose.Pose) bool {
	m.mu.Lock()
	if !m.fsm.Is(string(Armed)) || !IsFacepalm(p) {
		m.mu.Unlock()
		return false
	}
	if !m.fireLocked(eventDetect, Armed) {
		m.mu.Unlock()
		return false
	}
	intent := CaptureIntent{ID: uuid.NewString(), Timestamp: m.now()}
	m.captures++
	m.mu.Unlock()

	log.Info("facepalm detected", "component", "gesture", "intent", intent.ID)

	e := event.New(event.Detected)
	e.IntentID = intent.ID
	m.publisher.Publish(e)

	m.capturer.Capture(intent)

	return true
}

// OnEstimationFailure reports a failed estimation. Readiness is unchanged.
func (m *Machine) OnEstimationFailure(err error) {
	log.Warn("pose estimation failed", "component", "gesture", "error", err)
	m.publisher.Publish(event.New(event.EstimationFailed).WithError(err))
}
