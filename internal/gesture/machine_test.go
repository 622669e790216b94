package gesture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/pose"
)

type recorder struct {
	mu      sync.Mutex
	intents []CaptureIntent
	events  []event.Event
}

func (r *recorder) Capture(intent CaptureIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]event.Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (r *recorder) intentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.intents)
}

func newTestMachine() (*Machine, *recorder) {
	r := &recorder{}
	return NewMachine(r, r), r
}

func TestMachine_InitialState(t *testing.T) {
	m, r := newTestMachine()

	assert.Equal(t, Disarmed, m.State())
	assert.False(t, m.IsArmed())
	assert.Empty(t, r.kinds())
}

func TestMachine_Arm(t *testing.T) {
	m, r := newTestMachine()

	assert.True(t, m.Arm())
	assert.Equal(t, Armed, m.State())

	assert.False(t, m.Arm(), "arming twice is a no-op")
	assert.Equal(t, Armed, m.State())

	require.Equal(t, []event.Kind{event.Armed}, r.kinds())
	assert.Equal(t, "Ready", r.events[0].Label)
}

func TestMachine_DisarmedNeverCaptures(t *testing.T) {
	m, r := newTestMachine()

	for i := 0; i < 10; i++ {
		assert.False(t, m.OnPoseResult(pose.FacepalmPose()))
		assert.False(t, m.OnPoseResult(pose.NeutralPose()))
		assert.False(t, m.OnPoseResult(nil))
	}

	assert.Equal(t, 0, r.intentCount())
	assert.Equal(t, Disarmed, m.State())
	assert.Empty(t, r.kinds())
}

func TestMachine_FacepalmCaptures(t *testing.T) {
	r := &recorder{}
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	m := NewMachine(r, r, WithClock(func() time.Time { return fixed }))

	m.Arm()
	assert.True(t, m.OnPoseResult(pose.FacepalmPose()))

	assert.Equal(t, Disarmed, m.State())
	require.Equal(t, 1, r.intentCount())
	assert.Equal(t, fixed, r.intents[0].Timestamp)
	assert.NotEmpty(t, r.intents[0].ID)

	require.Equal(t, []event.Kind{event.Armed, event.Detected}, r.kinds())
	assert.Equal(t, "Not ready", r.events[1].Label)
	assert.Equal(t, r.intents[0].ID, r.events[1].IntentID)
	assert.Equal(t, 1, m.Captures())
}

func TestMachine_NonFacepalmKeepsArmed(t *testing.T) {
	m, r := newTestMachine()
	m.Arm()

	assert.False(t, m.OnPoseResult(pose.NeutralPose()))
	assert.False(t, m.OnPoseResult(pose.NewPose()))
	assert.False(t, m.OnPoseResult(pose.FacepalmPose().Without(pose.RightEar)))

	assert.Equal(t, Armed, m.State())
	assert.Equal(t, 0, r.intentCount())
}

func TestMachine_OneIntentPerArm(t *testing.T) {
	m, r := newTestMachine()

	m.Arm()
	m.OnPoseResult(pose.FacepalmPose())

	// stale results after the shutter fired are discarded
	for i := 0; i < 5; i++ {
		assert.False(t, m.OnPoseResult(pose.FacepalmPose()))
	}
	assert.Equal(t, 1, r.intentCount())

	m.Arm()
	assert.True(t, m.OnPoseResult(pose.FacepalmPose()))
	assert.Equal(t, 2, r.intentCount())
	assert.NotEqual(t, r.intents[0].ID, r.intents[1].ID)
}

func TestMachine_EstimationFailureKeepsState(t *testing.T) {
	for _, armed := range []bool{false, true} {
		m, r := newTestMachine()
		if armed {
			m.Arm()
		}
		before := m.State()

		m.OnEstimationFailure(errors.New("model crashed"))

		assert.Equal(t, before, m.State())
		kinds := r.kinds()
		require.NotEmpty(t, kinds)
		last := r.events[len(r.events)-1]
		assert.Equal(t, event.EstimationFailed, last.Kind)
		assert.Equal(t, "Failed processing", last.Label)
		assert.Equal(t, "model crashed", last.Error)
	}
}

func TestMachine_Disarm(t *testing.T) {
	m, r := newTestMachine()

	assert.False(t, m.Disarm(), "disarming a disarmed machine is a no-op")

	m.Arm()
	assert.True(t, m.Disarm())
	assert.Equal(t, Disarmed, m.State())
	assert.False(t, m.OnPoseResult(pose.FacepalmPose()))

	assert.Equal(t, []event.Kind{event.Armed, event.Disarmed}, r.kinds())
	assert.Equal(t, 0, r.intentCount())
}

func TestMachine_ConcurrentResults(t *testing.T) {
	m, r := newTestMachine()
	m.Arm()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.OnPoseResult(pose.FacepalmPose())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.intentCount(), "exactly one intent per armed period")
	assert.Equal(t, Disarmed, m.State())
}

func TestMachine_NilCollaborators(t *testing.T) {
	m := NewMachine(nil, nil)

	m.Arm()
	assert.True(t, m.OnPoseResult(pose.FacepalmPose()))
	m.OnEstimationFailure(errors.New("x"))
	assert.Equal(t, Disarmed, m.State())
}
