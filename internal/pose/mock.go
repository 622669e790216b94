package pose

import (
	"context"
	"sync"

	"github.com/ayusman/facepalm/internal/capture"
)

// MockEstimator is a test implementation of the Estimator interface.
// It allows tests to control the estimation results and timing.
type MockEstimator struct {
	mu          sync.Mutex
	pose        *Pose
	err         error
	gate        chan struct{}
	calls       int
	inFlight    int
	maxInFlight int
}

// NewMockEstimator creates a new MockEstimator that returns an empty Pose.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{pose: NewPose()}
}

// SetPose sets the pose that will be returned by Estimate.
func (m *MockEstimator) SetPose(p *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// SetError sets the error that will be returned by Estimate.
func (m *MockEstimator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes subsequent Estimate calls wait until Release is called.
func (m *MockEstimator) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
}

// Release lets blocked Estimate calls return.
func (m *MockEstimator) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Estimate returns the pre-configured pose or error.
func (m *MockEstimator) Estimate(ctx context.Context, frame *capture.Frame) (*Pose, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	gate := m.gate
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.pose, nil
}

// Calls returns how many times Estimate has been invoked.
func (m *MockEstimator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight returns the highest number of concurrent Estimate calls seen.
func (m *MockEstimator) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Close is a no-op for the mock estimator.
func (m *MockEstimator) Close() error {
	return nil
}

// FacepalmPose returns a preset Pose whose right wrist lies between the ears
// horizontally and level with or below the right shoulder in image y.
func FacepalmPose() *Pose {
	return NewPose(
		Landmark{Type: Nose, X: 150, Y: 120, InFrameLikelihood: 0.99},
		Landmark{Type: LeftEar, X: 100, Y: 110, InFrameLikelihood: 0.95},
		Landmark{Type: RightEar, X: 200, Y: 110, InFrameLikelihood: 0.95},
		Landmark{Type: LeftShoulder, X: 60, Y: 300, InFrameLikelihood: 0.97},
		Landmark{Type: RightShoulder, X: 240, Y: 300, InFrameLikelihood: 0.97},
		Landmark{Type: RightElbow, X: 260, Y: 380, InFrameLikelihood: 0.9},
		Landmark{Type: RightWrist, X: 150, Y: 350, InFrameLikelihood: 0.9},
	)
}

// NeutralPose returns a preset Pose with the right arm hanging at the side,
// outside the ear span.
func NeutralPose() *Pose {
	return NewPose(
		Landmark{Type: Nose, X: 150, Y: 120, InFrameLikelihood: 0.99},
		Landmark{Type: LeftEar, X: 100, Y: 110, InFrameLikelihood: 0.95},
		Landmark{Type: RightEar, X: 200, Y: 110, InFrameLikelihood: 0.95},
		Landmark{Type: LeftShoulder, X: 60, Y: 300, InFrameLikelihood: 0.97},
		Landmark{Type: RightShoulder, X: 240, Y: 300, InFrameLikelihood: 0.97},
		Landmark{Type: RightElbow, X: 270, Y: 420, InFrameLikelihood: 0.9},
		Landmark{Type: RightWrist, X: 280, Y: 520, InFrameLikelihood: 0.9},
	)
}
