package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func solidFrame(value float64) *Frame {
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(value, value, value, 0))
	return &Frame{Mat: m, Width: 160, Height: 120, Format: FormatBGR}
}

func TestNewMotionFilter(t *testing.T) {
	for _, threshold := range []float64{0.5, 1.0, 5.0} {
		m := NewMotionFilter(threshold)
		if m.threshold != threshold {
			t.Errorf("threshold = %f, want %f", m.threshold, threshold)
		}
		if m.primed {
			t.Error("filter should not be primed initially")
		}
		m.Close()
	}
}

func TestMotionFilter_StaticScene(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	m := NewMotionFilter(1.0)
	defer m.Close()

	first := solidFrame(0)
	defer first.Close()
	second := solidFrame(0)
	defer second.Close()

	if !m.Accept(first) {
		t.Error("first frame primes the baseline and should be accepted")
	}
	if m.Accept(second) {
		t.Error("identical frame should be rejected")
	}
}

func TestMotionFilter_Movement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	m := NewMotionFilter(1.0)
	defer m.Close()

	black := solidFrame(0)
	defer black.Close()
	white := solidFrame(255)
	defer white.Close()

	m.Accept(black)

	moved, changed := m.Change(&white.Mat)
	if !moved {
		t.Errorf("black to white should count as motion, changed = %f", changed)
	}
	if changed < 50.0 {
		t.Errorf("changed = %f, expected > 50%% for black to white", changed)
	}
}

func TestMotionFilter_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	m := NewMotionFilter(1.0)
	defer m.Close()

	f := solidFrame(0)
	defer f.Close()

	m.Accept(f)
	if !m.primed {
		t.Error("filter should be primed after first frame")
	}

	m.Reset()
	if m.primed {
		t.Error("filter should not be primed after Reset")
	}
	if !m.Accept(f) {
		t.Error("first frame after Reset should be accepted")
	}
}

func TestMotionFilter_SetThreshold(t *testing.T) {
	m := NewMotionFilter(1.0)
	defer m.Close()

	m.SetThreshold(5.0)
	if m.threshold != 5.0 {
		t.Errorf("threshold = %f, want 5.0", m.threshold)
	}

	m.SetThreshold(-1.0)
	if m.threshold != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", m.threshold)
	}
}

func TestMotionFilter_NilFrame(t *testing.T) {
	m := NewMotionFilter(1.0)
	defer m.Close()

	if m.Accept(nil) {
		t.Error("nil frame should be rejected")
	}

	// Close multiple times should not panic
	m.Close()
	m.Close()
}
