package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion filter tuning
const (
	// MotionBlurSize is the Gaussian kernel applied before differencing.
	MotionBlurSize = 21
	// MotionPixelDelta is the per-pixel intensity change counted as movement.
	MotionPixelDelta = 25
)

// MotionFilter rejects frames of a static scene so the pose estimator only
// runs when something in view has moved. It compares each frame against the
// previous one it saw.
type MotionFilter struct {
	threshold float64 // percent of changed pixels
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewMotionFilter creates a filter that accepts a frame when more than
// threshold percent of its pixels changed since the previous frame.
func NewMotionFilter(threshold float64) *MotionFilter {
	return &MotionFilter{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Accept reports whether f shows motion. The first frame after creation or
// Reset only primes the baseline and is accepted, so arming in front of a
// still camera can still capture.
func (m *MotionFilter) Accept(f *Frame) bool {
	if f == nil {
		return false
	}
	wasPrimed := m.isPrimed()
	moved, _ := m.Change(&f.Mat)
	return moved || !wasPrimed
}

func (m *MotionFilter) isPrimed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primed
}

// Change returns whether img differs from the previous image by more than the
// threshold, and the percentage of changed pixels.
func (m *MotionFilter) Change(img *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img == nil || img.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if img.Channels() > 1 {
		gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: MotionBlurSize, Y: MotionBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.primed || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, MotionPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0

	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset drops the baseline; the next frame primes it again.
func (m *MotionFilter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release()
}

// Close releases the baseline image.
func (m *MotionFilter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release()
}

func (m *MotionFilter) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold changes the required percentage. Values <= 0 are ignored.
func (m *MotionFilter) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
