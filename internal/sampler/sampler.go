// Package sampler forwards camera frames to the pose estimator with a
// drop-to-latest policy: while one estimation is running every new frame is
// dropped, never queued.
package sampler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/pose"
)

// Handler receives estimation outcomes. gesture.Machine implements it.
type Handler interface {
	OnPoseResult(p *pose.Pose) bool
	OnEstimationFailure(err error)
}

// Filter decides whether a normalized frame is worth estimating.
type Filter interface {
	Accept(f *capture.Frame) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(*capture.Frame) bool

// Accept calls f(frame).
func (f FilterFunc) Accept(frame *capture.Frame) bool { return f(frame) }

// Stats counts what happened to submitted frames.
type Stats struct {
	Idle         uint64 `json:"idle"`
	Dropped      uint64 `json:"dropped"`
	Unrecognized uint64 `json:"unrecognized"`
	Filtered     uint64 `json:"filtered"`
	Dispatched   uint64 `json:"dispatched"`
	Failed       uint64 `json:"failed"`
}

// Sampler owns the outstanding-estimation flag.
type Sampler struct {
	estimator pose.Estimator
	handler   Handler
	gate      func() bool
	filter    Filter
	ctx       context.Context

	outstanding atomic.Bool
	wg          sync.WaitGroup

	idle         atomic.Uint64
	dropped      atomic.Uint64
	unrecognized atomic.Uint64
	filtered     atomic.Uint64
	dispatched   atomic.Uint64
	failed       atomic.Uint64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithGate skips frames while gate returns false. The check happens before
// the outstanding flag is touched.
func WithGate(gate func() bool) Option {
	return func(s *Sampler) { s.gate = gate }
}

// WithFilter drops normalized frames that f rejects.
func WithFilter(f Filter) Option {
	return func(s *Sampler) { s.filter = f }
}

// WithContext sets the context passed to every Estimate call.
func WithContext(ctx context.Context) Option {
	return func(s *Sampler) { s.ctx = ctx }
}

// New creates a Sampler that sends frames to estimator and results to handler.
func New(estimator pose.Estimator, handler Handler, opts ...Option) *Sampler {
	s := &Sampler{
		estimator: estimator,
		handler:   handler,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit offers one raw camera frame and reports whether an estimation was
// started for it. It is called from the camera delivery callback and does
// not retain raw. Safe for concurrent use.
//
// An estimator that never returns keeps the flag set and starves sampling.
func (s *Sampler) Submit(raw capture.RawFrame) bool {
	if s.gate != nil && !s.gate() {
		s.idle.Add(1)
		return false
	}

	if !s.outstanding.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return false
	}

	frame, err := capture.Normalize(raw)
	if err != nil {
		s.unrecognized.Add(1)
		s.outstanding.Store(false)
		log.Debug("frame discarded", "component", "sampler", "format", raw.Format, "error", err)
		return false
	}

	if s.filter != nil && !s.filter.Accept(frame) {
		frame.Close()
		s.filtered.Add(1)
		s.outstanding.Store(false)
		return false
	}

	s.dispatched.Add(1)
	s.wg.Add(1)
	go s.estimate(frame)

	return true
}

func (s *Sampler) estimate(frame *capture.Frame) {
	defer s.wg.Done()
	defer s.outstanding.Store(false)

	p, err := s.estimator.Estimate(s.ctx, frame)
	frame.Close()

	if err != nil {
		s.failed.Add(1)
		s.handler.OnEstimationFailure(err)
		return
	}
	s.handler.OnPoseResult(p)
}

// Outstanding reports whether an estimation is in flight.
func (s *Sampler) Outstanding() bool {
	return s.outstanding.Load()
}

// Wait blocks until the in-flight estimation, if any, has finished.
func (s *Sampler) Wait() {
	s.wg.Wait()
}

// Stats returns a snapshot of the frame counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Idle:         s.idle.Load(),
		Dropped:      s.dropped.Load(),
		Unrecognized: s.unrecognized.Load(),
		Filtered:     s.filtered.Load(),
		Dispatched:   s.dispatched.Load(),
		Failed:       s.failed.Load(),
	}
}
