package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayusman/facepalm/internal/log"
)

// Shutter turns "take a picture" into "keep the next delivered frame".
// Offer is called for every frame from the camera callback; Next blocks until
// the following frame arrives.
type Shutter struct {
	pending atomic.Int32
	mu      sync.Mutex
	waiters []chan *Frame
}

// NewShutter creates a Shutter with no waiters.
func NewShutter() *Shutter {
	return &Shutter{}
}

// Next waits for the next offered frame. The caller owns the returned Frame.
func (s *Shutter) Next(ctx context.Context) (*Frame, error) {
	ch := make(chan *Frame, 1)

	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.pending.Add(1)
	s.mu.Unlock()

	select {
	case f := <-ch:
		return f, nil
	case <-ctx.Done():
		if !s.remove(ch) {
			// Offer already took the waiter; release what it sent
			if f := <-ch; f != nil {
				f.Close()
			}
		}
		return nil, ctx.Err()
	}
}

func (s *Shutter) remove(ch chan *Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			s.pending.Add(-1)
			return true
		}
	}
	return false
}

// Offer hands raw to every waiting Next call. Frames that cannot be
// normalized are skipped and waiters keep waiting for the next one.
func (s *Shutter) Offer(raw RawFrame) {
	if s.pending.Load() == 0 {
		return
	}

	frame, err := Normalize(raw)
	if err != nil {
		log.Debug("shutter skipped frame", "format", raw.Format, "error", err)
		return
	}

	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.pending.Store(0)
	s.mu.Unlock()

	if len(waiters) == 0 {
		frame.Close()
		return
	}

	for i, ch := range waiters {
		if i == len(waiters)-1 {
			ch <- frame
		} else {
			ch <- frame.Clone()
		}
	}
}

// Pending reports how many Next calls are waiting.
func (s *Shutter) Pending() int {
	return int(s.pending.Load())
}
