package capture

import (
	"context"
	"sync"
	"time"
)

// MockCamera plays back pre-recorded frames for testing
type MockCamera struct {
	frames    []RawFrame
	index     int
	loop      bool
	interval  time.Duration
	mu        sync.Mutex
	running   bool
	streaming bool
	delivered int
}

func NewMockCamera(frames []RawFrame, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// Stream delivers the frame sequence. Without loop it returns ErrEndOfStream
// after the last frame.
func (c *MockCamera) Stream(ctx context.Context, deliver func(RawFrame)) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrCameraNotOpen
	}
	if c.streaming {
		c.mu.Unlock()
		return ErrStreamBusy
	}
	c.streaming = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, interval, err := c.next()
		if err != nil {
			return err
		}

		deliver(frame)

		if interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
	}
}

func (c *MockCamera) next() (RawFrame, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return RawFrame{}, 0, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return RawFrame{}, 0, ErrEndOfStream
	}
	if c.index >= len(c.frames) {
		if !c.loop {
			return RawFrame{}, 0, ErrEndOfStream
		}
		c.index = 0
	}

	frame := c.frames[c.index]
	frame.Timestamp = time.Now()
	c.index++
	c.delivered++

	return frame, c.interval, nil
}

// SetInterval sets a pause between delivered frames.
func (c *MockCamera) SetInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return DefaultFPS }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []RawFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Delivered returns how many frames have been pushed so far.
func (c *MockCamera) Delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
