// Package capture provides camera backends and the normalized frame type
// consumed by the pose estimation pipeline.
package capture

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to stream from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrEndOfStream is returned by Stream when the source has no more frames.
	// Streams are not restartable.
	ErrEndOfStream = errors.New("end of stream")

	// ErrStreamBusy is returned when a second consumer calls Stream.
	ErrStreamBusy = errors.New("camera already has an active consumer")
)

// Camera is a push-based frame source with a single active consumer.
type Camera interface {
	Open() error
	Close() error
	// Stream delivers frames to deliver until ctx is cancelled (returns nil)
	// or the source is exhausted (returns ErrEndOfStream). The RawFrame
	// passed to deliver is only valid during the call.
	Stream(ctx context.Context, deliver func(RawFrame)) error
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from an OpenCV device using GoCV.
// Frames are delivered as Mat handles.
type cameraImpl struct {
	deviceID  int
	capture   *gocv.VideoCapture
	mu        sync.Mutex
	running   bool
	streaming bool
	fps       int
	width     int
	height    int
	rotation  int
}

// NewCamera creates an OpenCV Camera for the given device ID.
func NewCamera(deviceID int) Camera {
	return NewCameraWithOptions(deviceID, DefaultWidth, DefaultHeight, 0)
}

// NewCameraWithOptions creates an OpenCV Camera with a requested resolution
// and a rotation-to-view applied to every delivered frame.
func NewCameraWithOptions(deviceID, width, height, rotation int) Camera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		width:    width,
		height:   height,
		rotation: rotation,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Stream reads frames in a loop and pushes them to deliver. A failed read
// means the device went away and ends the stream.
func (c *cameraImpl) Stream(ctx context.Context, deliver func(RawFrame)) error {
	c.mu.Lock()
	if !c.running || c.capture == nil {
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

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.mu.Lock()
		if !c.running || c.capture == nil {
			c.mu.Unlock()
			return ErrCameraNotOpen
		}
		ok := c.capture.Read(&mat)
		rotation := c.rotation
		c.mu.Unlock()

		if !ok {
			return ErrEndOfStream
		}
		if mat.Empty() {
			continue
		}

		deliver(MatFrame(&mat, rotation))
	}
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
