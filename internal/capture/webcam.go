package capture

import (
	"context"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/ayusman/facepalm/internal/log"
)

// V4L2 fourcc codes for the packed formats Normalize understands.
const (
	fourccYUYV webcam.PixelFormat = 0x56595559 // 'YUYV'
	fourccNV21 webcam.PixelFormat = 0x3132564E // 'NV21'
)

// webcamImpl captures from a V4L2 device using blackjack/webcam and delivers
// packed YUV byte buffers.
type webcamImpl struct {
	device    string
	width     int
	height    int
	rotation  int
	fps       int
	format    PixelFormat
	cam       *webcam.Webcam
	mu        sync.Mutex
	running   bool
	streaming bool
}

// NewWebcam creates a V4L2 Camera for a device path such as /dev/video0.
func NewWebcam(device string, width, height, rotation int) Camera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &webcamImpl{
		device:   device,
		width:    width,
		height:   height,
		rotation: rotation,
		fps:      DefaultFPS,
	}
}

// pickFormat prefers NV21 and falls back to YUYV.
func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, PixelFormat, bool) {
	if _, ok := supported[fourccNV21]; ok {
		return fourccNV21, FormatNV21, true
	}
	if _, ok := supported[fourccYUYV]; ok {
		return fourccYUYV, FormatYUYV, true
	}
	return 0, FormatUnknown, false
}

func (c *webcamImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	cam, err := webcam.Open(c.device)
	if err != nil {
		return errors.Wrap(err, "can not open device")
	}

	fourcc, format, ok := pickFormat(cam.GetSupportedFormats())
	if !ok {
		cam.Close()
		return errors.Errorf("device %s supports neither NV21 nor YUYV", c.device)
	}

	_, w, h, err := cam.SetImageFormat(fourcc, uint32(c.width), uint32(c.height))
	if err != nil {
		cam.Close()
		return errors.Wrap(err, "can not set image format")
	}

	c.cam = cam
	c.format = format
	c.width = int(w)
	c.height = int(h)
	c.running = true

	log.Debug("webcam opened", "device", c.device, "format", format, "width", c.width, "height", c.height)
	return nil
}

func (c *webcamImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.cam == nil {
		c.running = false
		return nil
	}

	err := c.cam.Close()
	c.cam = nil
	c.running = false
	return err
}

// Stream waits for frames with a one second timeout. Timeouts are logged and
// retried; any other wait or read failure ends the stream.
func (c *webcamImpl) Stream(ctx context.Context, deliver func(RawFrame)) error {
	c.mu.Lock()
	if !c.running || c.cam == nil {
		c.mu.Unlock()
		return ErrCameraNotOpen
	}
	if c.streaming {
		c.mu.Unlock()
		return ErrStreamBusy
	}
	c.streaming = true
	cam := c.cam
	format, width, height, rotation := c.format, c.width, c.height, c.rotation
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}()

	if err := cam.StartStreaming(); err != nil {
		return errors.Wrap(err, "can not start streaming")
	}
	defer cam.StopStreaming()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			log.Debug("webcam wait timed out", "device", c.device)
			continue
		default:
			return errors.Wrap(err, "frame wait failed")
		}

		buf, err := cam.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "read frame failed")
		}
		if len(buf) == 0 {
			continue
		}

		deliver(BufferFrame(buf, format, width, height, rotation))
	}
}

// SetFPS records the requested rate; V4L2 devices keep their negotiated rate.
func (c *webcamImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *webcamImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *webcamImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
