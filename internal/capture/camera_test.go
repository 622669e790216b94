package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name     string
		deviceID int
	}{
		{name: "default device", deviceID: 0},
		{name: "device 1", deviceID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.deviceID)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != DefaultFPS {
				t.Errorf("FPS() = %d, want %d (default)", got, DefaultFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)

	cam.SetFPS(30)
	if got := cam.FPS(); got != 30 {
		t.Errorf("FPS() = %d, want 30", got)
	}

	cam.SetFPS(0)
	if got := cam.FPS(); got != 30 {
		t.Errorf("FPS() = %d after SetFPS(0), want previous 30", got)
	}

	cam.SetFPS(-5)
	if got := cam.FPS(); got != 30 {
		t.Errorf("FPS() = %d after negative SetFPS, want previous 30", got)
	}
}

func TestCamera_Stream_NotOpened(t *testing.T) {
	backends := map[string]Camera{
		"opencv": NewCamera(0),
		"v4l2":   NewWebcam("/dev/video-missing", 640, 480, 0),
	}

	for name, cam := range backends {
		t.Run(name, func(t *testing.T) {
			err := cam.Stream(context.Background(), func(RawFrame) {})
			if !errors.Is(err, ErrCameraNotOpen) {
				t.Errorf("Stream() error = %v, want ErrCameraNotOpen", err)
			}
		})
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	for _, cam := range []Camera{NewCamera(0), NewWebcam("/dev/video0", 0, 0, 0)} {
		if err := cam.Close(); err != nil {
			t.Errorf("Close() on not opened camera should return nil, got: %v", err)
		}
	}
}

func TestWebcam_OpenMissingDevice(t *testing.T) {
	cam := NewWebcam("/dev/facepalm-does-not-exist", 640, 480, 0)

	if err := cam.Open(); err == nil {
		cam.Close()
		t.Fatal("Open() should fail for a missing device")
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should be false after failed Open()")
	}
}

func TestCamera_Stream_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	defer cam.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var width, height int
	var format PixelFormat
	err := cam.Stream(ctx, func(raw RawFrame) {
		width, height, format = raw.Width, raw.Height, raw.Format
		cancel()
	})
	if err != nil && !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("Stream() error = %v", err)
	}
	if format == FormatUnknown {
		t.Skip("camera delivered no frames")
	}
	if format != FormatMat {
		t.Errorf("format = %v, want Mat", format)
	}
	if width == 0 || height == 0 {
		t.Errorf("frame dimensions %dx%d should be non-zero", width, height)
	}
}
