package capture

import (
	"context"
	"errors"
	"testing"
)

func nv21(width, height int) RawFrame {
	return BufferFrame(make([]byte, width*height*3/2), FormatNV21, width, height, 0)
}

func TestMockCamera_Playback(t *testing.T) {
	cam := NewMockCamera([]RawFrame{nv21(64, 48), nv21(64, 48)}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	count := 0
	err := cam.Stream(context.Background(), func(raw RawFrame) {
		count++
		if raw.Format != FormatNV21 {
			t.Errorf("format = %v, want NV21", raw.Format)
		}
		if raw.Timestamp.IsZero() {
			t.Error("delivered frame should carry a timestamp")
		}
	})

	if !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Stream() error = %v, want ErrEndOfStream", err)
	}
	if count != 2 {
		t.Errorf("delivered %d frames, want 2", count)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	cam := NewMockCamera([]RawFrame{nv21(64, 48)}, true)
	cam.Open()
	defer cam.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	err := cam.Stream(ctx, func(RawFrame) {
		count++
		if count == 5 {
			cancel()
		}
	})

	if err != nil {
		t.Errorf("Stream() error = %v, want nil after cancel", err)
	}
	if count != 5 {
		t.Errorf("delivered %d frames, want 5", count)
	}
	if cam.Delivered() != 5 {
		t.Errorf("Delivered() = %d, want 5", cam.Delivered())
	}
}

func TestMockCamera_NotOpen(t *testing.T) {
	cam := NewMockCamera([]RawFrame{nv21(64, 48)}, false)

	err := cam.Stream(context.Background(), func(RawFrame) {})
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("Stream() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestMockCamera_SingleConsumer(t *testing.T) {
	cam := NewMockCamera([]RawFrame{nv21(64, 48)}, true)
	cam.Open()
	defer cam.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var second error
	cam.Stream(ctx, func(RawFrame) {
		second = cam.Stream(ctx, func(RawFrame) {})
		cancel()
	})

	if !errors.Is(second, ErrStreamBusy) {
		t.Errorf("second Stream() error = %v, want ErrStreamBusy", second)
	}
}
