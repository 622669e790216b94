// Package testdata generates synthetic camera frames for tests.
package testdata

import (
	"time"

	"github.com/ayusman/facepalm/internal/capture"
)

// NV21 returns a flat grey NV21 frame with the given luma.
func NV21(width, height int, luma byte) capture.RawFrame {
	ySize := width * height
	data := make([]byte, ySize*3/2)
	for i := range data {
		if i < ySize {
			data[i] = luma
		} else {
			data[i] = 128
		}
	}
	return capture.BufferFrame(data, capture.FormatNV21, width, height, 0)
}

// YUYV returns a flat grey packed YUYV frame with the given luma.
func YUYV(width, height int, luma byte) capture.RawFrame {
	data := make([]byte, width*height*2)
	for i := 0; i < len(data); i += 2 {
		data[i] = luma
		data[i+1] = 128
	}
	return capture.BufferFrame(data, capture.FormatYUYV, width, height, 0)
}

// Flicker returns n NV21 frames alternating between dark and bright, so
// every frame differs from the one before it.
func Flicker(n, width, height int) []capture.RawFrame {
	frames := make([]capture.RawFrame, n)
	for i := range frames {
		luma := byte(16)
		if i%2 == 1 {
			luma = 235
		}
		frames[i] = NV21(width, height, luma)
	}
	return frames
}

// Camera returns a looping mock camera over frames with the given spacing.
func Camera(frames []capture.RawFrame, interval time.Duration) *capture.MockCamera {
	cam := capture.NewMockCamera(frames, true)
	cam.SetInterval(interval)
	return cam
}
