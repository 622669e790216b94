package app

import (
	"context"
	"errors"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/log"
)

// runPipeline streams camera frames until ctx is cancelled or the source ends.
//
// Every frame goes to the shutter first, so a pending capture keeps the frame
// that follows the detection, and then to the sampler, which drops it unless
// it is armed and idle.
func (a *App) runPipeline(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := a.config.Camera.Stream(ctx, a.onFrame)

	switch {
	case err == nil:
	case errors.Is(err, capture.ErrEndOfStream):
		log.Info("camera stream ended", "component", "app")
	default:
		log.Error("camera stream failed", "component", "app", "error", err)
	}

	a.mu.Lock()
	a.streamErr = err
	a.mu.Unlock()
}

func (a *App) onFrame(raw capture.RawFrame) {
	a.shutter.Offer(raw)
	a.sampler.Submit(raw)
}
