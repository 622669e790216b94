package pose

import (
	"context"
	"errors"

	"github.com/ayusman/facepalm/internal/capture"
)

// ErrServiceNotFound is returned when the MediaPipe pose service script
// cannot be located.
var ErrServiceNotFound = errors.New("pose_service.py not found")

// Estimator defines the interface for pose estimation implementations.
type Estimator interface {
	// Estimate analyzes a normalized frame and returns the located landmarks.
	// The frame is only borrowed for the duration of the call.
	// Returns an empty Pose if nobody is in frame.
	Estimate(ctx context.Context, frame *capture.Frame) (*Pose, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for pose estimation.
type Config struct {
	// Python is the interpreter used to run the service. Empty picks a venv
	// interpreter when available and falls back to python3.
	Python string

	// Script is an explicit path to pose_service.py.
	Script string

	// MinVisibility drops landmarks whose in-frame likelihood is lower (0.0-1.0).
	MinVisibility float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinVisibility: 0.5,
	}
}
