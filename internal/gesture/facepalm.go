// Package gesture decides when a pose is a facepalm and owns the armed /
// disarmed readiness state that turns a detection into a capture.
package gesture

import (
	"math"

	"github.com/ayusman/facepalm/internal/pose"
)

// IsFacepalm reports whether the right wrist lies horizontally between the
// ears and at or below the right shoulder in image y (y grows downward).
// Any missing landmark makes the result false.
func IsFacepalm(p *pose.Pose) bool {
	wrist, ok := p.Get(pose.RightWrist)
	if !ok {
		return false
	}
	leftEar, ok := p.Get(pose.LeftEar)
	if !ok {
		return false
	}
	rightEar, ok := p.Get(pose.RightEar)
	if !ok {
		return false
	}
	shoulder, ok := p.Get(pose.RightShoulder)
	if !ok {
		return false
	}

	lo := math.Min(leftEar.X, rightEar.X)
	hi := math.Max(leftEar.X, rightEar.X)

	return wrist.X >= lo && wrist.X <= hi && wrist.Y >= shoulder.Y
}
