// Package pose provides body pose types and the estimator interface used by
// the facepalm gesture recognizer.
package pose

// LandmarkType identifies a body landmark following the MediaPipe/ML Kit
// 33-point pose model.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type LandmarkType int

const (
	Nose LandmarkType = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"NOSE",
	"LEFT_EYE_INNER",
	"LEFT_EYE",
	"LEFT_EYE_OUTER",
	"RIGHT_EYE_INNER",
	"RIGHT_EYE",
	"RIGHT_EYE_OUTER",
	"LEFT_EAR",
	"RIGHT_EAR",
	"MOUTH_LEFT",
	"MOUTH_RIGHT",
	"LEFT_SHOULDER",
	"RIGHT_SHOULDER",
	"LEFT_ELBOW",
	"RIGHT_ELBOW",
	"LEFT_WRIST",
	"RIGHT_WRIST",
	"LEFT_PINKY",
	"RIGHT_PINKY",
	"LEFT_INDEX",
	"RIGHT_INDEX",
	"LEFT_THUMB",
	"RIGHT_THUMB",
	"LEFT_HIP",
	"RIGHT_HIP",
	"LEFT_KNEE",
	"RIGHT_KNEE",
	"LEFT_ANKLE",
	"RIGHT_ANKLE",
	"LEFT_HEEL",
	"RIGHT_HEEL",
	"LEFT_FOOT_INDEX",
	"RIGHT_FOOT_INDEX",
}

// String returns the upper snake case landmark name, e.g. "RIGHT_WRIST".
func (t LandmarkType) String() string {
	if t < 0 || t >= NumLandmarks {
		return "UNKNOWN"
	}
	return landmarkNames[t]
}

// MarshalText encodes the landmark by name so poses serialize readably.
func (t LandmarkType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Landmark is a located body point in pixel coordinates of the analyzed
// frame. Y grows downward.
type Landmark struct {
	Type              LandmarkType `json:"type"`
	X                 float64      `json:"x"`
	Y                 float64      `json:"y"`
	Z                 float64      `json:"z"`
	InFrameLikelihood float64      `json:"in_frame_likelihood"`
}

// Pose is the set of landmarks found in one frame. A landmark the estimator
// could not locate is absent. An empty Pose means nobody was found.
type Pose struct {
	Landmarks map[LandmarkType]Landmark `json:"landmarks"`
}

// NewPose builds a Pose from landmarks, keyed by their Type.
func NewPose(landmarks ...Landmark) *Pose {
	p := &Pose{Landmarks: make(map[LandmarkType]Landmark, len(landmarks))}
	for _, lm := range landmarks {
		p.Landmarks[lm.Type] = lm
	}
	return p
}

// Get returns the landmark of type t and whether it is present.
func (p *Pose) Get(t LandmarkType) (Landmark, bool) {
	if p == nil {
		return Landmark{}, false
	}
	lm, ok := p.Landmarks[t]
	return lm, ok
}

// Len returns the number of located landmarks.
func (p *Pose) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Landmarks)
}

// Without returns a copy of the pose with the given landmarks removed.
func (p *Pose) Without(types ...LandmarkType) *Pose {
	c := &Pose{Landmarks: make(map[LandmarkType]Landmark, p.Len())}
	if p != nil {
		for k, v := range p.Landmarks {
			c.Landmarks[k] = v
		}
	}
	for _, t := range types {
		delete(c.Landmarks, t)
	}
	return c
}
