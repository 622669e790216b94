package capture

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrUnrecognizedFormat is returned when a raw frame uses a pixel encoding
	// that cannot be normalized.
	ErrUnrecognizedFormat = errors.New("unrecognized frame format")

	// ErrMalformedFrame is returned when a raw frame's buffer does not match
	// its declared size or its rotation is not a right angle.
	ErrMalformedFrame = errors.New("malformed frame")
)

// PixelFormat identifies how a frame's pixels are encoded.
type PixelFormat int

const (
	// FormatUnknown is the zero value and is never normalized.
	FormatUnknown PixelFormat = iota
	// FormatNV21 is a packed YUV 4:2:0 buffer, Y plane followed by interleaved VU.
	FormatNV21
	// FormatYUYV is a packed YUV 4:2:2 buffer (YUY2), the common V4L2 webcam format.
	FormatYUYV
	// FormatMat is an opaque platform image handle (an OpenCV Mat).
	FormatMat
	// FormatBGR is the normalized 8-bit, 3-channel BGR layout.
	FormatBGR
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatNV21:
		return "NV21"
	case FormatYUYV:
		return "YUYV"
	case FormatMat:
		return "Mat"
	case FormatBGR:
		return "BGR"
	default:
		return "unknown"
	}
}

// RawFrame is a frame as delivered by a camera backend. Exactly one of Data
// or Image is set depending on Format. The backend keeps ownership: a
// RawFrame is only valid for the duration of the delivery callback.
type RawFrame struct {
	Data      []byte
	Image     *gocv.Mat
	Format    PixelFormat
	Width     int
	Height    int
	Rotation  int // degrees clockwise needed to display the frame upright
	Timestamp time.Time
}

// BufferFrame builds a RawFrame around a packed YUV buffer.
func BufferFrame(data []byte, format PixelFormat, width, height, rotation int) RawFrame {
	return RawFrame{
		Data:      data,
		Format:    format,
		Width:     width,
		Height:    height,
		Rotation:  rotation,
		Timestamp: time.Now(),
	}
}

// MatFrame builds a RawFrame around an image handle.
func MatFrame(img *gocv.Mat, rotation int) RawFrame {
	raw := RawFrame{
		Image:     img,
		Format:    FormatMat,
		Rotation:  rotation,
		Timestamp: time.Now(),
	}
	if img != nil {
		raw.Width = img.Cols()
		raw.Height = img.Rows()
	}
	return raw
}

// Frame is the normalized, upright BGR image handed to the pose estimator.
// The holder owns the underlying Mat and must call Close when done.
type Frame struct {
	Mat       gocv.Mat
	Width     int
	Height    int
	Format    PixelFormat
	Rotation  int // rotation that was applied during normalization
	Timestamp time.Time
}

// Close releases the native image buffer.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.Mat.Close()
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Mat = f.Mat.Clone()
	return &c
}

// Normalize converts a raw platform frame into an upright BGR Frame.
// The returned Frame owns a new Mat; raw is not modified or retained.
func Normalize(raw RawFrame) (*Frame, error) {
	rotation, err := normalizeRotation(raw.Rotation)
	if err != nil {
		return nil, err
	}

	var bgr gocv.Mat

	switch raw.Format {
	case FormatMat, FormatBGR:
		bgr, err = matToBGR(raw.Image)
	case FormatNV21:
		bgr, err = yuvToBGR(raw, raw.Height*3/2, gocv.MatTypeCV8UC1, gocv.ColorYUVToBGRNV21)
	case FormatYUYV:
		bgr, err = yuvToBGR(raw, raw.Height, gocv.MatTypeCV8UC2, gocv.ColorYUVToBGRYUY2)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, raw.Format)
	}
	if err != nil {
		return nil, err
	}

	if flag, ok := rotateFlag(rotation); ok {
		rotated := gocv.NewMat()
		gocv.Rotate(bgr, &rotated, flag)
		bgr.Close()
		bgr = rotated
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Frame{
		Mat:       bgr,
		Width:     bgr.Cols(),
		Height:    bgr.Rows(),
		Format:    FormatBGR,
		Rotation:  rotation,
		Timestamp: ts,
	}, nil
}

func matToBGR(img *gocv.Mat) (gocv.Mat, error) {
	if img == nil || img.Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: empty image handle", ErrMalformedFrame)
	}

	switch img.Channels() {
	case 3:
		return img.Clone(), nil
	case 4:
		dst := gocv.NewMat()
		gocv.CvtColor(*img, &dst, gocv.ColorBGRAToBGR)
		return dst, nil
	case 1:
		dst := gocv.NewMat()
		gocv.CvtColor(*img, &dst, gocv.ColorGrayToBGR)
		return dst, nil
	default:
		return gocv.Mat{}, fmt.Errorf("%w: %d-channel image", ErrUnrecognizedFormat, img.Channels())
	}
}

func yuvToBGR(raw RawFrame, rows int, matType gocv.MatType, code gocv.ColorConversionCode) (gocv.Mat, error) {
	if raw.Width <= 0 || raw.Height <= 0 || raw.Width%2 != 0 || raw.Height%2 != 0 {
		return gocv.Mat{}, fmt.Errorf("%w: %s size %dx%d", ErrMalformedFrame, raw.Format, raw.Width, raw.Height)
	}

	expected := expectedLen(raw.Format, raw.Width, raw.Height)
	if len(raw.Data) < expected {
		return gocv.Mat{}, fmt.Errorf("%w: %s buffer has %d bytes, want %d", ErrMalformedFrame, raw.Format, len(raw.Data), expected)
	}

	src, err := gocv.NewMatFromBytes(rows, raw.Width, matType, raw.Data[:expected])
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, code)
	return dst, nil
}

// expectedLen returns the byte length of a packed buffer of the given format.
func expectedLen(format PixelFormat, width, height int) int {
	switch format {
	case FormatNV21:
		return width * height * 3 / 2
	case FormatYUYV:
		return width * height * 2
	default:
		return 0
	}
}

func normalizeRotation(deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("%w: rotation %d", ErrMalformedFrame, deg)
	}
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg, nil
}

func rotateFlag(deg int) (gocv.RotateFlag, bool) {
	switch deg {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	default:
		return 0, false
	}
}
