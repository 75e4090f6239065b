package model

import (
	"fmt"
	"math"
	"sync"
)

// Rect is an axis-aligned box in frame pixel coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// DistanceTo returns the Euclidean distance from the box center to (x, y).
func (r Rect) DistanceTo(x, y float64) float64 {
	cx, cy := r.Center()
	return math.Hypot(cx-x, cy-y)
}

// TextFragment is one piece of recognized text from a single frame.
// A nil Box means the recognizer could not place it.
type TextFragment struct {
	Text string
	Box  *Rect
}

// Pair is a (letter, digits) reading. The same shape is used for a single
// frame's candidate and for a confirmed reading.
type Pair struct {
	Letter string // one uppercase letter
	Digits string // one or more decimal digits
}

func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.Letter, p.Digits)
}

// Record is a persisted reading.
type Record struct {
	ID        int64  `json:"id"`
	Letter    string `json:"letter"`
	Number    string `json:"number"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// Frame is one camera frame. The producer hands it over with a release
// obligation: whoever receives it must call Close exactly once.
type Frame struct {
	ID              string
	Image           []byte // nil when the camera delivered no image data
	RotationDegrees int
	Width           int
	Height          int

	release     func()
	releaseOnce sync.Once
}

// NewFrame wraps image data in a Frame whose Close invokes release.
func NewFrame(id string, image []byte, width, height, rotation int, release func()) *Frame {
	return &Frame{
		ID:              id,
		Image:           image,
		RotationDegrees: rotation,
		Width:           width,
		Height:          height,
		release:         release,
	}
}

// Close releases the frame back to its producer. Only the first call
// reaches the release hook.
func (f *Frame) Close() {
	f.releaseOnce.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}

// UprightSize returns the frame dimensions after applying RotationDegrees.
// Recognizers report boxes in upright coordinates.
func (f *Frame) UprightSize() (width, height int) {
	if NormalizeRotation(f.RotationDegrees)%180 != 0 {
		return f.Height, f.Width
	}
	return f.Width, f.Height
}

// NormalizeRotation folds degrees into 0, 90, 180 or 270, rounding to the
// nearest quarter turn.
func NormalizeRotation(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return ((d + 45) / 90 % 4) * 90
}
