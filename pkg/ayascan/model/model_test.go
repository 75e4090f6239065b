package model

import "testing"

func TestNormalizeRotation(t *testing.T) {
	tests := map[int]int{
		0:    0,
		90:   90,
		180:  180,
		270:  270,
		360:  0,
		-90:  270,
		-180: 180,
		89:   90,
		44:   0,
		315:  0,
		630:  270,
	}
	for in, want := range tests {
		if got := NormalizeRotation(in); got != want {
			t.Errorf("NormalizeRotation(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestUprightSize(t *testing.T) {
	f := NewFrame("f", nil, 640, 480, 90, nil)
	if w, h := f.UprightSize(); w != 480 || h != 640 {
		t.Errorf("UprightSize() = %dx%d, want 480x640", w, h)
	}
	f.RotationDegrees = 180
	if w, h := f.UprightSize(); w != 640 || h != 480 {
		t.Errorf("UprightSize() = %dx%d, want 640x480", w, h)
	}
}

func TestFrameCloseCallsRelease(t *testing.T) {
	n := 0
	f := NewFrame("f", []byte{1}, 1, 1, 0, func() { n++ })
	f.Close()
	if n != 1 {
		t.Errorf("release called %d times, want 1", n)
	}

	f.Close()
	if n != 1 {
		t.Errorf("release called %d times after a second Close, want 1", n)
	}

	// A frame without a release hook is safe to close.
	NewFrame("g", nil, 0, 0, 0, nil).Close()
}

func TestRectDistance(t *testing.T) {
	r := Rect{Left: 0, Top: 0, Right: 6, Bottom: 8}
	cx, cy := r.Center()
	if cx != 3 || cy != 4 {
		t.Errorf("Center() = (%v, %v), want (3, 4)", cx, cy)
	}
	if d := r.DistanceTo(0, 0); d != 5 {
		t.Errorf("DistanceTo(0,0) = %v, want 5", d)
	}
	if s := (Pair{Letter: "A", Digits: "93"}).String(); s != "A-93" {
		t.Errorf("Pair.String() = %q", s)
	}
}
