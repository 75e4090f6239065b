package stabilizer

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

const (
	DefaultWindowSize = 5
	DefaultThreshold  = 3
)

var ErrInvalidWindow = errors.New("invalid stabilizer window")

// Stabilizer holds the most recent candidates in a FIFO window and confirms a
// pair once it appears at least Threshold times inside the window.
//
// It keeps confirming on every call while the vote holds; callers that want a
// single event per reading must de-duplicate on content. Not safe for
// concurrent use: the recognition pipeline is its only writer.
type Stabilizer struct {
	windowSize int
	threshold  int
	buf        []model.Pair
}

// New validates the window parameters. threshold must lie in [1, windowSize].
func New(windowSize, threshold int) (*Stabilizer, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("%w: window size %d", ErrInvalidWindow, windowSize)
	}
	if threshold < 1 || threshold > windowSize {
		return nil, fmt.Errorf("%w: threshold %d not in [1, %d]", ErrInvalidWindow, threshold, windowSize)
	}
	return &Stabilizer{
		windowSize: windowSize,
		threshold:  threshold,
		buf:        make([]model.Pair, 0, windowSize+1),
	}, nil
}

// Add pushes a candidate and reports the confirmed pair, if any.
//
// When several pairs share the highest count, the one whose first occurrence
// is oldest in the window wins.
func (s *Stabilizer) Add(candidate model.Pair) (model.Pair, bool) {
	s.buf = append(s.buf, candidate)
	if len(s.buf) > s.windowSize {
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:len(s.buf)-1]
	}

	counts := make(map[model.Pair]int, len(s.buf))
	order := make([]model.Pair, 0, len(s.buf))
	for _, p := range s.buf {
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}

	var top model.Pair
	topCount := 0
	for _, p := range order {
		if counts[p] > topCount {
			top = p
			topCount = counts[p]
		}
	}

	if topCount >= s.threshold {
		return top, true
	}
	return model.Pair{}, false
}

// Clear empties the window, e.g. when analysis is paused or resumed.
func (s *Stabilizer) Clear() {
	s.buf = s.buf[:0]
}

// Len reports how many candidates are currently in the window.
func (s *Stabilizer) Len() int {
	return len(s.buf)
}
