package ayascan

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/himanishpuri/AyaScan/pkg/logger"
	"github.com/stretchr/testify/require"
)

var errOCR = errors.New("ocr backend down")

// badge returns fragments for a 1000x1000 frame: letter at the center and
// the digits well outside the inner radius.
func badge(letter, digits string) []TextFragment {
	return []TextFragment{
		{Text: letter, Box: &Rect{Left: 495, Top: 495, Right: 505, Bottom: 505}},
		{Text: digits, Box: &Rect{Left: 95, Top: 495, Right: 105, Bottom: 505}},
	}
}

// scriptedRecognizer treats the image bytes as a key into a table of results.
type scriptedRecognizer struct {
	results map[string][]TextFragment
	calls   atomic.Int64
}

func (r *scriptedRecognizer) Recognize(_ context.Context, image []byte, _ int) ([]TextFragment, error) {
	r.calls.Add(1)
	key := string(image)
	if key == "fail" {
		return nil, errOCR
	}
	if key == "panic" {
		panic("recognizer crashed")
	}
	return r.results[key], nil
}

func newScripted() *scriptedRecognizer {
	return &scriptedRecognizer{results: map[string][]TextFragment{
		"A1":    badge("A", "1"),
		"B2":    badge("B", "2"),
		"C3":    badge("C", "3"),
		"blank": nil,
	}}
}

// frameCounter hands out frames and counts releases per frame.
type frameCounter struct {
	mu       sync.Mutex
	released map[string]int
	next     int
}

func newFrameCounter() *frameCounter {
	return &frameCounter{released: map[string]int{}}
}

func (c *frameCounter) frame(image string) *Frame {
	c.mu.Lock()
	c.next++
	id := "frame-" + strconv.Itoa(c.next)
	c.mu.Unlock()

	var data []byte
	if image != "" {
		data = []byte(image)
	}
	return NewFrame(id, data, 1000, 1000, 0, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.released[id]++
	})
}

func (c *frameCounter) assertEachReleasedOnce(t *testing.T, delivered int) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.released, delivered)
	for id, n := range c.released {
		require.Equal(t, 1, n, "frame %s released %d times", id, n)
	}
}

func quietLogger() Logger {
	return logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
}

type confirmation struct{ letter, number string }

func newTestPipeline(t *testing.T, rec Recognizer) (*Pipeline, *[]confirmation) {
	t.Helper()
	var got []confirmation
	p, err := NewPipeline(rec, func(letter, number string) {
		got = append(got, confirmation{letter, number})
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	return p, &got
}

func TestPipelineConfirmsAfterThreshold(t *testing.T) {
	p, got := newTestPipeline(t, newScripted())
	frames := newFrameCounter()
	ctx := context.Background()

	for _, img := range []string{"A1", "A1", "B2", "A1", "C3"} {
		require.NoError(t, p.Process(ctx, frames.frame(img)))
	}

	require.Equal(t, []confirmation{{"A", "1"}, {"A", "1"}}, *got)
	frames.assertEachReleasedOnce(t, 5)

	st := p.Stats()
	require.EqualValues(t, 5, st.Frames)
	require.EqualValues(t, 5, st.Candidates)
	require.EqualValues(t, 2, st.Confirmations)
}

func TestPipelineAnalyzeReportsFrameResult(t *testing.T) {
	p, _ := newTestPipeline(t, newScripted())
	frames := newFrameCounter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := p.Analyze(ctx, frames.frame("A1"))
		require.NoError(t, err)
		require.False(t, ok)
	}

	pair, ok, err := p.Analyze(ctx, frames.frame("A1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Pair{Letter: "A", Digits: "1"}, pair)

	// The vote still holds, but this frame carried no candidate.
	pair, ok, err = p.Analyze(ctx, frames.frame("blank"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, pair)

	_, ok, err = p.Analyze(ctx, frames.frame("fail"))
	require.ErrorIs(t, err, ErrRecognition)
	require.False(t, ok)

	frames.assertEachReleasedOnce(t, 5)
}

func TestPipelineReleasesEveryFrameExactlyOnce(t *testing.T) {
	rec := newScripted()
	p, _ := newTestPipeline(t, rec)
	frames := newFrameCounter()
	ctx := context.Background()

	inputs := []string{"A1", "fail", "", "blank", "fail", "B2", "A1", "fail", "A1"}
	failures := 0
	for _, img := range inputs {
		err := p.Process(ctx, frames.frame(img))
		if err != nil {
			failures++
			require.ErrorIs(t, err, ErrRecognition)
			require.ErrorIs(t, err, errOCR)
		}
	}

	require.Equal(t, 3, failures)
	frames.assertEachReleasedOnce(t, len(inputs))
	require.EqualValues(t, 3, p.Stats().Failures)
}

func TestPipelineReleasesOnPanic(t *testing.T) {
	p, _ := newTestPipeline(t, newScripted())
	frames := newFrameCounter()

	require.Panics(t, func() {
		p.Process(context.Background(), frames.frame("panic"))
	})
	frames.assertEachReleasedOnce(t, 1)

	// The pipeline lock was released by the panic unwinding.
	require.NoError(t, p.Process(context.Background(), frames.frame("A1")))
}

func TestPipelineSkipsFrameWithoutImage(t *testing.T) {
	rec := newScripted()
	p, got := newTestPipeline(t, rec)
	frames := newFrameCounter()

	require.NoError(t, p.Process(context.Background(), frames.frame("")))
	require.EqualValues(t, 0, rec.calls.Load())
	require.Empty(t, *got)
	frames.assertEachReleasedOnce(t, 1)
}

func TestPipelinePausedSkipsOCR(t *testing.T) {
	rec := newScripted()
	p, got := newTestPipeline(t, rec)
	frames := newFrameCounter()
	ctx := context.Background()

	require.False(t, p.ToggleAnalyzing())
	require.False(t, p.Analyzing())

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Process(ctx, frames.frame("A1")))
	}

	require.EqualValues(t, 0, rec.calls.Load())
	require.Empty(t, *got)
	require.EqualValues(t, 4, p.Stats().Skipped)
	frames.assertEachReleasedOnce(t, 4)
}

func TestPipelineResumeClearsVotes(t *testing.T) {
	p, got := newTestPipeline(t, newScripted())
	frames := newFrameCounter()
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, frames.frame("A1")))
	require.NoError(t, p.Process(ctx, frames.frame("A1")))

	p.SetAnalyzing(false)
	p.SetAnalyzing(true)

	// Two old votes are gone, so two new ones are not enough.
	require.NoError(t, p.Process(ctx, frames.frame("A1")))
	require.NoError(t, p.Process(ctx, frames.frame("A1")))
	require.Empty(t, *got)

	require.NoError(t, p.Process(ctx, frames.frame("A1")))
	require.Equal(t, []confirmation{{"A", "1"}}, *got)
}

func TestPipelinePauseDuringOCRDiscardsCandidate(t *testing.T) {
	var p *Pipeline
	rec := RecognizerFunc(func(ctx context.Context, image []byte, rotation int) ([]TextFragment, error) {
		p.SetAnalyzing(false)
		return badge("A", "1"), nil
	})
	var got []confirmation
	var err error
	p, err = NewPipeline(rec, func(l, n string) { got = append(got, confirmation{l, n}) },
		WithThreshold(1), WithLogger(quietLogger()))
	require.NoError(t, err)

	frames := newFrameCounter()
	require.NoError(t, p.Process(context.Background(), frames.frame("A1")))
	require.Empty(t, got)
	require.EqualValues(t, 0, p.Stats().Confirmations)
	frames.assertEachReleasedOnce(t, 1)
}

func TestPipelineWithoutRecognizer(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	frames := newFrameCounter()

	err := p.Process(context.Background(), frames.frame("A1"))
	require.ErrorIs(t, err, ErrNoRecognizer)
	frames.assertEachReleasedOnce(t, 1)
}

func TestPipelineRunDrainsChannel(t *testing.T) {
	p, got := newTestPipeline(t, newScripted())
	frames := newFrameCounter()

	ch := make(chan *Frame, 8)
	for _, img := range []string{"A1", "fail", "A1", "A1"} {
		ch <- frames.frame(img)
	}
	close(ch)

	require.NoError(t, p.Run(context.Background(), ch))
	require.Equal(t, []confirmation{{"A", "1"}}, *got)
	frames.assertEachReleasedOnce(t, 4)
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	p, _ := newTestPipeline(t, newScripted())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, make(chan *Frame))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipelineConcurrentProcessIsSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	rec := RecognizerFunc(func(ctx context.Context, image []byte, rotation int) ([]TextFragment, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return badge("A", "1"), nil
	})
	p, _ := newTestPipeline(t, rec)
	frames := newFrameCounter()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Process(context.Background(), frames.frame("A1"))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, maxInFlight.Load())
	frames.assertEachReleasedOnce(t, 16)
}

func TestNewPipelineRejectsBadWindow(t *testing.T) {
	_, err := NewPipeline(newScripted(), nil, WithWindowSize(2), WithThreshold(3))
	require.Error(t, err)
}
