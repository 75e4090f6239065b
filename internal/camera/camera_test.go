package camera

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.FATAL, Output: &bytes.Buffer{}})
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

type releases struct {
	mu sync.Mutex
	n  map[string]int
}

func (r *releases) frame(id string) *model.Frame {
	return model.NewFrame(id, []byte(id), 1, 1, 0, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.n[id]++
	})
}

func (r *releases) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n[id]
}

func TestSplitJpeg(t *testing.T) {
	jpegData := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}

	stream := []byte{0x00, 0x00}
	stream = append(stream, jpegData...)
	stream = append(stream, 0x00, 0x00)
	stream = append(stream, jpegData...)
	stream = append(stream, 0x00, 0xFF)

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(SplitJpeg)

	var tokens [][]byte
	for scanner.Scan() {
		tokens = append(tokens, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())
	require.Len(t, tokens, 2)
	require.Equal(t, jpegData, tokens[0])
	require.Equal(t, jpegData, tokens[1])
}

func TestSplitJpegNeedsMoreData(t *testing.T) {
	advance, token, err := SplitJpeg([]byte{0x00, 0xFF, 0xD8, 0x01}, false)
	require.NoError(t, err)
	require.Nil(t, token)
	require.Zero(t, advance)

	advance, token, err = SplitJpeg([]byte{0x00, 0x00, 0xFF}, false)
	require.NoError(t, err)
	require.Nil(t, token)
	require.Equal(t, 2, advance)
}

func TestLatestReplacesAndReleases(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()

	slot.Put(r.frame("a"))
	slot.Put(r.frame("b"))
	slot.Put(r.frame("c"))

	f, err := slot.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c", f.ID)
	require.Equal(t, 1, r.count("a"))
	require.Equal(t, 1, r.count("b"))
	require.Zero(t, r.count("c"))
	require.EqualValues(t, 2, slot.Dropped())

	f.Close()
	require.Equal(t, 1, r.count("c"))
}

func TestLatestCloseDeliversPending(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()

	slot.Put(r.frame("a"))
	slot.Close()
	slot.Close()

	f, err := slot.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", f.ID)

	_, err = slot.Take(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	// Frames offered after Close are released straight away.
	slot.Put(r.frame("late"))
	require.Equal(t, 1, r.count("late"))
}

func TestLatestDiscardReleasesPending(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()

	slot.Put(r.frame("a"))
	slot.Discard()

	require.Equal(t, 1, r.count("a"))
	_, err := slot.Take(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestLatestTakeWaits(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()

	go func() {
		time.Sleep(10 * time.Millisecond)
		slot.Put(r.frame("a"))
	}()

	f, err := slot.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", f.ID)
}

func TestLatestTakeCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewLatest().Take(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPumpDeliversUntilClosed(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()
	out := make(chan *model.Frame)
	go Pump(context.Background(), slot, out)

	slot.Put(r.frame("a"))
	f := <-out
	require.Equal(t, "a", f.ID)
	f.Close()

	slot.Close()
	_, ok := <-out
	require.False(t, ok)
}

func TestPumpCancelReleasesHeldFrame(t *testing.T) {
	r := &releases{n: map[string]int{}}
	slot := NewLatest()
	out := make(chan *model.Frame)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Pump(ctx, slot, out)
		close(done)
	}()

	slot.Put(r.frame("a"))
	// Give the pump time to pick the frame up and block on out.
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	require.Equal(t, 1, r.count("a"))
	_, ok := <-out
	require.False(t, ok)
}

func TestFeedPublishesFrames(t *testing.T) {
	first := encodeJPEG(t, 64, 48)
	second := encodeJPEG(t, 32, 16)

	var stream bytes.Buffer
	stream.Write(first)
	stream.Write([]byte{0x00, 0x01})
	stream.Write(second)

	s := NewStream("test", WithRotation(90), WithLogger(quietLogger()))
	slot := NewLatest()
	require.NoError(t, s.feed(context.Background(), &stream, slot))
	slot.Close()

	require.EqualValues(t, 2, s.Count())
	require.EqualValues(t, 1, slot.Dropped())

	f, err := slot.Take(context.Background())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 32, f.Width)
	require.Equal(t, 16, f.Height)
	require.Equal(t, 90, f.RotationDegrees)
	require.Equal(t, second, f.Image)
	require.NotEmpty(t, f.ID)
}

func TestFeedSkipsUndecodableFrames(t *testing.T) {
	stream := bytes.NewReader([]byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9})

	s := NewStream("test", WithLogger(quietLogger()))
	slot := NewLatest()
	require.NoError(t, s.feed(context.Background(), stream, slot))
	slot.Close()

	_, err := slot.Take(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.EqualValues(t, 1, s.Count())
}

func TestStreamArgs(t *testing.T) {
	s := NewStream("/dev/video0",
		WithInputFormat("v4l2"),
		WithFPS(2.5),
		WithRealtime(true),
		WithLogger(quietLogger()),
	)

	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-re",
		"-f", "v4l2",
		"-i", "/dev/video0",
		"-vf", "fps=2.5",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-",
	}, s.Args())
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badge.jpg")
	require.NoError(t, os.WriteFile(path, encodeJPEG(t, 120, 80), 0o644))

	f, err := FromFile(path, 270)
	require.NoError(t, err)
	require.Equal(t, 120, f.Width)
	require.Equal(t, 80, f.Height)
	require.Equal(t, 270, f.RotationDegrees)
	f.Close()

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.jpg"), 0)
	require.Error(t, err)
}
