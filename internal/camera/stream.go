// Package camera produces frames for the recognition pipeline from video
// files, capture devices and still images.
package camera

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/ocr"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

const megabyte = 1024 * 1024

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

var frameBufferPool = sync.Pool{
	New: func() any { return make([]byte, 0, megabyte) },
}

// SplitJpeg is a bufio.SplitFunc that yields complete JPEG images found
// between SOI and EOI markers. Bytes outside an image are skipped.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF, it may start the next marker.
		return max(len(data)-1, 0), nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	n := start + len(jpegSOI) + end + len(jpegEOI)
	return n, data[start:n], nil
}

// Stream decodes a video file or capture device with ffmpeg and publishes
// its frames into a Latest slot.
type Stream struct {
	input       string
	inputFormat string
	fps         float64
	rotation    int
	realtime    bool
	log         *logger.Logger

	stderr bytes.Buffer
	frames atomic.Int64
}

type Option func(*Stream)

// WithInputFormat forces the ffmpeg demuxer, e.g. "v4l2" for /dev/video0.
func WithInputFormat(format string) Option {
	return func(s *Stream) { s.inputFormat = format }
}

// WithFPS limits the decoded frame rate. Zero keeps the source rate.
func WithFPS(fps float64) Option {
	return func(s *Stream) { s.fps = fps }
}

// WithRotation tags every frame with the rotation needed to make it upright.
func WithRotation(degrees int) Option {
	return func(s *Stream) { s.rotation = degrees }
}

// WithRealtime reads file input at its native rate, like a live camera.
func WithRealtime(on bool) Option {
	return func(s *Stream) { s.realtime = on }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Stream) { s.log = l }
}

func NewStream(input string, opts ...Option) *Stream {
	s := &Stream{
		input: input,
		log:   logger.GetLogger().With("camera"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Args returns the ffmpeg arguments for this stream.
func (s *Stream) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if s.realtime {
		args = append(args, "-re")
	}
	if s.inputFormat != "" {
		args = append(args, "-f", s.inputFormat)
	}
	args = append(args, "-i", s.input)
	if s.fps > 0 {
		args = append(args, "-vf", "fps="+strconv.FormatFloat(s.fps, 'f', -1, 64))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// Run starts ffmpeg and feeds slot until the input ends or ctx is done. The
// slot is closed on return.
func (s *Stream) Run(ctx context.Context, slot *Latest) error {
	defer slot.Close()

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", s.Args()...)
	cmd.Stderr = &s.stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.log.Infof("Streaming %s", s.input)

	feedErr := s.feed(ctx, out, slot)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if feedErr != nil {
		return feedErr
	}
	if waitErr != nil {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", waitErr)
	}
	return nil
}

// Frames runs the stream in the background and returns its frames through a
// channel. errc receives the result of Run once the channel is closed.
func (s *Stream) Frames(ctx context.Context) (<-chan *model.Frame, <-chan error) {
	slot := NewLatest()
	out := make(chan *model.Frame)
	errc := make(chan error, 1)

	go func() { errc <- s.Run(ctx, slot) }()
	go Pump(ctx, slot, out)
	return out, errc
}

// Count returns the number of frames read so far.
func (s *Stream) Count() int64 { return s.frames.Load() }

func (s *Stream) feed(ctx context.Context, r io.Reader, slot *Latest) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := s.frames.Add(1)

		data := scanner.Bytes()
		w, h, err := ocr.Size(data)
		if err != nil {
			s.log.Warnf("skipping frame %d: %v", n, err)
			continue
		}

		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < len(data) {
			buf = make([]byte, len(data))
		}
		buf = buf[:len(data)]
		copy(buf, data)

		slot.Put(model.NewFrame(uuid.NewString(), buf, w, h, s.rotation, func() {
			frameBufferPool.Put(buf[:0])
		}))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("frame scanner failed: %w", err)
	}
	return nil
}

// FromFile loads one still image as a frame.
func FromFile(path string, rotation int) (*model.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	w, h, err := ocr.Size(data)
	if err != nil {
		return nil, err
	}
	return model.NewFrame(uuid.NewString(), data, w, h, rotation, nil), nil
}

// CountFrames asks ffprobe for the number of video frames in path. It
// returns 0 when the count is unavailable.
func CountFrames(path string) int {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0
	}

	type ffprobeOutput struct {
		Streams []struct {
			NbFrames string `json:"nb_frames"`
		} `json:"streams"`
	}

	cmd := exec.Command("ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=nb_frames", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	var res ffprobeOutput
	if json.Unmarshal(out, &res) != nil || len(res.Streams) == 0 {
		return 0
	}
	n, err := strconv.Atoi(res.Streams[0].NbFrames)
	if err != nil {
		return 0
	}
	return n
}
