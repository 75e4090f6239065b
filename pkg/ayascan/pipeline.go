package ayascan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/extractor"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/stabilizer"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

var ErrNoRecognizer = errors.New("no recognizer configured")

// PipelineStats counts what happened to the frames seen so far.
type PipelineStats struct {
	Frames        int64 `json:"frames"`
	Skipped       int64 `json:"skipped"`  // paused or no image data
	Failures      int64 `json:"failures"` // OCR errors
	Candidates    int64 `json:"candidates"`
	Confirmations int64 `json:"confirmations"`
}

// Pipeline turns camera frames into confirmed badge readings:
// OCR, then extraction, then the stabilizer vote.
//
// Every frame handed to Process is closed exactly once, whatever happens.
// Analyses are serialized so stabilizer votes arrive in frame order.
type Pipeline struct {
	recognizer Recognizer
	extractor  *extractor.Extractor
	log        Logger

	mu         sync.Mutex // held for a whole OCR+extract+stabilize sequence
	stabilizer *stabilizer.Stabilizer
	onStable   StablePairFunc

	analyzing  atomic.Bool
	resetVotes atomic.Bool

	frames        atomic.Int64
	skipped       atomic.Int64
	failures      atomic.Int64
	candidates    atomic.Int64
	confirmations atomic.Int64
}

// NewPipeline builds a pipeline that reports confirmations to onStable.
// Analysis starts enabled.
func NewPipeline(recognizer Recognizer, onStable StablePairFunc, opts ...Option) (*Pipeline, error) {
	cfg := buildConfig(opts)
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().With("pipeline")
	}
	if recognizer == nil {
		recognizer = cfg.Recognizer
	}

	stab, err := stabilizer.New(cfg.WindowSize, cfg.Threshold)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		recognizer: recognizer,
		extractor:  extractor.New(cfg.InnerRadiusRatio),
		log:        cfg.Logger,
		stabilizer: stab,
		onStable:   onStable,
	}
	p.analyzing.Store(true)
	return p, nil
}

// Process analyzes one frame. A paused pipeline or a frame without image
// data is skipped silently. OCR failures are returned wrapped in
// ErrRecognition and are not retried.
//
// OnStablePair runs on the calling goroutine with the pipeline locked, so it
// must not call Process.
func (p *Pipeline) Process(ctx context.Context, frame *Frame) error {
	_, _, err := p.Analyze(ctx, frame)
	return err
}

// Analyze is Process that also reports the reading this frame confirmed,
// if any. The result belongs to this frame even when other goroutines feed
// the same pipeline.
func (p *Pipeline) Analyze(ctx context.Context, frame *Frame) (Pair, bool, error) {
	if frame == nil {
		return Pair{}, false, nil
	}
	defer frame.Close()
	p.frames.Add(1)

	if !p.analyzing.Load() || frame.Image == nil {
		p.skipped.Add(1)
		return Pair{}, false, nil
	}
	if p.recognizer == nil {
		return Pair{}, false, ErrNoRecognizer
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resetVotes.CompareAndSwap(true, false) {
		p.stabilizer.Clear()
	}

	fragments, err := p.recognizer.Recognize(ctx, frame.Image, frame.RotationDegrees)
	if err != nil {
		p.failures.Add(1)
		return Pair{}, false, fmt.Errorf("frame %s: %w: %w", frame.ID, ErrRecognition, err)
	}

	w, h := frame.UprightSize()
	candidate, ok := p.extractor.Extract(fragments, w, h)
	if !ok {
		p.log.Debugf("frame %s: no candidate in %d fragments", frame.ID, len(fragments))
		return Pair{}, false, nil
	}
	p.candidates.Add(1)

	// Paused while OCR was running: keep the result out of the vote window.
	if !p.analyzing.Load() {
		p.skipped.Add(1)
		return Pair{}, false, nil
	}

	confirmed, ok := p.stabilizer.Add(candidate)
	if !ok {
		p.log.Debugf("frame %s: candidate %s (%d in window)", frame.ID, candidate, p.stabilizer.Len())
		return Pair{}, false, nil
	}
	p.confirmations.Add(1)
	p.log.Debugf("frame %s: confirmed %s", frame.ID, confirmed)

	if p.onStable != nil {
		p.onStable(confirmed.Letter, confirmed.Digits)
	}
	return confirmed, true, nil
}

// Run processes frames from a single worker until the channel closes or ctx
// is done. Per-frame errors are logged and do not stop the loop.
func (p *Pipeline) Run(ctx context.Context, frames <-chan *Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := p.Process(ctx, f); err != nil {
				p.log.Warnf("analysis failed: %v", err)
			}
		}
	}
}

// SetAnalyzing pauses or resumes analysis from the next frame on. Resuming
// discards the old vote window.
func (p *Pipeline) SetAnalyzing(on bool) {
	prev := p.analyzing.Swap(on)
	if on && !prev {
		p.resetVotes.Store(true)
	}
}

// ToggleAnalyzing flips the analysis state and returns the new one.
func (p *Pipeline) ToggleAnalyzing() bool {
	for {
		cur := p.analyzing.Load()
		if p.analyzing.CompareAndSwap(cur, !cur) {
			if !cur {
				p.resetVotes.Store(true)
			}
			return !cur
		}
	}
}

func (p *Pipeline) Analyzing() bool {
	return p.analyzing.Load()
}

// SetOnStablePair replaces the confirmation callback.
func (p *Pipeline) SetOnStablePair(fn StablePairFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStable = fn
}

func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Frames:        p.frames.Load(),
		Skipped:       p.skipped.Load(),
		Failures:      p.failures.Load(),
		Candidates:    p.candidates.Load(),
		Confirmations: p.confirmations.Load(),
	}
}
