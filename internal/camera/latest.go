package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/model"
)

var ErrClosed = errors.New("camera: slot closed")

// Latest holds at most one undelivered frame. A newer frame replaces the
// pending one, which is released on the spot, so a slow consumer always gets
// the freshest image and never builds a backlog.
type Latest struct {
	mu      sync.Mutex
	pending *model.Frame
	closed  bool
	ready   chan struct{} // signalled when pending is set or the slot closes

	dropped atomic.Int64
}

func NewLatest() *Latest {
	return &Latest{ready: make(chan struct{}, 1)}
}

// Put offers a frame. After Close the frame is released immediately.
func (l *Latest) Put(f *model.Frame) {
	if f == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		f.Close()
		return
	}
	old := l.pending
	l.pending = f
	l.mu.Unlock()

	if old != nil {
		l.dropped.Add(1)
		old.Close()
	}
	l.signal()
}

// Take waits for the next frame. A frame pending at Close is still handed
// out; after that Take returns ErrClosed.
func (l *Latest) Take(ctx context.Context) (*model.Frame, error) {
	for {
		l.mu.Lock()
		if f := l.pending; f != nil {
			l.pending = nil
			l.mu.Unlock()
			return f, nil
		}
		if l.closed {
			l.mu.Unlock()
			return nil, ErrClosed
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.ready:
		}
	}
}

// Close stops accepting frames. It is safe to call more than once.
func (l *Latest) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// Discard closes the slot and releases the pending frame, if any.
func (l *Latest) Discard() {
	l.mu.Lock()
	l.closed = true
	f := l.pending
	l.pending = nil
	l.mu.Unlock()

	if f != nil {
		f.Close()
	}
	l.signal()
}

// Dropped reports how many frames were replaced before delivery.
func (l *Latest) Dropped() int64 {
	return l.dropped.Load()
}

func (l *Latest) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Pump moves frames from the slot to out until the slot is drained or ctx is
// done, then closes out. A frame that cannot be delivered is released.
func Pump(ctx context.Context, slot *Latest, out chan<- *model.Frame) {
	defer close(out)
	for {
		f, err := slot.Take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slot.Discard()
			}
			return
		}
		select {
		case out <- f:
		case <-ctx.Done():
			f.Close()
			slot.Discard()
			return
		}
	}
}
