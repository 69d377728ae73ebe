// Package prefetch runs iterators ahead of their consumer.
//
// A Stream drives an inner iterator to completion on a background goroutine,
// buffering the produced values until the consumer asks for them.  The
// consumer and producer overlap in time, which is the whole point: the
// producer's waiting (usually on the network) happens while the consumer is
// busy elsewhere.
package prefetch

import (
	"context"
	"sync"

	"go.brendoncarroll.net/exp/streams"
)

var _ streams.Iterator[int] = &Stream[int]{}

// Stream is an eagerly evaluated view of another iterator.
// It must be created with New.
type Stream[T any] struct {
	out    <-chan T
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	done bool
}

// New starts driving inner on a background goroutine and returns a Stream
// reading from it.  Up to capacity values are buffered ahead of the
// consumer; once the buffer is full the producer blocks until the consumer
// makes room.  capacity <= 0 means an unlimited buffer.
//
// The background work is bound to ctx: cancelling it, or calling Stop,
// stops the producer at its next suspension point.  inner must not be used
// by anyone else once handed to New.
func New[T any](ctx context.Context, inner streams.Iterator[T], capacity int) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{ctx: ctx, cancel: cancel}
	if capacity > 0 {
		out := make(chan T, capacity)
		s.out = out
		go s.produce(ctx, inner, out)
	} else {
		in := make(chan T)
		out := make(chan T)
		s.out = out
		go s.produce(ctx, inner, in)
		go pump(ctx, in, out)
	}
	return s
}

// Next implements streams.Iterator.  It blocks until a value is buffered or
// the stream terminates.  After termination it keeps returning the same
// terminal error: streams.EOS if the inner iterator was exhausted, the
// inner iterator's error otherwise.  Values buffered before an error are
// delivered before the error is.
func (s *Stream[T]) Next(ctx context.Context, dst []T) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	select {
	case x, ok := <-s.out:
		if !ok {
			return 0, s.terminal()
		}
		dst[0] = x
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	n := 1
	for n < len(dst) {
		select {
		case x, ok := <-s.out:
			if !ok {
				return n, nil
			}
			dst[n] = x
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// Stop cancels the producer and discards anything still buffered.
// It is safe to call more than once, and safe to call concurrently with Next.
func (s *Stream[T]) Stop() {
	s.cancel()
}

// setErr latches the stream's terminal error.  Only the first error sticks.
func (s *Stream[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// terminal reports the stream's final state once out has been closed.
// Cancellation can close the channel before the producer gets to record
// anything, so the stream's own ctx is consulted as well.
func (s *Stream[T]) terminal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.done {
		return streams.EOS()
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return streams.EOS()
}

func (s *Stream[T]) produce(ctx context.Context, inner streams.Iterator[T], out chan<- T) {
	defer close(out)
	var x T
	for {
		if err := streams.NextUnit(ctx, inner, &x); err != nil {
			if streams.IsEOS(err) {
				s.mu.Lock()
				s.done = true
				s.mu.Unlock()
			} else {
				s.setErr(err)
			}
			return
		}
		select {
		case out <- x:
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

// pump shuttles values from in to out through an elastic buffer, giving the
// producer an unbounded queue.  It exits when in is closed and the buffer is
// drained, or when ctx is cancelled.
func pump[T any](ctx context.Context, in <-chan T, out chan<- T) {
	defer close(out)
	var buf []T
	for in != nil || len(buf) > 0 {
		var (
			sendCh chan<- T
			head   T
		)
		if len(buf) > 0 {
			sendCh = out
			head = buf[0]
		}
		select {
		case x, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, x)
		case sendCh <- head:
			buf = buf[1:]
		case <-ctx.Done():
			return
		}
	}
}
