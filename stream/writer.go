package stream

import (
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/waitable"
	"go.uber.org/zap"
)

// Writer is the sending end of a stream.
type Writer[T any] struct {
	s          *Stream
	codec      Codec[T]
	alloc      witasync.Allocator
	reg        waitable.Registry
	registered bool
	closed     bool
}

// NewStream creates a connected writer and reader. codec may be nil when
// T needs no conversion.
func NewStream[T any](host canon.Host, codec Codec[T], alloc witasync.Allocator) (*Writer[T], *Reader[T]) {
	s := New(host)
	return newWriter(s, codec, alloc), newReader(s, codec, alloc, defaultBufferSize)
}

func newWriter[T any](s *Stream, codec Codec[T], alloc witasync.Allocator) *Writer[T] {
	return &Writer[T]{s: s, codec: codec, alloc: alloc}
}

// Stream returns the shared rendezvous.
func (w *Writer[T]) Stream() *Stream {
	return w.s
}

// PollReady waits until the reader has published a destination. It returns
// the destination's capacity, or 0 once the reader is gone.
func (w *Writer[T]) PollReady(cx *future.Context) (int, bool) {
	if w.closed || w.s.ReaderClosed() {
		w.unregister()
		return 0, true
	}
	if w.s.IsReadyToWrite() {
		w.unregister()
		return w.s.Capacity(), true
	}
	if !w.registered {
		w.registered = true
		w.reg = cx.Registry()
		waker := cx.Waker()
		cx.Register(w.s.WriteEvent(), func(uint32) {
			w.registered = false
			waker.Wake()
		})
	}
	return 0, false
}

// Send transfers as many values as the published destination holds and
// returns the rest. Without a published destination nothing is sent.
// Sending an empty slice reports a zero-length write, which ends the
// stream for the reader.
func (w *Writer[T]) Send(vals []T) []T {
	if w.closed || w.s.ReaderClosed() || !w.s.IsReadyToWrite() {
		return vals
	}
	buf := NewAbiBuffer(vals, w.codec, w.alloc)
	w.SendBuffer(buf)
	return buf.IntoSlice()
}

// SendBuffer transfers the next elements of buf into the published
// destination and advances buf past them. It reports how many were sent,
// and false when no destination was published or the stream is closed.
// buf keeps its cursor between calls.
func (w *Writer[T]) SendBuffer(buf *AbiBuffer[T]) (int, bool) {
	if w.closed || w.s.ReaderClosed() {
		return 0, false
	}
	dst, capacity := w.s.StartWriting()
	if dst == nil {
		return 0, false
	}

	n := min(buf.Remaining(), capacity)
	w.transfer(dst, buf, n)
	buf.Advance(n)
	w.s.FinishWriting(abi.Count(n))
	w.s.log.Debug("stream send",
		zap.Uint32("write_event", uint32(w.s.WriteEvent())),
		zap.Int("sent", n),
		zap.Int("left", buf.Remaining()))
	return n, true
}

func (w *Writer[T]) transfer(dst unsafe.Pointer, buf *AbiBuffer[T], n int) {
	if n == 0 {
		return
	}
	if w.codec == nil {
		copy(unsafe.Slice((*T)(dst), n), unsafe.Slice((*T)(buf.Ptr()), n))
		return
	}
	for i := 0; i < n; i++ {
		v := w.codec.Lift(buf.Elem(i))
		w.codec.Lower(v, unsafe.Add(dst, uintptr(i)*buf.Stride()))
	}
}

// Write returns a future that sends all of vals. It completes with the
// values the reader never took because it closed; nil means everything
// was delivered. Writing an empty slice ends the stream for the reader.
func (w *Writer[T]) Write(vals []T) future.Future[[]T] {
	var buf *AbiBuffer[T]
	return future.Func[[]T](func(cx *future.Context) ([]T, bool) {
		if buf == nil {
			buf = NewAbiBuffer(vals, w.codec, w.alloc)
			vals = nil
		}
		for {
			capacity, ok := w.PollReady(cx)
			if !ok {
				return nil, false
			}
			if capacity == 0 {
				if rest := buf.IntoSlice(); len(rest) > 0 {
					return rest, true
				}
				return nil, true
			}
			w.SendBuffer(buf)
			if buf.Remaining() == 0 {
				buf.IntoSlice()
				return nil, true
			}
		}
	})
}

// Close ends the stream. The reader sees CLOSED after the values already
// sent.
func (w *Writer[T]) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.unregister()
	w.s.CloseWrite()
}

func (w *Writer[T]) unregister() {
	if !w.registered {
		return
	}
	w.registered = false
	w.reg.Unregister(w.s.WriteEvent())
}
