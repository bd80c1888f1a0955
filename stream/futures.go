package stream

import (
	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/future"
)

// Option is a value that may be absent.
type Option[T any] struct {
	Value T
	Some  bool
}

// FutureWriter sends exactly one value.
type FutureWriter[T any] struct {
	w *Writer[T]
}

// FutureReader receives at most one value.
type FutureReader[T any] struct {
	r   *Reader[T]
	got bool
}

// NewFuture creates a connected single-value writer and reader. Their
// events carry the FUTURE_READ and FUTURE_WRITE codes.
func NewFuture[T any](host canon.Host, codec Codec[T], alloc witasync.Allocator) (*FutureWriter[T], *FutureReader[T]) {
	s := newStream(host, abi.EventFutureRead, abi.EventFutureWrite)
	return &FutureWriter[T]{w: newWriter(s, codec, alloc)},
		&FutureReader[T]{r: newReader(s, codec, alloc, 1)}
}

// Write returns a future that delivers v and closes the writer. It
// completes with false if the reader closed first.
func (f *FutureWriter[T]) Write(v T) future.Future[bool] {
	return future.Func[bool](func(cx *future.Context) (bool, bool) {
		capacity, ok := f.w.PollReady(cx)
		if !ok {
			return false, false
		}
		delivered := false
		if capacity > 0 {
			delivered = len(f.w.Send([]T{v})) == 0
		}
		f.w.Close()
		return delivered, true
	})
}

// Close drops the writer. A reader that has not received a value sees it
// as closed.
func (f *FutureWriter[T]) Close() {
	f.w.Close()
}

// PollRead waits for the value. Some is false if the writer closed
// without sending one.
func (f *FutureReader[T]) PollRead(cx *future.Context) (Option[T], bool) {
	if f.got {
		return Option[T]{}, true
	}
	batch, ok := f.r.PollNext(cx)
	if !ok {
		return Option[T]{}, false
	}
	f.got = true
	f.r.Close()
	if len(batch) == 0 {
		return Option[T]{}, true
	}
	return Option[T]{Value: batch[0], Some: true}, true
}

// Read returns a future for the value. See PollRead.
func (f *FutureReader[T]) Read() future.Future[Option[T]] {
	return future.Func[Option[T]](f.PollRead)
}

// Close drops the reader.
func (f *FutureReader[T]) Close() {
	f.r.Close()
}
