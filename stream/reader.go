package stream

import (
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/waitable"
	"go.uber.org/zap"
)

const defaultBufferSize = 64

// Reader is the receiving end of a stream. Each read lands in a private
// scratch buffer that is handed out truncated to the count the writer
// reported.
type Reader[T any] struct {
	s          *Stream
	codec      Codec[T]
	alloc      witasync.Allocator
	reg        waitable.Registry
	scratch    []T
	region     unsafe.Pointer
	stride     uintptr
	regionSize uintptr
	align      uintptr
	capacity   int
	reading    bool
	registered bool
	done       bool
}

func newReader[T any](s *Stream, codec Codec[T], alloc witasync.Allocator, capacity int) *Reader[T] {
	r := &Reader[T]{s: s, codec: codec, alloc: alloc, capacity: capacity}
	if codec != nil {
		info := codec.Info()
		r.stride = uintptr(abi.AlignTo(info.Size, info.Align))
		r.align = uintptr(info.Align)
	}
	return r
}

// Stream returns the shared rendezvous.
func (r *Reader[T]) Stream() *Stream {
	return r.s
}

// SetBufferSize sets how many elements one read can receive. It must be
// called between reads.
func (r *Reader[T]) SetBufferSize(n int) {
	if n <= 0 {
		panic(errors.InvalidInput(errors.PhaseStream, "buffer size must be positive"))
	}
	if r.reading {
		errors.New(errors.PhaseStream, errors.KindProtocol).
			Op("set-buffer-size").
			Detail("read in progress").
			Fatal()
	}
	r.freeRegion()
	r.scratch = nil
	r.capacity = n
}

// PollNext reads the next batch. A ready nil slice means the stream ended:
// the writer closed or wrote zero elements.
func (r *Reader[T]) PollNext(cx *future.Context) ([]T, bool) {
	if r.done {
		return nil, true
	}
	if !r.reading {
		if r.s.StartReading(r.destination(), r.capacity).IsClosed() {
			r.finish()
			return nil, true
		}
		r.reading = true
	}

	res := r.s.ReadResult()
	if res.IsBlocked() {
		if !r.registered {
			r.registered = true
			r.reg = cx.Registry()
			waker := cx.Waker()
			cx.Register(r.s.ReadEvent(), func(uint32) {
				r.registered = false
				waker.Wake()
			})
		}
		return nil, false
	}

	r.reading = false
	r.unregister()
	if res.Done() {
		r.s.Cancel()
		r.finish()
		return nil, true
	}
	return r.take(res.N()), true
}

// Next returns a future for the next batch. See PollNext.
func (r *Reader[T]) Next() future.Future[[]T] {
	return future.Func[[]T](r.PollNext)
}

// ReadAll returns a future that reads until the stream ends and
// concatenates every batch.
func (r *Reader[T]) ReadAll() future.Future[[]T] {
	var out []T
	return future.Func[[]T](func(cx *future.Context) ([]T, bool) {
		for {
			batch, ok := r.PollNext(cx)
			if !ok {
				return nil, false
			}
			if batch == nil {
				return out, true
			}
			out = append(out, batch...)
		}
	})
}

// Done reports whether the stream ended for this reader.
func (r *Reader[T]) Done() bool {
	return r.done
}

// Cancel withdraws an outstanding read. It returns true when the reader is
// idle afterwards; false means the writer already filled the buffer and
// the next poll returns that data.
func (r *Reader[T]) Cancel() bool {
	if !r.reading {
		return true
	}
	if !r.s.Cancel() {
		return false
	}
	r.reading = false
	r.unregister()
	r.s.log.Debug("stream read canceled", zap.Uint32("read_event", uint32(r.s.ReadEvent())))
	return true
}

// Close abandons the stream and releases the scratch buffer. Elements the
// writer delivered but the reader never took are discarded with their
// payloads.
func (r *Reader[T]) Close() {
	if r.s.ReaderClosed() {
		return
	}
	if r.reading {
		r.discard(r.s.ReadResult().N())
	}
	r.reading = false
	r.unregister()
	r.s.CloseRead()
	r.done = true
	r.freeRegion()
	r.scratch = nil
}

func (r *Reader[T]) destination() unsafe.Pointer {
	if r.codec == nil {
		if r.scratch == nil {
			r.scratch = make([]T, r.capacity)
		}
		return unsafe.Pointer(unsafe.SliceData(r.scratch))
	}
	if r.region == nil {
		r.regionSize = r.stride * uintptr(r.capacity)
		r.region = r.alloc.Alloc(r.regionSize, r.align)
		if r.region == nil {
			panic(errors.AllocationFailed(errors.PhaseStream, r.regionSize, r.align))
		}
	}
	return r.region
}

func (r *Reader[T]) take(n int) []T {
	if r.codec == nil {
		out := r.scratch[:n:n]
		r.scratch = nil
		return out
	}
	out := make([]T, n)
	for i := range out {
		p := unsafe.Add(r.region, uintptr(i)*r.stride)
		out[i] = r.codec.Lift(p)
		r.codec.DeallocLists(p)
	}
	return out
}

func (r *Reader[T]) discard(n int) {
	if r.codec == nil || n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		r.codec.DeallocLists(unsafe.Add(r.region, uintptr(i)*r.stride))
	}
	r.s.log.Debug("stream unread batch discarded",
		zap.Uint32("read_event", uint32(r.s.ReadEvent())),
		zap.Int("count", n))
}

func (r *Reader[T]) finish() {
	r.done = true
	r.reading = false
	r.unregister()
}

func (r *Reader[T]) unregister() {
	if !r.registered {
		return
	}
	r.registered = false
	r.reg.Unregister(r.s.ReadEvent())
}

func (r *Reader[T]) freeRegion() {
	if r.region == nil {
		return
	}
	r.alloc.Free(r.region, r.regionSize, r.align)
	r.region = nil
}
