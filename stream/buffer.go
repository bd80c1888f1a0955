package stream

import (
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
)

// AbiBuffer holds values being written to a stream. Values before the
// cursor have been transferred; the rest are still owned by the buffer.
//
// Without a codec the native slice is the transfer region and nothing is
// copied. With a codec every value is lowered into a separate ABI region at
// construction, and the native slots are cleared until IntoSlice lifts the
// untransferred values back.
type AbiBuffer[T any] struct {
	vals     []T
	codec    Codec[T]
	alloc    witasync.Allocator
	region   unsafe.Pointer
	stride   uintptr
	size     uintptr
	align    uintptr
	cursor   int
	released bool
}

// NewAbiBuffer takes ownership of vals.
func NewAbiBuffer[T any](vals []T, codec Codec[T], alloc witasync.Allocator) *AbiBuffer[T] {
	b := &AbiBuffer[T]{vals: vals, codec: codec, alloc: alloc}
	if codec == nil {
		var zero T
		b.stride = unsafe.Sizeof(zero)
		return b
	}

	info := codec.Info()
	b.stride = uintptr(abi.AlignTo(info.Size, info.Align))
	b.align = uintptr(info.Align)
	b.size = b.stride * uintptr(len(vals))
	if b.size > 0 {
		b.region = alloc.Alloc(b.size, b.align)
		if b.region == nil {
			panic(errors.AllocationFailed(errors.PhaseBuffer, b.size, b.align))
		}
	}

	var zero T
	for i := range vals {
		codec.Lower(vals[i], b.at(i))
		vals[i] = zero
	}
	return b
}

func (b *AbiBuffer[T]) at(i int) unsafe.Pointer {
	if b.codec == nil {
		return unsafe.Pointer(&b.vals[i])
	}
	return unsafe.Add(b.region, uintptr(i)*b.stride)
}

// Ptr returns the ABI address of the first untransferred element, or nil
// when none remain.
func (b *AbiBuffer[T]) Ptr() unsafe.Pointer {
	if b.cursor >= len(b.vals) {
		return nil
	}
	return b.at(b.cursor)
}

// Elem returns the ABI address of the i-th untransferred element.
func (b *AbiBuffer[T]) Elem(i int) unsafe.Pointer {
	if i < 0 || b.cursor+i >= len(b.vals) {
		panic(errors.OutOfBounds(errors.PhaseBuffer, i, b.Remaining()))
	}
	return b.at(b.cursor + i)
}

// Stride is the distance in bytes between consecutive ABI elements.
func (b *AbiBuffer[T]) Stride() uintptr {
	return b.stride
}

// Len returns the total number of elements.
func (b *AbiBuffer[T]) Len() int {
	return len(b.vals)
}

// Cursor returns the number of elements transferred so far.
func (b *AbiBuffer[T]) Cursor() int {
	return b.cursor
}

// Remaining returns the number of elements not yet transferred.
func (b *AbiBuffer[T]) Remaining() int {
	return len(b.vals) - b.cursor
}

// Advance marks n more elements as transferred and frees their ABI
// payloads. Moving past the end panics.
func (b *AbiBuffer[T]) Advance(n int) {
	if b.released {
		b.releasedPanic("advance")
	}
	if n < 0 || n > b.Remaining() {
		panic(errors.OutOfBounds(errors.PhaseBuffer, b.cursor+n, len(b.vals)))
	}
	if b.codec != nil {
		for i := b.cursor; i < b.cursor+n; i++ {
			b.codec.DeallocLists(b.at(i))
		}
	}
	b.cursor += n
}

// IntoSlice returns the untransferred values in order and releases the
// buffer. They are moved to the front of the original backing array and
// the slots behind them are cleared. With a codec the remaining elements
// are lifted back and their payloads and the ABI region are freed.
func (b *AbiBuffer[T]) IntoSlice() []T {
	if b.released {
		b.releasedPanic("into-slice")
	}
	b.released = true

	if b.codec != nil {
		for i := b.cursor; i < len(b.vals); i++ {
			p := b.at(i)
			b.vals[i] = b.codec.Lift(p)
			b.codec.DeallocLists(p)
		}
		if b.region != nil {
			b.alloc.Free(b.region, b.size, b.align)
			b.region = nil
		}
	}

	n := copy(b.vals, b.vals[b.cursor:])
	clear(b.vals[n:])
	rest := b.vals[:n]
	b.vals = nil
	return rest
}

func (b *AbiBuffer[T]) releasedPanic(op string) {
	errors.New(errors.PhaseBuffer, errors.KindClosed).
		Op(op).
		Detail("buffer already converted back to a slice").
		Fatal()
}
