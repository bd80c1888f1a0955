package stream

import (
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/layout"
	"go.bytecodealliance.org/wit"
)

// Codec converts values between their native form and their Canonical ABI
// form. A nil Codec means the native layout already is the ABI layout and
// values are transferred as they sit in memory.
type Codec[T any] interface {
	// Info is the ABI size and alignment of one element.
	Info() layout.Info
	// Lower writes v at dst, allocating any indirect payloads.
	Lower(v T, dst unsafe.Pointer)
	// Lift reads the element at src. It does not free anything.
	Lift(src unsafe.Pointer) T
	// DeallocLists frees the indirect payloads of the element at ptr.
	DeallocLists(ptr unsafe.Pointer)
}

// StringCodec lowers strings to a (pointer, length) pair with the payload
// allocated from alloc.
func StringCodec(alloc witasync.Allocator) Codec[string] {
	return &stringCodec{
		alloc: alloc,
		info:  layout.NewCalculator(layout.Host).Calculate(wit.String{}),
	}
}

type stringCodec struct {
	alloc witasync.Allocator
	info  layout.Info
}

const wordSize = unsafe.Sizeof(uintptr(0))

func (c *stringCodec) Info() layout.Info { return c.info }

func (c *stringCodec) Lower(v string, dst unsafe.Pointer) {
	data := c.alloc.Alloc(uintptr(len(v)), 1)
	copy(unsafe.Slice((*byte)(data), len(v)), v)
	*(*unsafe.Pointer)(dst) = data
	*(*uintptr)(unsafe.Add(dst, wordSize)) = uintptr(len(v))
}

func (c *stringCodec) Lift(src unsafe.Pointer) string {
	data := *(*unsafe.Pointer)(src)
	n := *(*uintptr)(unsafe.Add(src, wordSize))
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(data), n))
}

func (c *stringCodec) DeallocLists(ptr unsafe.Pointer) {
	data := *(*unsafe.Pointer)(ptr)
	n := *(*uintptr)(unsafe.Add(ptr, wordSize))
	c.alloc.Free(data, n, 1)
}
