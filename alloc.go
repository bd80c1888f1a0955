package witasync

import (
	"sync"
	"unsafe"

	"github.com/wippyai/wit-async/errors"
)

// Allocator allocates memory that may be handed to the host.
// Memory returned by Alloc stays valid until the matching Free.
type Allocator interface {
	Alloc(size, align uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer, size, align uintptr)
}

// HeapAllocator allocates from the Go heap and pins every live block so the
// garbage collector cannot reclaim memory the host still references.
// The zero value is not usable; call NewHeapAllocator.
type HeapAllocator struct {
	live  map[unsafe.Pointer]block
	bytes uintptr
	mu    sync.Mutex
}

type block struct {
	backing []uint64
	size    uintptr
	align   uintptr
}

// NewHeapAllocator creates an allocator with no live blocks.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{live: make(map[unsafe.Pointer]block)}
}

var (
	defaultAlloc     *HeapAllocator
	defaultAllocOnce sync.Once
)

// DefaultAllocator returns the process-wide heap allocator.
func DefaultAllocator() *HeapAllocator {
	defaultAllocOnce.Do(func() {
		defaultAlloc = NewHeapAllocator()
	})
	return defaultAlloc
}

// Alloc returns a zeroed block of size bytes aligned to align.
// A zero size yields a nil pointer. Alignments above 8 are honored by
// over-allocating.
func (a *HeapAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	if align == 0 || align&(align-1) != 0 {
		panic(errors.New(errors.PhaseBuffer, errors.KindInvalidInput).
			Detail("alignment %d is not a power of two", align).
			Build())
	}

	extra := uintptr(0)
	if align > 8 {
		extra = align
	}
	words := (size + extra + 7) / 8
	backing := make([]uint64, words)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(backing)))
	off := alignUp(base, align) - base
	ptr := unsafe.Add(unsafe.Pointer(unsafe.SliceData(backing)), off)

	a.mu.Lock()
	a.live[ptr] = block{backing: backing, size: size, align: align}
	a.bytes += size
	a.mu.Unlock()
	return ptr
}

// Free releases a block. Freeing an unknown pointer or passing a size that
// does not match the allocation is fatal: it means two owners disagree about
// who holds the memory.
func (a *HeapAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}
	a.mu.Lock()
	b, ok := a.live[ptr]
	if ok {
		delete(a.live, ptr)
		a.bytes -= b.size
	}
	a.mu.Unlock()

	if !ok {
		panic(errors.New(errors.PhaseBuffer, errors.KindNotFound).
			Detail("free of unknown block %p", ptr).
			Build())
	}
	if b.size != size || b.align != align {
		panic(errors.New(errors.PhaseBuffer, errors.KindInvalidInput).
			Detail("free of block %p with size %d align %d, allocated with size %d align %d",
				ptr, size, align, b.size, b.align).
			Build())
	}
}

// Live returns the number of blocks not yet freed.
func (a *HeapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// LiveBytes returns the total size of blocks not yet freed.
func (a *HeapAllocator) LiveBytes() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}
