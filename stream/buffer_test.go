package stream

import (
	"testing"
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/errors"
)

func expectKind(t *testing.T, kind errors.Kind, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		err, ok := r.(*errors.Error)
		if !ok {
			t.Fatalf("expected *errors.Error panic, got %v", r)
		}
		if err.Kind != kind {
			t.Fatalf("expected kind %s, got %s (%v)", kind, err.Kind, err)
		}
	}()
	fn()
}

func TestAbiBuffer_NativeIsZeroCopy(t *testing.T) {
	vals := []uint32{1, 2, 3}
	b := NewAbiBuffer[uint32](vals, nil, witasync.NewHeapAllocator())

	if b.Ptr() != unsafe.Pointer(&vals[0]) {
		t.Fatal("native buffer should point at the caller's slice")
	}
	if b.Stride() != 4 || b.Len() != 3 {
		t.Fatalf("stride = %d, len = %d", b.Stride(), b.Len())
	}

	b.Advance(2)
	if b.Ptr() != unsafe.Pointer(&vals[2]) || b.Cursor() != 2 || b.Remaining() != 1 {
		t.Fatalf("cursor = %d, remaining = %d", b.Cursor(), b.Remaining())
	}

	rest := b.IntoSlice()
	if len(rest) != 1 || rest[0] != 3 {
		t.Fatalf("rest = %v, want [3]", rest)
	}
	if &rest[0] != &vals[0] {
		t.Fatal("remainder should reuse the caller's backing array")
	}
	if vals[1] != 0 || vals[2] != 0 {
		t.Fatalf("slots behind the remainder not cleared: %v", vals)
	}
}

func TestAbiBuffer_IntoSliceDropsTransferredPrefix(t *testing.T) {
	tests := []struct {
		name    string
		vals    []string
		advance int
		want    []string
	}{
		{"nothing sent", []string{"a", "b"}, 0, []string{"a", "b"}},
		{"prefix sent", []string{"a", "b", "c", "d"}, 3, []string{"d"}},
		{"all sent", []string{"a", "b"}, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals := append([]string(nil), tt.vals...)
			b := NewAbiBuffer[string](vals, nil, witasync.NewHeapAllocator())
			b.Advance(tt.advance)

			rest := b.IntoSlice()
			if len(rest) != len(tt.want) {
				t.Fatalf("rest = %q, want %q", rest, tt.want)
			}
			for i := range tt.want {
				if rest[i] != tt.want[i] {
					t.Fatalf("rest = %q, want %q", rest, tt.want)
				}
			}
			for i, v := range vals[len(rest):] {
				if v != "" {
					t.Fatalf("slot %d still holds %q", len(rest)+i, v)
				}
			}
		})
	}
}

func TestAbiBuffer_CodecAdvanceAndRemainder(t *testing.T) {
	alloc := witasync.NewHeapAllocator()
	codec := StringCodec(alloc)
	vals := []string{"a", "bb", "ccc", "dddd"}

	b := NewAbiBuffer(vals, codec, alloc)
	// One region plus one payload per value.
	if alloc.Live() != 5 {
		t.Fatalf("live = %d, want 5", alloc.Live())
	}
	for i, v := range vals {
		if v != "" {
			t.Fatalf("native slot %d not cleared: %q", i, v)
		}
	}

	b.Advance(1)
	b.Advance(2)
	if alloc.Live() != 2 {
		t.Fatalf("live after advance = %d, want 2", alloc.Live())
	}
	if got := codec.Lift(b.Elem(0)); got != "dddd" {
		t.Fatalf("elem 0 = %q", got)
	}
	expectKind(t, errors.KindOutOfBounds, func() { b.Elem(1) })

	rest := b.IntoSlice()
	if len(rest) != 1 || rest[0] != "dddd" {
		t.Fatalf("rest = %v", rest)
	}
	if alloc.Live() != 0 {
		t.Fatalf("live = %d, want 0", alloc.Live())
	}
}

func TestAbiBuffer_Misuse(t *testing.T) {
	alloc := witasync.NewHeapAllocator()
	b := NewAbiBuffer([]string{"x", "y"}, StringCodec(alloc), alloc)

	expectKind(t, errors.KindOutOfBounds, func() { b.Advance(3) })
	expectKind(t, errors.KindOutOfBounds, func() { b.Advance(-1) })

	rest := b.IntoSlice()
	if len(rest) != 2 || rest[0] != "x" || rest[1] != "y" {
		t.Fatalf("rest = %v", rest)
	}
	expectKind(t, errors.KindClosed, func() { b.IntoSlice() })
	expectKind(t, errors.KindClosed, func() { b.Advance(0) })
	if alloc.Live() != 0 {
		t.Fatalf("live = %d, want 0", alloc.Live())
	}
}

func TestAbiBuffer_Empty(t *testing.T) {
	alloc := witasync.NewHeapAllocator()
	b := NewAbiBuffer[string](nil, StringCodec(alloc), alloc)
	if b.Ptr() != nil || b.Remaining() != 0 {
		t.Fatal("empty buffer should have no elements")
	}
	b.Advance(0)
	if rest := b.IntoSlice(); len(rest) != 0 {
		t.Fatalf("rest = %v", rest)
	}
	if alloc.Live() != 0 {
		t.Fatalf("live = %d", alloc.Live())
	}
}
