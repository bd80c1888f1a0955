package layout

import (
	"math"
	"unsafe"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"go.bytecodealliance.org/wit"
)

// Field is one named slot of a Layout.
type Field struct {
	Type   wit.Type
	Name   string
	Offset uint32
	Info
}

// Layout describes the contiguous memory block of one async-lowered call:
// lowered parameters followed by a result region at ResultOffset.
// Offsets are computed once by Builder and never change.
type Layout struct {
	Params       []Field
	Results      []Field
	Size         uint32
	Align        uint32
	ResultOffset uint32
	ResultSize   uint32
}

// IsZero reports whether the layout needs no memory at all.
func (l Layout) IsZero() bool {
	return l.Size == 0
}

// Param looks up a parameter slot by name.
func (l Layout) Param(name string) (Field, bool) {
	return find(l.Params, name)
}

// Result looks up a result slot by name.
func (l Layout) Result(name string) (Field, bool) {
	return find(l.Results, name)
}

func find(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type fieldSpec struct {
	typ  wit.Type
	name string
}

// Builder collects parameter and result fields and validates them into a
// Layout.
type Builder struct {
	calc    *Calculator
	params  []fieldSpec
	results []fieldSpec
}

// NewBuilder starts a layout for the given memory model.
func NewBuilder(target Target) *Builder {
	return &Builder{calc: NewCalculator(target)}
}

// Param appends a parameter slot.
func (b *Builder) Param(name string, t wit.Type) *Builder {
	b.params = append(b.params, fieldSpec{name: name, typ: t})
	return b
}

// Result appends a result slot.
func (b *Builder) Result(name string, t wit.Type) *Builder {
	b.results = append(b.results, fieldSpec{name: name, typ: t})
	return b
}

// Build computes offsets. It rejects nil types, duplicate names and layouts
// that do not fit a 32-bit address space.
func (b *Builder) Build() (Layout, error) {
	seen := make(map[string]bool, len(b.params)+len(b.results))
	for _, group := range [][]fieldSpec{b.params, b.results} {
		for _, f := range group {
			if f.typ == nil {
				return Layout{}, errors.New(errors.PhaseLayout, errors.KindInvalidInput).
					Detail("field %q has no type", f.name).
					Build()
			}
			if seen[f.name] {
				return Layout{}, errors.New(errors.PhaseLayout, errors.KindDuplicate).
					Detail("field %q declared twice", f.name).
					Build()
			}
			seen[f.name] = true
		}
	}

	params, paramsEnd, paramsAlign, err := b.place(b.params, 0)
	if err != nil {
		return Layout{}, err
	}

	resultsAlign := uint32(1)
	for _, f := range b.results {
		if a := b.calc.Calculate(f.typ).Align; a > resultsAlign {
			resultsAlign = a
		}
	}
	resultOffset := abi.AlignTo(paramsEnd, resultsAlign)

	results, resultsEnd, _, err := b.place(b.results, resultOffset)
	if err != nil {
		return Layout{}, err
	}

	resultSize := resultsEnd - resultOffset
	align := max(paramsAlign, resultsAlign)
	end := resultsEnd
	if len(b.results) == 0 {
		end = paramsEnd
	}
	size := (uint64(end) + uint64(align) - 1) &^ (uint64(align) - 1)
	if size > math.MaxUint32 {
		return Layout{}, errors.New(errors.PhaseLayout, errors.KindOutOfBounds).
			Detail("layout of %d bytes exceeds address space", size).
			Build()
	}
	if len(b.results) == 0 {
		resultOffset = uint32(size)
	}

	return Layout{
		Params:       params,
		Results:      results,
		Size:         uint32(size),
		Align:        align,
		ResultOffset: resultOffset,
		ResultSize:   resultSize,
	}, nil
}

// MustBuild is Build for layouts known to be valid at init time.
func (b *Builder) MustBuild() Layout {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}

func (b *Builder) place(specs []fieldSpec, start uint32) ([]Field, uint32, uint32, error) {
	fields := make([]Field, 0, len(specs))
	offset := start
	maxAlign := uint32(1)
	for _, s := range specs {
		info := b.calc.Calculate(s.typ)
		offset = abi.AlignTo(offset, info.Align)
		if info.Align > maxAlign {
			maxAlign = info.Align
		}
		fields = append(fields, Field{Name: s.name, Type: s.typ, Offset: offset, Info: info})
		next, ok := abi.SafeAddU32(offset, info.Size)
		if !ok {
			return nil, 0, 0, errors.New(errors.PhaseLayout, errors.KindOutOfBounds).
				Detail("field %q overflows the layout", s.name).
				Build()
		}
		offset = next
	}
	return fields, offset, maxAlign, nil
}

// Region is a block of memory interpreted through a Layout.
type Region struct {
	ptr    unsafe.Pointer
	layout Layout
}

// NewRegion binds a layout to memory of at least layout.Size bytes.
func NewRegion(ptr unsafe.Pointer, l Layout) Region {
	return Region{ptr: ptr, layout: l}
}

// Ptr returns the base address; nil for zero-sized layouts.
func (r Region) Ptr() unsafe.Pointer { return r.ptr }

// Layout returns the layout the region was built with.
func (r Region) Layout() Layout { return r.layout }

// Params returns the start of the parameter area.
func (r Region) Params() unsafe.Pointer { return r.ptr }

// Results returns the start of the result area.
func (r Region) Results() unsafe.Pointer {
	if r.ptr == nil {
		return nil
	}
	return unsafe.Add(r.ptr, r.layout.ResultOffset)
}

// At returns the address of a named parameter or result slot.
func (r Region) At(name string) unsafe.Pointer {
	f, ok := r.layout.Param(name)
	if !ok {
		f, ok = r.layout.Result(name)
	}
	if !ok || r.ptr == nil {
		return nil
	}
	return unsafe.Add(r.ptr, f.Offset)
}

// Bytes exposes the whole region as a byte slice. It is the escape hatch for
// code that writes the wire format directly.
func (r Region) Bytes() []byte {
	if r.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(r.ptr), r.layout.Size)
}
