package layout

import (
	"unsafe"

	"github.com/wippyai/wit-async/abi"
	"go.bytecodealliance.org/wit"
)

// Target describes the memory model layouts are computed for.
type Target struct {
	PointerSize uint32
}

var (
	// Wasm32 is the Canonical ABI memory model of a 32-bit component.
	Wasm32 = Target{PointerSize: 4}

	// Host is the memory model of the running process. Native builds use it
	// so that list and string payload pointers fit their slots.
	Host = Target{PointerSize: uint32(unsafe.Sizeof(uintptr(0)))}
)

// Info is the size and alignment of one value.
type Info struct {
	Size  uint32
	Align uint32
}

// Calculator computes Canonical ABI sizes and alignments for WIT types.
// Results for type definitions are cached per calculator.
type Calculator struct {
	cache  map[*wit.TypeDef]Info
	target Target
}

func NewCalculator(target Target) *Calculator {
	return &Calculator{
		cache:  make(map[*wit.TypeDef]Info),
		target: target,
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return c.pointerPair()
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) pointerPair() Info {
	p := c.target.PointerSize
	return Info{Size: 2 * p, Align: p}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		info = c.sequence(fields)
	case *wit.Tuple:
		info = c.sequence(kind.Types)
	case *wit.Variant:
		cases := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			cases[i] = cs.Type
		}
		info = c.tagged(len(kind.Cases), cases)
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Option:
		info = c.tagged(2, []wit.Type{nil, kind.Type})
	case *wit.Result:
		info = c.tagged(2, []wit.Type{kind.OK, kind.Err})
	case *wit.List:
		info = c.pointerPair()
	case *wit.Flags:
		info = flagsInfo(len(kind.Flags))
	case *wit.Own, *wit.Borrow, *wit.Future, *wit.Stream:
		info = Info{Size: 4, Align: 4}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// sequence lays out values one after another, as records and tuples do.
func (c *Calculator) sequence(types []wit.Type) Info {
	maxAlign := uint32(1)
	offset := uint32(0)
	for _, typ := range types {
		l := c.Calculate(typ)
		offset = abi.AlignTo(offset, l.Align)
		if l.Align > maxAlign {
			maxAlign = l.Align
		}
		offset += l.Size
	}
	return Info{Size: abi.AlignTo(offset, maxAlign), Align: maxAlign}
}

// tagged lays out a discriminant followed by the largest payload.
func (c *Calculator) tagged(numCases int, payloads []wit.Type) Info {
	disc := discriminantSize(numCases)
	maxAlign := disc
	maxSize := uint32(0)
	for _, p := range payloads {
		if p == nil {
			continue
		}
		l := c.Calculate(p)
		if l.Align > maxAlign {
			maxAlign = l.Align
		}
		if l.Size > maxSize {
			maxSize = l.Size
		}
	}
	payloadOffset := abi.AlignTo(disc, maxAlign)
	return Info{Size: abi.AlignTo(payloadOffset+maxSize, maxAlign), Align: maxAlign}
}

func discriminantSize(numCases int) uint32 {
	switch {
	case numCases <= 256:
		return 1
	case numCases <= 65536:
		return 2
	default:
		return 4
	}
}

func flagsInfo(n int) Info {
	switch {
	case n == 0:
		return Info{Size: 0, Align: 1}
	case n <= 8:
		return Info{Size: 1, Align: 1}
	case n <= 16:
		return Info{Size: 2, Align: 2}
	default:
		return Info{Size: uint32((n + 31) / 32 * 4), Align: 4}
	}
}
