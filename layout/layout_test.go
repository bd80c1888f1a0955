package layout

import (
	"errors"
	"testing"
	"unsafe"

	witerrors "github.com/wippyai/wit-async/errors"
	"go.bytecodealliance.org/wit"
)

func TestCalculatePrimitives(t *testing.T) {
	c := NewCalculator(Wasm32)

	tests := []struct {
		typ   wit.Type
		name  string
		size  uint32
		align uint32
	}{
		{wit.Bool{}, "bool", 1, 1},
		{wit.U8{}, "u8", 1, 1},
		{wit.S16{}, "s16", 2, 2},
		{wit.U32{}, "u32", 4, 4},
		{wit.F32{}, "f32", 4, 4},
		{wit.U64{}, "u64", 8, 8},
		{wit.F64{}, "f64", 8, 8},
		{wit.Char{}, "char", 4, 4},
		{wit.String{}, "string", 8, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if info.Align != tc.align {
				t.Errorf("align: got %d, want %d", info.Align, tc.align)
			}
		})
	}
}

func TestCalculate_HostPointers(t *testing.T) {
	c := NewCalculator(Host)
	ptr := uint32(unsafe.Sizeof(uintptr(0)))

	info := c.Calculate(&wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}})
	if info.Size != 2*ptr || info.Align != ptr {
		t.Errorf("list on host: got %+v, want size %d align %d", info, 2*ptr, ptr)
	}
}

func TestCalculateCompound(t *testing.T) {
	c := NewCalculator(Wasm32)

	tests := []struct {
		name  string
		typ   wit.Type
		size  uint32
		align uint32
	}{
		{
			name: "record u8 u32",
			typ: &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
				{Name: "a", Type: wit.U8{}},
				{Name: "b", Type: wit.U32{}},
			}}},
			size: 8, align: 4,
		},
		{
			name:  "empty record",
			typ:   &wit.TypeDef{Kind: &wit.Record{}},
			size:  0,
			align: 1,
		},
		{
			name:  "option u64",
			typ:   &wit.TypeDef{Kind: &wit.Option{Type: wit.U64{}}},
			size:  16,
			align: 8,
		},
		{
			name:  "result string u8",
			typ:   &wit.TypeDef{Kind: &wit.Result{OK: wit.String{}, Err: wit.U8{}}},
			size:  12,
			align: 4,
		},
		{
			name:  "tuple u16 u8",
			typ:   &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U16{}, wit.U8{}}}},
			size:  4,
			align: 2,
		},
		{
			name: "enum",
			typ: &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{
				{Name: "a"}, {Name: "b"},
			}}},
			size: 1, align: 1,
		},
		{
			name:  "own handle",
			typ:   &wit.TypeDef{Kind: &wit.Own{}},
			size:  4,
			align: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size || info.Align != tc.align {
				t.Errorf("got %+v, want size %d align %d", info, tc.size, tc.align)
			}
		})
	}
}

func TestBuilder_Offsets(t *testing.T) {
	l, err := NewBuilder(Wasm32).
		Param("flag", wit.Bool{}).
		Param("key", wit.String{}).
		Param("big", wit.U64{}).
		Result("value", wit.U32{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := map[string]uint32{"flag": 0, "key": 4, "big": 16}
	for name, off := range want {
		f, ok := l.Param(name)
		if !ok {
			t.Fatalf("param %q missing", name)
		}
		if f.Offset != off {
			t.Errorf("param %q offset = %d, want %d", name, f.Offset, off)
		}
	}

	if l.ResultOffset != 24 {
		t.Errorf("ResultOffset = %d, want 24", l.ResultOffset)
	}
	if l.ResultSize != 4 {
		t.Errorf("ResultSize = %d, want 4", l.ResultSize)
	}
	if l.Size != 32 || l.Align != 8 {
		t.Errorf("Size/Align = %d/%d, want 32/8", l.Size, l.Align)
	}
}

func TestBuilder_NoResults(t *testing.T) {
	l := NewBuilder(Wasm32).Param("a", wit.U8{}).Param("b", wit.U16{}).MustBuild()
	if l.Size != 4 || l.ResultOffset != 4 || l.ResultSize != 0 {
		t.Errorf("got size %d result offset %d result size %d", l.Size, l.ResultOffset, l.ResultSize)
	}
}

func TestBuilder_Empty(t *testing.T) {
	l := NewBuilder(Wasm32).MustBuild()
	if !l.IsZero() {
		t.Errorf("empty layout should be zero-sized, got %d", l.Size)
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
		kind witerrors.Kind
	}{
		{"nil type", NewBuilder(Wasm32).Param("x", nil), witerrors.KindInvalidInput},
		{"duplicate", NewBuilder(Wasm32).Param("x", wit.U8{}).Result("x", wit.U8{}), witerrors.KindDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			var e *witerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind || e.Phase != witerrors.PhaseLayout {
				t.Errorf("got %s/%s", e.Phase, e.Kind)
			}
		})
	}
}

func TestRegion(t *testing.T) {
	l := NewBuilder(Host).
		Param("a", wit.U32{}).
		Param("b", wit.U32{}).
		Result("r", wit.U64{}).
		MustBuild()

	backing := make([]uint64, l.Size/8)
	r := NewRegion(unsafe.Pointer(&backing[0]), l)

	*(*uint32)(r.At("b")) = 7
	*(*uint64)(r.Results()) = 99

	bytes := r.Bytes()
	if len(bytes) != int(l.Size) {
		t.Fatalf("Bytes len = %d, want %d", len(bytes), l.Size)
	}
	if bytes[4] != 7 {
		t.Errorf("param b not visible through Bytes: %v", bytes[:8])
	}
	if *(*uint64)(r.At("r")) != 99 {
		t.Error("result slot mismatch")
	}
	if r.At("missing") != nil {
		t.Error("unknown field should be nil")
	}

	empty := NewRegion(nil, Layout{})
	if empty.Bytes() != nil || empty.Results() != nil {
		t.Error("nil region should expose nothing")
	}
}
