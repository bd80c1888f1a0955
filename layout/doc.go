// Package layout describes the memory blocks exchanged with the host.
//
// An async-lowered import call owns one contiguous block: lowered parameters
// followed by a result region at a fixed offset. Rather than computing those
// offsets by hand, generated code describes the block as a list of WIT-typed
// fields and lets Builder validate it once:
//
//	call := layout.NewBuilder(layout.Wasm32).
//		Param("key", wit.String{}).
//		Param("ttl", wit.U32{}).
//		Result("value", &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}).
//		MustBuild()
//
//	region := layout.NewRegion(ptr, call)
//	*(*uint32)(region.At("ttl")) = 30
//
// # Layout Rules
//
// Sizes and alignments follow the Canonical ABI:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records and tuples: fields laid out sequentially with padding
//   - Variants, options, results: discriminant followed by largest payload
//   - Lists/strings: (pointer, length) pair, content stored elsewhere
//   - Handles (own, borrow, future, stream): u32
//
// The Target selects the pointer width. Components use Wasm32; native
// builds use Host so that payload pointers fit their slots.
package layout
