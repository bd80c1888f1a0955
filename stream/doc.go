// Package stream implements component-model streams and futures between
// tasks of one instance.
//
// A Stream is the rendezvous both ends share: the reader publishes a
// destination buffer and the writer fills it, each side waking the other
// through a host event. Writer and Reader put typed, future-returning
// operations on top, and FutureWriter and FutureReader restrict a stream
// to a single value.
//
// Values whose native layout matches the ABI move without conversion.
// Other types supply a Codec; outgoing values are staged in an AbiBuffer,
// which lowers them once and lifts back whatever the reader never took.
package stream
