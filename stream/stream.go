package stream

import (
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/errors"
	"go.uber.org/zap"
)

const (
	readerClosed uint32 = 1 << iota
	writerClosed
)

// Stream is the rendezvous object shared by one reader and one writer.
//
// The reader publishes a destination; the writer takes it with an atomic
// swap, fills it and publishes the count. At most one side holds the
// destination at any time. Each side is woken through a host event:
// readEvent fires for the reader, writeEvent for the writer. Both events
// are dropped when the second side closes.
type Stream struct {
	host       canon.Host
	log        *zap.Logger
	dst        atomic.Pointer[byte]
	capacity   atomic.Int32
	ready      atomic.Int32
	owners     atomic.Int32
	closed     atomic.Uint32
	readEvent  abi.Handle
	writeEvent abi.Handle
	readCode   abi.EventCode
	writeCode  abi.EventCode
}

// New creates a stream rendezvous with two live owners.
func New(host canon.Host) *Stream {
	return newStream(host, abi.EventStreamRead, abi.EventStreamWrite)
}

func newStream(host canon.Host, readCode, writeCode abi.EventCode) *Stream {
	s := &Stream{
		host:       host,
		log:        Logger(),
		readEvent:  host.EventNew(),
		writeEvent: host.EventNew(),
		readCode:   readCode,
		writeCode:  writeCode,
	}
	s.ready.Store(int32(abi.Blocked))
	s.owners.Store(2)
	s.log.Debug("stream created",
		zap.Uint32("read_event", uint32(s.readEvent)),
		zap.Uint32("write_event", uint32(s.writeEvent)))
	return s
}

// ReadEvent is the waitable the reader waits on.
func (s *Stream) ReadEvent() abi.Handle { return s.readEvent }

// WriteEvent is the waitable the writer waits on.
func (s *Stream) WriteEvent() abi.Handle { return s.writeEvent }

// StartReading publishes dst with room for n elements and wakes the writer.
// It returns CLOSED without publishing if the writer is gone, BLOCKED
// otherwise.
func (s *Stream) StartReading(dst unsafe.Pointer, n int) abi.Result {
	if s.closed.Load()&writerClosed != 0 {
		return abi.Closed
	}
	if dst == nil || n <= 0 {
		panic(errors.InvalidInput(errors.PhaseStream, "read needs a destination with room for at least one element"))
	}
	s.ready.Store(int32(abi.Blocked))
	s.capacity.Store(int32(n))
	if prev := s.dst.Swap((*byte)(dst)); prev != nil {
		errors.New(errors.PhaseStream, errors.KindProtocol).
			Op("start-reading").
			Handle(uint32(s.readEvent)).
			Detail("a read is already in progress").
			Fatal()
	}
	s.host.EventTrigger(s.writeEvent, s.writeCode, uint32(n))
	return abi.Blocked
}

// IsReadyToWrite reports whether a destination is published.
func (s *Stream) IsReadyToWrite() bool {
	return s.dst.Load() != nil
}

// Capacity returns the element capacity of the published destination.
func (s *Stream) Capacity() int {
	return int(s.capacity.Load())
}

// StartWriting takes the published destination. It returns nil if no read
// is waiting.
func (s *Stream) StartWriting() (unsafe.Pointer, int) {
	p := s.dst.Swap(nil)
	if p == nil {
		return nil, 0
	}
	return unsafe.Pointer(p), int(s.capacity.Load())
}

// FinishWriting publishes the outcome of a write started with StartWriting
// and wakes the reader.
func (s *Stream) FinishWriting(r abi.Result) {
	s.ready.Store(int32(r))
	s.log.Debug("stream write finished",
		zap.Uint32("read_event", uint32(s.readEvent)),
		zap.Stringer("result", r))
	s.host.EventTrigger(s.readEvent, s.readCode, r.Encode())
}

// ReadResult returns the outcome of the current read: BLOCKED while the
// writer has not finished, otherwise a count or CLOSED.
func (s *Stream) ReadResult() abi.Result {
	return abi.Result(s.ready.Load())
}

// Cancel withdraws the published destination. It fails if the writer
// already took it; the read then completes normally.
func (s *Stream) Cancel() bool {
	if s.dst.Swap(nil) == nil {
		return false
	}
	s.ready.Store(int32(abi.Canceled))
	return true
}

// ReaderClosed reports whether the reader side is closed.
func (s *Stream) ReaderClosed() bool {
	return s.closed.Load()&readerClosed != 0
}

// WriterClosed reports whether the writer side is closed.
func (s *Stream) WriterClosed() bool {
	return s.closed.Load()&writerClosed != 0
}

// CloseRead closes the reader side and wakes a waiting writer.
func (s *Stream) CloseRead() {
	old := s.closed.Or(readerClosed)
	if old&readerClosed != 0 {
		return
	}
	s.dst.Store(nil)
	if old&writerClosed == 0 {
		s.host.EventTrigger(s.writeEvent, s.writeCode, abi.Closed.Encode())
	}
	s.release()
}

// CloseWrite closes the writer side. The reader sees CLOSED after it has
// taken the result of the last write.
func (s *Stream) CloseWrite() {
	old := s.closed.Or(writerClosed)
	if old&writerClosed != 0 {
		return
	}
	if old&readerClosed == 0 {
		s.ready.CompareAndSwap(int32(abi.Blocked), int32(abi.Closed))
		s.host.EventTrigger(s.readEvent, s.readCode, abi.Closed.Encode())
	}
	s.release()
}

func (s *Stream) release() {
	if s.owners.Add(-1) != 0 {
		return
	}
	s.host.EventDrop(s.readEvent)
	s.host.EventDrop(s.writeEvent)
	s.log.Debug("stream released",
		zap.Uint32("read_event", uint32(s.readEvent)),
		zap.Uint32("write_event", uint32(s.writeEvent)))
}
