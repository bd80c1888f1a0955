package waitable

import (
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
)

// Set is a host waitable set. The host handle is minted on first Join so
// tasks that never wait never allocate one.
type Set struct {
	host   canon.Host
	handle abi.Handle
	joined int
}

// NewSet creates a set that has not been minted yet.
func NewSet(host canon.Host) *Set {
	return &Set{host: host}
}

// Handle returns the host handle, or 0 if nothing ever joined.
func (s *Set) Handle() abi.Handle {
	return s.handle
}

// Len returns the number of waitables currently joined.
func (s *Set) Len() int {
	return s.joined
}

// Join adds w to the set.
func (s *Set) Join(w abi.Handle) {
	if s.handle == 0 {
		s.handle = s.host.WaitableSetNew()
	}
	s.host.WaitableJoin(w, s.handle)
	s.joined++
}

// Leave removes w from the set.
func (s *Set) Leave(w abi.Handle) {
	s.host.WaitableJoin(w, 0)
	if s.joined > 0 {
		s.joined--
	}
}

// Wait blocks in the host until a joined waitable has an event.
func (s *Set) Wait() abi.Event {
	return s.host.WaitableSetWait(s.handle)
}

// Drop releases the host handle. The set must be empty.
func (s *Set) Drop() {
	if s.handle == 0 {
		return
	}
	s.host.WaitableSetDrop(s.handle)
	s.handle = 0
	s.joined = 0
}
