package hostabi

import (
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wit-async/errors"
)

// Memory adapts a guest's linear memory. Accesses outside the memory fail
// with an out-of-bounds error instead of returning ok flags.
type Memory struct {
	Mem api.Memory
}

// WrapMemory returns nil for a module without memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

// Read reads length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds("read", offset, length)
	}
	return data, nil
}

// Write writes data at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return m.outOfBounds("write", offset, uint32(len(data)))
	}
	return nil
}

// ReadU32 reads a little-endian u32.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds("read", offset, 4)
	}
	return v, nil
}

// WriteU32 writes a little-endian u32.
func (m *Memory) WriteU32(offset, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return m.outOfBounds("write", offset, 4)
	}
	return nil
}

func (m *Memory) outOfBounds(op string, offset, length uint32) error {
	return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
		Op(op).
		Detail("offset=%d length=%d memory=%d", offset, length, m.Mem.Size()).
		Build()
}
