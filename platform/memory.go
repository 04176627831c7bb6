package platform

import "encoding/binary"

const pageSize = 4096

// Memory is the guest physical memory: a sparse page map over the
// configured address window. Accesses outside the window read as zero
// and drop writes; the PMP checks that reject them happen before the
// memory is touched.
type Memory struct {
	base  uint64
	size  uint64
	pages map[uint64][]byte
}

// NewMemory creates a guest memory window of size bytes at base.
func NewMemory(base, size uint64) *Memory {
	return &Memory{
		base:  base,
		size:  size,
		pages: make(map[uint64][]byte),
	}
}

// Base returns the lowest address of the memory window.
func (m *Memory) Base() uint64 { return m.base }

// Size returns the window size in bytes.
func (m *Memory) Size() uint64 { return m.size }

// Contains reports whether the [addr, addr+width) access stays inside
// the window.
func (m *Memory) Contains(addr, width uint64) bool {
	return addr >= m.base && addr+width <= m.base+m.size && addr+width >= addr
}

func (m *Memory) page(addr uint64, allocate bool) ([]byte, uint64) {
	pageAddr := addr &^ (pageSize - 1)
	p, ok := m.pages[pageAddr]
	if !ok && allocate {
		p = make([]byte, pageSize)
		m.pages[pageAddr] = p
	}
	return p, addr - pageAddr
}

// Read copies size bytes starting at addr. Unbacked pages read as
// zero.
func (m *Memory) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	for done := 0; done < size; {
		p, off := m.page(addr+uint64(done), false)
		n := pageSize - int(off)
		if n > size-done {
			n = size - done
		}
		if p != nil {
			copy(out[done:done+n], p[off:])
		}
		done += n
	}
	return out
}

// Write stores data starting at addr, allocating pages as needed.
func (m *Memory) Write(addr uint64, data []byte) {
	for done := 0; done < len(data); {
		p, off := m.page(addr+uint64(done), true)
		n := copy(p[off:], data[done:])
		done += n
	}
}

// Read32 reads a little-endian 32-bit word.
func (m *Memory) Read32(addr uint64) uint32 {
	return binary.LittleEndian.Uint32(m.Read(addr, 4))
}

// Read64 reads a little-endian 64-bit word.
func (m *Memory) Read64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.Read(addr, 8))
}

// Write32 stores a little-endian 32-bit word.
func (m *Memory) Write32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	m.Write(addr, buf[:])
}

// Write64 stores a little-endian 64-bit word.
func (m *Memory) Write64(addr uint64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.Write(addr, buf[:])
}

// LoadImage copies a flat binary image to addr.
func (m *Memory) LoadImage(addr uint64, image []byte) {
	m.Write(addr, image)
}
