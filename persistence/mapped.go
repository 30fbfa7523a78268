package persistence

import (
	"fmt"
	"os"
)

// Mapped is a read-only view of a file. On unix platforms it is backed by
// mmap; elsewhere the file is read into memory.
//
// Slices returned by Bytes are invalid after Close.
type Mapped struct {
	data  []byte
	unmap func([]byte) error
}

// Bytes returns the file contents.
func (m *Mapped) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Close releases the mapping.
func (m *Mapped) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if m.unmap != nil {
		return m.unmap(data)
	}
	return nil
}

// Open maps the file at path.
func Open(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapped{data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("persistence: %s too large to map", path)
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("persistence: map %s: %w", path, err)
	}
	return &Mapped{data: data, unmap: unmap}, nil
}
