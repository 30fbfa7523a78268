package vectorstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

// Columnar is an append-mostly store of fixed-dimension vectors laid out
// contiguously: vector i occupies data[i*dim : (i+1)*dim].
//
// Reads are lock-free. Writes are serialized by an internal mutex and never
// modify a published vector.
type Columnar struct {
	dim int

	data atomic.Pointer[[]float32]

	mu  sync.Mutex
	mem MemoryReserver
}

// NewColumnar creates a store for dim-dimensional vectors with room for
// capacity vectors.
func NewColumnar(dim, capacity int, mem MemoryReserver) (*Columnar, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	capacity = max(capacity, 16)
	if mem != nil {
		if err := mem.ReserveMemory(int64(capacity * dim * 4)); err != nil {
			return nil, err
		}
	}
	data := make([]float32, 0, capacity*dim)
	s := &Columnar{dim: dim, mem: mem}
	s.data.Store(&data)
	return s, nil
}

// Dimension returns the vector dimensionality.
func (s *Columnar) Dimension() int { return s.dim }

// Len returns the number of vector slots published so far.
func (s *Columnar) Len() int {
	return len(*s.data.Load()) / s.dim
}

// Bytes returns the memory held by the backing array.
func (s *Columnar) Bytes() int64 {
	return int64(cap(*s.data.Load())) * 4
}

// Vector returns the vector at idx. The slice aliases internal memory.
func (s *Columnar) Vector(idx uint32) ([]float32, bool) {
	data := *s.data.Load()
	start := int(idx) * s.dim
	end := start + s.dim
	if end > len(data) {
		return nil, false
	}
	return data[start:end:end], true
}

// Set stores v at idx. Slots between the previous end and idx are left zero.
// The vector is written before the extended slice is published, so readers
// never observe a partially written vector.
func (s *Columnar) Set(idx uint32, v []float32) error {
	if len(v) != s.dim {
		return ErrWrongDimension
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.data.Load()
	start := int(idx) * s.dim
	end := start + s.dim

	if end <= len(cur) {
		// Slot already published (gap filled by a later index). Nobody
		// can reach idx before this call returns.
		copy(cur[start:end], v)
		return nil
	}

	if end <= cap(cur) {
		grown := cur[:end]
		copy(grown[start:end], v)
		s.data.Store(&grown)
		return nil
	}

	newCap := max(end*2, cap(cur)*2)
	if s.mem != nil {
		if err := s.mem.ReserveMemory(int64(newCap-cap(cur)) * 4); err != nil {
			return err
		}
	}
	grown := make([]float32, end, newCap)
	copy(grown, cur)
	copy(grown[start:end], v)
	s.data.Store(&grown)
	return nil
}

// Close releases the memory reservation.
func (s *Columnar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem != nil {
		s.mem.ReleaseMemory(s.Bytes())
		s.mem = nil
	}
	return nil
}

// WriteTo writes the dimension, slot count and raw little-endian vectors.
func (s *Columnar) WriteTo(w io.Writer) (int64, error) {
	data := *s.data.Load()
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(s.dim))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(data)/s.dim))
	n, err := w.Write(hdr[:])
	total := int64(n)
	if err != nil {
		return total, err
	}

	buf := make([]byte, 0, 4096)
	for _, f := range data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		if len(buf) == cap(buf) {
			n, err = w.Write(buf)
			total += int64(n)
			if err != nil {
				return total, err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		n, err = w.Write(buf)
		total += int64(n)
	}
	return total, err
}

// ReadFrom replaces the contents with vectors written by WriteTo.
func (s *Columnar) ReadFrom(r io.Reader) (int64, error) {
	var hdr [8]byte
	n, err := io.ReadFull(r, hdr[:])
	total := int64(n)
	if err != nil {
		return total, err
	}
	dim := int(binary.LittleEndian.Uint32(hdr[0:4]))
	count := int(binary.LittleEndian.Uint32(hdr[4:8]))
	if dim != s.dim {
		return total, fmt.Errorf("%w: stored %d, expected %d", ErrWrongDimension, dim, s.dim)
	}

	raw := make([]byte, count*dim*4)
	n, err = io.ReadFull(r, raw)
	total += int64(n)
	if err != nil {
		return total, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := cap(*s.data.Load())
	data := make([]float32, count*dim, max(count*dim, old))
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	if s.mem != nil && cap(data) > old {
		if err := s.mem.ReserveMemory(int64(cap(data)-old) * 4); err != nil {
			return total, err
		}
	}
	s.data.Store(&data)
	return total, nil
}
