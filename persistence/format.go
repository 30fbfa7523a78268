package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic identifies artifact files (ASCII "VGRH").
	Magic uint32 = 0x48524756
	// Version is the current artifact format version.
	Version uint16 = 1

	// HeaderSize is the encoded size of Header.
	HeaderSize = 40
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("unexpected artifact kind")
	ErrTruncated      = errors.New("truncated artifact")
)

// Kind identifies the payload stored in an artifact.
type Kind uint8

const (
	KindGraph Kind = 1
	KindIDMap Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindGraph:
		return "graph"
	case KindIDMap:
		return "idmap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header is the fixed-size prefix of every artifact.
type Header struct {
	Magic       uint32
	Version     uint16
	Kind        Kind
	Compression Compression
	Dimension   uint32
	Metric      uint8
	_           [3]byte
	PayloadLen  uint64 // uncompressed
	StoredLen   uint64 // as written after the header
	Checksum    uint32 // over the uncompressed payload
	_           uint32
}

// Encode writes h followed by payload, compressed with h.Compression when
// that saves at least a tenth of the size. Magic, version, lengths and
// checksum are filled in.
func Encode(w io.Writer, h Header, payload []byte) error {
	stored, c, err := compress(payload, h.Compression)
	if err != nil {
		return fmt.Errorf("compress %s: %w", h.Kind, err)
	}

	h.Magic = Magic
	h.Version = Version
	h.Compression = c
	h.PayloadLen = uint64(len(payload))
	h.StoredLen = uint64(len(stored))
	h.Checksum = Checksum(payload)

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Decode validates the artifact in data and returns its header and the
// uncompressed payload. The payload never aliases data unless the artifact
// is stored uncompressed.
func Decode(data []byte, want Kind) (Header, []byte, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, nil, err
	}
	if h.Magic != Magic {
		return h, nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.Kind != want {
		return h, nil, fmt.Errorf("%w: got %s, want %s", ErrInvalidKind, h.Kind, want)
	}

	body := data[HeaderSize:]
	if uint64(len(body)) < h.StoredLen {
		return h, nil, fmt.Errorf("%w: payload %d of %d bytes", ErrTruncated, len(body), h.StoredLen)
	}

	payload, err := decompress(body[:h.StoredLen], h.Compression, h.PayloadLen)
	if err != nil {
		return h, nil, fmt.Errorf("decompress %s: %w", h.Kind, err)
	}

	if sum := Checksum(payload); sum != h.Checksum {
		return h, nil, &ChecksumMismatchError{Expected: h.Checksum, Actual: sum}
	}

	return h, payload, nil
}
