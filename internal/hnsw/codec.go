package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/vecgraph/distance"
)

// graphHeader carries the parameters and global state of a graph (56 bytes).
type graphHeader struct {
	Dimension      uint32
	Metric         uint8
	Mode           uint8
	Layers         uint16
	M              uint32
	EFConstruction uint32
	MaxElements    uint32
	Alpha          float32
	RNGState       uint64
	Entry          uint64
	NextIndex      uint32
	_              uint32
	Count          uint64
}

// WriteTo writes the logical contents of the graph: parameters, generator
// state, entry point, vectors and every layer's adjacency with cached
// distances. Concurrent inserts must be excluded by the caller.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	hdr := graphHeader{
		Dimension:      uint32(g.opts.Dimension),
		Metric:         uint8(g.opts.Metric),
		Mode:           uint8(g.Mode()),
		Layers:         uint16(g.numLayers()),
		M:              uint32(g.opts.M),
		EFConstruction: uint32(g.opts.EFConstruction),
		MaxElements:    uint32(g.opts.MaxElements),
		Alpha:          g.opts.Alpha,
		RNGState:       g.rng.Load(),
		Entry:          g.entry.Load(),
		NextIndex:      g.nextIdx.Load(),
		Count:          uint64(g.count.Load()),
	}
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return cw.n, err
	}
	if _, err := g.vectors.WriteTo(cw); err != nil {
		return cw.n, err
	}

	var scratch []byte
	for level := 0; level < int(hdr.Layers); level++ {
		layer := g.layer(level)
		scratch = binary.LittleEndian.AppendUint32(scratch[:0], uint32(layer.Nodes()))
		if _, err := cw.Write(scratch); err != nil {
			return cw.n, err
		}

		var werr error
		layer.forEach(func(node NodeIndex, list []Neighbor) bool {
			scratch = binary.LittleEndian.AppendUint32(scratch[:0], node)
			scratch = binary.LittleEndian.AppendUint32(scratch, uint32(len(list)))
			for _, n := range list {
				scratch = binary.LittleEndian.AppendUint32(scratch, n.Node)
				scratch = binary.LittleEndian.AppendUint32(scratch, math.Float32bits(n.Dist))
			}
			_, werr = cw.Write(scratch)
			return werr == nil
		})
		if werr != nil {
			return cw.n, werr
		}
	}

	return cw.n, bw.Flush()
}

// Read decodes a graph written by WriteTo into a new, fully owned graph.
// optFns may override runtime-only options such as Kernel and Memory.
func Read(r io.Reader, optFns ...func(o *Options)) (_ *Graph, err error) {
	br := bufio.NewReader(r)

	var hdr graphHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read graph header: %w", err)
	}
	if hdr.Layers == 0 || hdr.Layers > MaxLevel+1 {
		return nil, fmt.Errorf("%w: %d layers", ErrCorruptGraph, hdr.Layers)
	}

	opts := make([]func(o *Options), 0, len(optFns)+1)
	opts = append(opts, func(o *Options) {
		o.Dimension = int(hdr.Dimension)
		o.Metric = distance.Metric(hdr.Metric)
		o.M = int(hdr.M)
		o.EFConstruction = int(hdr.EFConstruction)
		o.MaxElements = int(hdr.MaxElements)
		o.Alpha = hdr.Alpha
		o.Seed = hdr.RNGState
	})
	opts = append(opts, optFns...)
	g, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = g.Close()
		}
	}()

	if _, err := g.vectors.ReadFrom(br); err != nil {
		return nil, fmt.Errorf("read graph vectors: %w", err)
	}
	slots := g.vectors.Len()

	var buf [8]byte
	readU32 := func() (uint32, error) {
		if _, err := io.ReadFull(br, buf[:4]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buf[:4]), nil
	}

	for level := 0; level < int(hdr.Layers); level++ {
		if level > 0 {
			g.layers = append(g.layers, newLayer(level, 16))
		}
		layer := g.layers[level]

		nodes, err := readU32()
		if err != nil {
			return nil, fmt.Errorf("read layer %d: %w", level, err)
		}
		for range nodes {
			node, err := readU32()
			if err != nil {
				return nil, fmt.Errorf("read layer %d: %w", level, err)
			}
			n, err := readU32()
			if err != nil {
				return nil, fmt.Errorf("read layer %d: %w", level, err)
			}
			if int(node) >= slots || int(n) > 2*g.capFor(level)+1 {
				return nil, fmt.Errorf("%w: node %d with %d edges at layer %d", ErrCorruptGraph, node, n, level)
			}
			list := make([]Neighbor, n)
			for i := range list {
				if _, err := io.ReadFull(br, buf[:]); err != nil {
					return nil, fmt.Errorf("read layer %d: %w", level, err)
				}
				list[i] = Neighbor{
					Node: binary.LittleEndian.Uint32(buf[:4]),
					Dist: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
				}
				if int(list[i].Node) >= slots {
					return nil, fmt.Errorf("%w: edge to %d at layer %d", ErrCorruptGraph, list[i].Node, level)
				}
			}
			if !layer.Add(node) {
				return nil, fmt.Errorf("%w: duplicate node %d at layer %d", ErrCorruptGraph, node, level)
			}
			layer.SetNeighbors(node, list)
		}
	}

	if node, level, ok := unpackEntry(hdr.Entry); ok {
		if level >= int(hdr.Layers) || !g.layers[level].Has(node) {
			return nil, fmt.Errorf("%w: entry point %d not at level %d", ErrCorruptGraph, node, level)
		}
	}
	g.entry.Store(hdr.Entry)
	g.nextIdx.Store(hdr.NextIndex)
	g.count.Store(int64(hdr.Count))
	g.mode.Store(int32(hdr.Mode))
	g.rng.Store(hdr.RNGState)
	return g, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
