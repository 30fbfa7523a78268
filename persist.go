package vecgraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hupe1980/vecgraph/blobstore"
	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/hnsw"
	"github.com/hupe1980/vecgraph/internal/idmap"
	"github.com/hupe1980/vecgraph/persistence"
	"github.com/hupe1980/vecgraph/resource"
)

const (
	// GraphFileName is the artifact holding the graph.
	GraphFileName = "graph.hnsw"
	// IDMapFileName is the artifact holding the identifier mapping.
	IDMapFileName = "ids.map"
)

type artifacts struct {
	graph []byte
	ids   []byte
}

func (a artifacts) size() int64 { return int64(len(a.graph) + len(a.ids)) }

// encode serializes the current generation. Writers are held off only while
// the raw payloads are captured; compression runs afterwards.
func (ix *Index) encode() (artifacts, error) {
	if ix.closed.Load() {
		return artifacts{}, ErrClosed
	}

	var graphRaw, idsRaw bytes.Buffer
	err := func() error {
		ix.writeGate.Lock()
		defer ix.writeGate.Unlock()

		st := ix.st
		if _, err := st.graph.WriteTo(&graphRaw); err != nil {
			return fmt.Errorf("serialize graph: %w", err)
		}
		if _, err := st.ids.WriteTo(&idsRaw); err != nil {
			return fmt.Errorf("serialize id mapping: %w", err)
		}
		return nil
	}()
	if err != nil {
		return artifacts{}, err
	}

	hdr := persistence.Header{
		Compression: ix.opts.compression,
		Dimension:   uint32(ix.dim),
		Metric:      uint8(ix.metric),
	}

	var out artifacts
	var buf bytes.Buffer
	hdr.Kind = persistence.KindGraph
	if err := persistence.Encode(&buf, hdr, graphRaw.Bytes()); err != nil {
		return artifacts{}, err
	}
	out.graph = bytes.Clone(buf.Bytes())

	buf.Reset()
	hdr.Kind = persistence.KindIDMap
	if err := persistence.Encode(&buf, hdr, idsRaw.Bytes()); err != nil {
		return artifacts{}, err
	}
	out.ids = bytes.Clone(buf.Bytes())

	return out, nil
}

// Save writes the index into dir. Both artifacts are replaced atomically:
// a crash leaves either the previous pair or the new one.
func (ix *Index) Save(ctx context.Context, dir string) error {
	a, err := ix.encode()
	if err == nil {
		rc := ix.opts.resources
		err = persistence.AtomicSaveToDir(ctx, nil, dir,
			persistence.File{Name: GraphFileName, Write: writeThrottled(ctx, a.graph, rc)},
			persistence.File{Name: IDMapFileName, Write: writeThrottled(ctx, a.ids, rc)},
		)
	}
	ix.logger.LogSave(ctx, dir, a.size(), err)
	return err
}

func writeThrottled(ctx context.Context, data []byte, rc *resource.Controller) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := resource.NewRateLimitedWriter(ctx, w, rc).Write(data)
		return err
	}
}

// SaveTo uploads the index to store under prefix. Unlike Save the two blobs
// are not replaced as a unit.
func (ix *Index) SaveTo(ctx context.Context, store blobstore.Store, prefix string) error {
	a, err := ix.encode()
	if err == nil {
		err = ix.opts.resources.WaitWrite(ctx, int(a.size()))
	}
	if err == nil {
		err = blobstore.PutAll(ctx, store, map[string][]byte{
			blobstore.Join(prefix, GraphFileName): a.graph,
			blobstore.Join(prefix, IDMapFileName): a.ids,
		})
	}
	ix.logger.LogSave(ctx, blobstore.Join(prefix, ""), a.size(), err)
	return err
}

// Load reads an index saved with Save. dimension and metric must match the
// saved index.
//
// The auxiliary store is rebuilt from the graph's vectors, so for the cosine
// metric the restored vectors are unit length.
func Load(ctx context.Context, dir string, dimension int, metric distance.Metric, opts ...Option) (*Index, error) {
	ix, err := newIndex(dimension, metric, opts)
	if err != nil {
		return nil, err
	}

	err = func() error {
		gm, err := persistence.Open(filepath.Join(dir, GraphFileName))
		if err != nil {
			return err
		}
		defer gm.Close()

		im, err := persistence.Open(filepath.Join(dir, IDMapFileName))
		if err != nil {
			return err
		}
		defer im.Close()

		if err := ctx.Err(); err != nil {
			return err
		}
		// Everything is decoded into owned structures before the mappings
		// are released.
		return ix.restore(artifacts{graph: gm.Bytes(), ids: im.Bytes()})
	}()
	ix.logger.LogLoad(ctx, dir, ix.lenOrZero(), err)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// LoadFrom reads an index uploaded with SaveTo.
func LoadFrom(ctx context.Context, store blobstore.Store, prefix string, dimension int, metric distance.Metric, opts ...Option) (*Index, error) {
	ix, err := newIndex(dimension, metric, opts)
	if err != nil {
		return nil, err
	}

	graphName := blobstore.Join(prefix, GraphFileName)
	idsName := blobstore.Join(prefix, IDMapFileName)
	blobs, err := blobstore.GetAll(ctx, store, graphName, idsName)
	if err == nil {
		err = ix.restore(artifacts{graph: blobs[graphName], ids: blobs[idsName]})
	}
	ix.logger.LogLoad(ctx, blobstore.Join(prefix, ""), ix.lenOrZero(), err)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) lenOrZero() int {
	if ix.st == nil {
		return 0
	}
	return ix.st.ids.Len()
}

func (ix *Index) checkHeader(name string, h persistence.Header) error {
	if int(h.Dimension) != ix.dim {
		return fmt.Errorf("%s: %w", name, &ErrDimensionMismatch{Expected: ix.dim, Actual: int(h.Dimension)})
	}
	if distance.Metric(h.Metric) != ix.metric {
		return fmt.Errorf("%s: %w", name, &ErrMetricMismatch{Expected: ix.metric, Actual: distance.Metric(h.Metric)})
	}
	return nil
}

// restore decodes both artifacts and installs them as the index state.
func (ix *Index) restore(a artifacts) error {
	gh, graphPayload, err := persistence.Decode(a.graph, persistence.KindGraph)
	if err != nil {
		return fmt.Errorf("%s: %w", GraphFileName, err)
	}
	if err := ix.checkHeader(GraphFileName, gh); err != nil {
		return err
	}
	ih, idsPayload, err := persistence.Decode(a.ids, persistence.KindIDMap)
	if err != nil {
		return fmt.Errorf("%s: %w", IDMapFileName, err)
	}
	if err := ix.checkHeader(IDMapFileName, ih); err != nil {
		return err
	}

	g, err := hnsw.Read(bytes.NewReader(graphPayload), func(o *hnsw.Options) {
		o.Kernel = ix.opts.kernel
		if ix.opts.resources != nil {
			o.Memory = ix.opts.resources
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", GraphFileName, translateError(err))
	}

	st, err := ix.assemble(g, idsPayload)
	if err != nil {
		g.Close()
		return err
	}
	ix.st = st
	return nil
}

func (ix *Index) assemble(g *hnsw.Graph, idsPayload []byte) (*state, error) {
	if g.Dimension() != ix.dim {
		return nil, &ErrDimensionMismatch{Expected: ix.dim, Actual: g.Dimension()}
	}
	if m := g.Options().Metric; m != ix.metric {
		return nil, &ErrMetricMismatch{Expected: ix.metric, Actual: m}
	}

	ids, err := idmap.ReadFrom(bytes.NewReader(idsPayload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", IDMapFileName, err)
	}
	if ids.Next() < g.NextIndex() {
		return nil, fmt.Errorf("%w: mapping allocated %d indices, graph %d", ErrCorruptIndex, ids.Next(), g.NextIndex())
	}

	aux := ix.newAux()
	for id, idx := range ids.Live() {
		v, ok := g.Vector(idx)
		if !ok {
			return nil, fmt.Errorf("%w: id %d points at missing node %d", ErrCorruptIndex, id, idx)
		}
		if aux != nil {
			if err := aux.Put(idx, v); err != nil {
				aux.Clear()
				return nil, err
			}
		}
	}

	return &state{graph: g, ids: ids, aux: aux}, nil
}
