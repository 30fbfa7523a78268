// Package distance provides the distance kernels and metric spaces used by
// the index.
//
// Two interchangeable kernel sets exist: a scalar reference implementation
// and an 8-way unrolled implementation that the compiler vectorizes well on
// AVX2/NEON capable CPUs. The active set is chosen once at package init and
// can be overridden with the VECGRAPH_KERNEL environment variable
// ("scalar" or "unrolled") or per index through WithKernel.
//
// # Supported Metrics
//
//   - MetricEuclidean: L2 distance (lower is better)
//   - MetricCosine: 1 - cosine similarity on normalized vectors
//   - MetricDot: negated inner product
//   - MetricManhattan: L1 distance (lower is better)
//
// # Usage
//
//	space, _ := distance.NewSpace(distance.MetricCosine, distance.KernelAuto)
//	q := space.Prepare(query)
//	d := space.Distance(q, space.Prepare(v))
//	score := space.Score(d)
package distance
