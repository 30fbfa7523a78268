package distance

import (
	"fmt"
	"os"
	"strings"
)

// Kernel selects the implementation of the low-level vector loops.
type Kernel uint8

const (
	// KernelAuto picks the unrolled kernel when the CPU has wide SIMD units.
	KernelAuto Kernel = iota
	// KernelScalar is the reference implementation.
	KernelScalar
	// KernelUnrolled processes eight lanes per iteration.
	KernelUnrolled
)

func (k Kernel) String() string {
	switch k {
	case KernelAuto:
		return "auto"
	case KernelScalar:
		return "scalar"
	case KernelUnrolled:
		return "unrolled"
	default:
		return fmt.Sprintf("Kernel(%d)", k)
	}
}

// ParseKernel parses a kernel name.
func ParseKernel(s string) (Kernel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KernelAuto, true
	case "scalar", "generic":
		return KernelScalar, true
	case "unrolled", "simd":
		return KernelUnrolled, true
	default:
		return KernelAuto, false
	}
}

type kernels struct {
	kind      Kernel
	dot       Func
	squaredL2 Func
	l1        Func
}

var (
	scalarKernels   = kernels{kind: KernelScalar, dot: dotScalar, squaredL2: squaredL2Scalar, l1: l1Scalar}
	unrolledKernels = kernels{kind: KernelUnrolled, dot: dotUnrolled, squaredL2: squaredL2Unrolled, l1: l1Unrolled}

	// hasWideSIMD is set by the platform-specific init.
	hasWideSIMD bool

	active = scalarKernels
)

func initKernels() {
	if override := os.Getenv("VECGRAPH_KERNEL"); override != "" {
		if k, ok := ParseKernel(override); ok && k != KernelAuto {
			active = kernelsFor(k)
			return
		}
	}
	active = kernelsFor(KernelAuto)
}

func kernelsFor(k Kernel) kernels {
	switch k {
	case KernelScalar:
		return scalarKernels
	case KernelUnrolled:
		return unrolledKernels
	default:
		if hasWideSIMD {
			return unrolledKernels
		}
		return scalarKernels
	}
}

// ActiveKernel returns the process-wide kernel used by the package-level
// functions.
func ActiveKernel() Kernel {
	return active.kind
}

func dotScalar(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

func squaredL2Scalar(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}
	return ret
}

func l1Scalar(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		ret += d
	}
	return ret
}

func dotUnrolled(a, b []float32) float32 {
	n := len(a)
	b = b[:n]
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3) + (s4 + s5) + (s6 + s7)
}

func squaredL2Unrolled(a, b []float32) float32 {
	n := len(a)
	b = b[:n]
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3) + (s4 + s5) + (s6 + s7)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func l1Unrolled(a, b []float32) float32 {
	n := len(a)
	b = b[:n]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += abs32(a[i]-b[i]) + abs32(a[i+4]-b[i+4])
		s1 += abs32(a[i+1]-b[i+1]) + abs32(a[i+5]-b[i+5])
		s2 += abs32(a[i+2]-b[i+2]) + abs32(a[i+6]-b[i+6])
		s3 += abs32(a[i+3]-b[i+3]) + abs32(a[i+7]-b[i+7])
	}
	for ; i < n; i++ {
		s0 += abs32(a[i] - b[i])
	}
	return (s0 + s1) + (s2 + s3)
}
