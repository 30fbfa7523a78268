//go:build arm64

package distance

import "golang.org/x/sys/cpu"

func init() {
	hasWideSIMD = cpu.ARM64.HasASIMD
	initKernels()
}
