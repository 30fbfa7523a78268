//go:build !amd64 && !arm64

package distance

func init() {
	initKernels()
}
