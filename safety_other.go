//go:build !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd && !solaris

package ellex

// sampleMemoryMB estimates the process's memory footprint from the Go heap
// on platforms without rusage.
func sampleMemoryMB() uint64 {
	return sampleMemoryMBHeap()
}
