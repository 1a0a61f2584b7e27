//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package ellex

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// sampleMemoryMB estimates the process's memory footprint from rusage.
func sampleMemoryMB() uint64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return sampleMemoryMBHeap()
	}
	rss := uint64(ru.Maxrss)
	// Maxrss is bytes on darwin and kilobytes elsewhere.
	if runtime.GOOS == "darwin" {
		return rss / (1 << 20)
	}
	return rss / (1 << 10)
}
