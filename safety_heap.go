package ellex

import "runtime"

func sampleMemoryMBHeap() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc / (1 << 20)
}
