//go:build nounsafe

package ellex

import "reflect"

// The default implementation of nodeID uses unsafe.Pointer. If you can't use
// packages importing unsafe, you can build with -tags=nounsafe to select this
// implementation instead at a performance penalty in cache walks.

// nodeID returns the address of the node a CachedStatement wraps.
func nodeID(s CachedStatement) uintptr {
	return reflect.ValueOf(s).Pointer()
}
