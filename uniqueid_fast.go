//go:build !nounsafe

package ellex

import "unsafe"

// Extracting the node's address through unsafe is considerably faster than
// reflect, which matters because cache walks touch every site in a tree.

// nodeID returns the address of the node a CachedStatement wraps. Every
// concrete CachedStatement is a pointer type, so the interface's data word
// is the node's address.
func nodeID(s CachedStatement) uintptr {
	return uintptr((*[2]unsafe.Pointer)(unsafe.Pointer(&s))[1])
}
