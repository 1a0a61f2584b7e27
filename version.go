package ellex

import "sync/atomic"

// cacheVersion is the only global in the package. Bumping it lazily
// invalidates every function-call cache: entries remember the version they
// were filled at and miss when it no longer matches.
var cacheVersion atomic.Uint64

// CacheVersion returns the current global cache version.
func CacheVersion() uint64 { return cacheVersion.Load() }

// InvalidateAllCaches bumps the global cache version, invalidating every
// cached function call everywhere. Call it after redefining functions.
func InvalidateAllCaches() { cacheVersion.Add(1) }
