/*
Package fxcache is a generic, capacity- and TTL-bounded cache used
both internally (pkg/collection's cache of per-collection Tree
handles) and as a general-purpose exported type for callers embedding moldb
(spec.md §4.4).

It generalizes the hash-map + doubly-linked-list design of the
Krishna8167/tempuscache reference implementation: a map gives O(1)
lookup, a container/list gives O(1) reordering and eviction-candidate
selection. Unlike that reference, which is LRU-only and string-keyed,
fxcache supports three eviction policies (FIFO, LRU, Random), three
key-size accounting modes used to estimate memory footprint (fixed
12-byte keys such as primitive.ObjectID, fixed 8-byte keys such as an
int64 catalog id, and variable-length keys), an optional byte-size cap
in addition to an item-count cap, and an on-evict callback.

Expiration is lazy (checked on Get) and active (an amortized sweep
triggered from Set and Insert, "maybe_scan_and_clean", rather than a background
goroutine, since moldb has no implicit janitor lifecycle to manage).
*/
package fxcache
