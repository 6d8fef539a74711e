/*
Package moldb is the top-level embedded document database (spec.md
§6's "Public API exposed"): it wires pkg/catalog, pkg/collection,
pkg/query, and pkg/update on top of one pkg/kv/boltkv environment,
adding the single process-wide writer lock spec.md §4.8/§5 describes.

A *Database is opened against one directory (one bbolt file within
it) and exposes collection lifecycle, CRUD, and index operations.
Every write takes db.mu for the duration of its transaction; reads
run their own bbolt read transaction and never touch db.mu, matching
the "readers may proceed under a read transaction without the mutex"
rule of spec.md §5.
*/
package moldb
