/*
Package tree is the index-aware layer above pkg/kv (spec.md §4.5): one
Tree wraps one collection's primary table (document bytes keyed by
encoded _id) together with zero or more secondary tables, each a
kv.DupSort table mapping an index's encoded key to a primary-key
reference (pkg/keycodec.EncodePrimaryKeyRef).

Every mutating method here runs inside a caller-supplied kv.Tx, so a
document write and all of its index maintenance commit atomically.
Unique-index conflicts are detected before any table is touched for a
given operation, so a failed Insert/Update leaves no partial index
state within that operation (though earlier operations in the same
transaction are not rolled back by this package; that is pkg/moldb's
single-writer transaction's job).
*/
package tree
