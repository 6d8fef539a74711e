/*
Package kv defines the abstract transactional ordered key/value store
that the rest of moldb is built on (spec.md §6, "Storage engine
interface consumed"). Everything above this package — the Tree Layer,
the Collection Engine, the Query Executor — is written only against
these interfaces; pkg/kv/boltkv is the one production implementation,
backed by go.etcd.io/bbolt.

# Architecture

	┌────────────────────── pkg/tree, pkg/collection ─────────────────────┐
	│                         (index-aware operations)                     │
	└──────────────────────────────────┬───────────────────────────────────┘
	                                    │ kv.Env / kv.Tx / kv.Cursor
	┌───────────────────────────────────▼───────────────────────────────────┐
	│                              pkg/kv (interfaces)                      │
	└──────────────────────────────────┬───────────────────────────────────┘
	                                    │
	┌───────────────────────────────────▼───────────────────────────────────┐
	│                         pkg/kv/boltkv (bbolt)                        │
	│   Env   -> *bolt.DB                                                   │
	│   Tx    -> *bolt.Tx                                                   │
	│   Table -> *bolt.Bucket, addressed by name                            │
	│   Cursor-> *bolt.Cursor, with DupSort emulated by composite keys      │
	└─────────────────────────────────────────────────────────────────────┘

# Tables and DupSort

bbolt buckets hold one value per key. Secondary indexes need many
values per key (spec.md's "duplicate-sorted tree"). Tables created
with the DupSort flag store each pair as one composite key
(indexKey || primaryKey || uint32be(len(indexKey))) with an empty
value. The boltkv cursor splits every composite key back into its
two parts, and Table.PutDup/DeleteDup add and remove single pairs,
so callers still see a sequence of
(indexKey, primaryKey) pairs ordered first by indexKey then by
primaryKey — "byte-wise is sufficient since values are compact
primary keys" per spec.md §4.5.

# Comparator

bbolt does not support pluggable key comparators; bucket keys are
always ordered by raw byte comparison. Callers that need BSON
collation order (pkg/keycodec) therefore encode keys with an
order-preserving byte encoding up front, rather than registering a
comparator with this package. See pkg/keycodec's doc comment for the
encoding itself.
*/
package kv
