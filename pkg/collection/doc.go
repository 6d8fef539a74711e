/*
Package collection is the Collection Engine (spec.md §4.6): it owns
the schema catalog, the lifecycle of each collection's Tree handle,
and the document-identity-level CRUD operations (insert, replace,
delete, and index maintenance, all addressed by _id). Filter
evaluation and index selection for arbitrary queries are the Query
Executor's job (pkg/query); pkg/moldb composes the two so that
UpdateMany/DeleteMany can resolve a filter to a set of ids and then
mutate each one transactionally through this package.

# Lifecycle

A collection moves through four states as spec.md §4.6 describes:

	absent -> open -> cached -> destroyed

"absent" means no catalog entry exists. "open" is a collection whose
catalog entry and backing tables exist but whose Tree handle has not
yet been constructed in this process. "cached" is an open collection
whose Tree handle (with its parsed IndexDescriptor list) is held in
the Engine's handle cache, avoiding a catalog re-read on every
operation. "destroyed" is a collection whose DropCollection has run;
its handle is evicted and its tables removed.

The handle cache is an fxcache.Cache with no TTL or eviction pressure
configured by default (collections are expected to be few and
long-lived compared to documents), reusing the same generic cache the
rest of moldb exposes to embedders.
*/
package collection
