/*
Package catalog is moldb's schema catalog: the reserved table
recording which collections exist and which secondary indexes each
one carries, stored as ordinary bsoncore documents in a table named
"schema" (spec.md §4.6's "Schema Catalog").

The catalog is itself just another primary kv.Table, read and written
inside the same transactions as document data, so a CreateIndex or a
DropCollection is as atomic as any other write.
*/
package catalog
