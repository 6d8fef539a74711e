/*
Package query is the Query Executor (spec.md §4.7): filter evaluation
over a bsoncore.Document, index selection by maximal equality prefix,
and a Cursor abstraction over either an index range scan or a full
primary-tree scan.

# Filter syntax

A filter is itself a bsoncore.Document. Each top-level field is one of:

  - a plain value, matched by equality (pkg/collate.Compare == 0)
  - an operator document, e.g. {"age": {"$gte": 18, "$lt": 65}}

Supported operators: $eq, $ne, $gt, $gte, $lt, $lte, $in. All fields
present in a filter are ANDed together; there is no $or/$and
combinator (spec.md's Non-goals exclude a general query-expression
language).

# Index selection

Find walks a collection's declared indexes and picks whichever one
covers the longest prefix of filter fields using only equality
constraints (operator or range constraints break the prefix), since a
DupSort index scan can only narrow a contiguous encoded-key range on
equality-constrained leading fields. With no usable index, Find falls
back to a full primary-tree scan evaluating the filter against every
document.
*/
package query
