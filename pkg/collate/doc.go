/*
Package collate implements moldb's total order over BSON values,
matching MongoDB's own collation/type-precedence rules (spec.md §4.1):

	MinKey < Null/Undefined < Numbers < String/Symbol < Document <
	Array < Binary < ObjectId < Bool < DateTime < Timestamp < Regex < MaxKey

Within the Numbers class, int32/int64/double/decimal128 compare by
mathematical value regardless of which BSON type carries them, so
Compare(int32(3), double(3.0)) == 0.

Compare is the single source of truth both for query predicate
evaluation (pkg/query) and for the byte encoding pkg/keycodec produces
for index keys: keycodec's encoding is order-preserving specifically so
that bbolt's native byte-wise ordering agrees with Compare.
*/
package collate
