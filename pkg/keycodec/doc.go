/*
Package keycodec turns BSON values and index field specifications into
the order-preserving byte strings moldb actually stores as bbolt keys
(spec.md §4.2). bbolt orders bucket keys by raw byte comparison with
no pluggable comparator, so every encoded key must already sort the
way pkg/collate.Compare says its source value should.

# Encoding shape

Each value is encoded as one type tag byte — chosen so that tag byte
order matches pkg/collate's type-precedence classes — followed by a
type-specific, self-delimiting payload:

	tag 0x01  null / missing           (no payload)
	tag 0x02  number                   8-byte order-preserving float64
	tag 0x03  string / symbol          escaped bytes + 0x00 0x00 terminator
	tag 0x04  embedded document        field entries + terminator
	tag 0x05  array                    element entries + terminator
	tag 0x06  binary                   subtype byte + escaped bytes + terminator
	tag 0x07  ObjectId                 12 raw bytes (already order-preserving)
	tag 0x08  bool                     1 byte, 0x00 or 0x01
	tag 0x09  datetime                 8-byte order-preserving int64 millis
	tag 0xFE  everything else          raw BSON bytes (stable, not cross-type safe)

A compound index key concatenates one encoded value per indexed field,
in field order; because the prefix byte is constant width and the
payload is self-delimiting, concatenation itself stays order-preserving.

# Descending fields

A field declared descending in an index has its entire ascending
encoding bit-flipped (XOR 0xFF on every byte) before being appended.
Flipping preserves self-delimiting structure (terminators flip
consistently with their payload) while reversing comparison order, so
no separate "descending" tag space is needed — this was the Open
Question left by spec.md §9 about where sort direction lives, resolved
at the encoding layer rather than with a negating comparator.

# Primary key references

Secondary index entries need a compact reference back to a document's
primary key. When _id is an ObjectId (the common case) the reference
is the 12 raw bytes; moldb calls this the fast path. Any other _id
type falls back to this package's general value encoding ("the slow
path"), which is larger but still unambiguous and self-delimiting.
*/
package keycodec
