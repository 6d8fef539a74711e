package keycodec

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cuemby/moldb/pkg/bsondoc"
)

// Field names one path of a compound index and its sort direction.
type Field struct {
	Path       string
	Descending bool
}

// EncodeIndexKey produces the order-preserving composite key for doc
// under fields, in field order. A field whose path is absent from doc
// encodes as the Null-class tag, matching spec.md's "missing compares
// as null for indexing purposes" rule.
func EncodeIndexKey(fields []Field, doc bsoncore.Document) []byte {
	var buf []byte
	for _, f := range fields {
		val, ok := bsondoc.Lookup(doc, f.Path)
		if !ok {
			val = missingValue()
		}
		buf = AppendValue(buf, val, f.Descending)
	}
	return buf
}

func missingValue() bsoncore.Value {
	return bsoncore.Value{Type: bsontype.Null}
}

// EncodePrimaryKeyRef encodes doc's _id as a secondary index's
// back-reference to its primary-tree entry. ObjectId ids take the
// 12-byte fast path; everything else uses the general encoding.
func EncodePrimaryKeyRef(id bsoncore.Value) []byte {
	if oid, ok := id.ObjectIDOK(); ok {
		return oid[:]
	}
	return AppendValue(nil, id, false)
}

// DecodePrimaryKeyRefObjectID recovers an ObjectId from a reference
// produced by EncodePrimaryKeyRef's fast path. ok is false if ref is
// not exactly 12 bytes (i.e. the slow path was used).
func DecodePrimaryKeyRefObjectID(ref []byte) (primitive.ObjectID, bool) {
	if len(ref) != 12 {
		return primitive.ObjectID{}, false
	}
	var oid primitive.ObjectID
	copy(oid[:], ref)
	return oid, true
}
