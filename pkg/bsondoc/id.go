package bsondoc

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the reserved primary-key field every document must carry.
const IDField = "_id"

// ID returns the _id field of doc. ok is false if the field is absent.
func ID(doc bsoncore.Document) (bsoncore.Value, bool) {
	v, err := doc.LookupErr(IDField)
	if err != nil {
		return bsoncore.Value{}, false
	}
	return v, true
}

// EnsureID returns doc unchanged if it already carries an _id, or a
// copy with a freshly generated primitive.ObjectID prepended as _id
// otherwise, matching MongoDB's own convention of a leading _id.
func EnsureID(doc bsoncore.Document) (bsoncore.Document, error) {
	if _, ok := ID(doc); ok {
		return doc, nil
	}
	oid := primitive.NewObjectID()
	builder := bsoncore.NewDocumentBuilder()
	builder.AppendObjectID(IDField, oid)
	elems, err := doc.Elements()
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		appendElement(builder, e)
	}
	return builder.Build(), nil
}

// IsFastPathID reports whether v is a primitive.ObjectID, the common
// case keycodec encodes with a fixed 12-byte representation. Any other
// _id type takes the slow path: keycodec's general order-preserving
// value encoding, with no minimal document built around it.
func IsFastPathID(v bsoncore.Value) bool {
	return v.Type == bsontype.ObjectID
}

func appendElement(b *bsoncore.DocumentBuilder, e bsoncore.Element) {
	key := e.Key()
	v := e.Value()
	b.AppendValue(key, v)
}

// Clone returns an independent copy of doc's underlying bytes, so
// callers may retain it past the lifetime of a cursor-borrowed slice.
func Clone(doc bsoncore.Document) bsoncore.Document {
	out := make([]byte, len(doc))
	copy(out, doc)
	return out
}

// Merge returns a new document with every top-level field of patch
// overwriting the same-named field of base, and fields unique to
// patch appended. Field order of base is preserved; new fields from
// patch are appended in patch's order. Used by the update engine's
// path setters ($set, $inc, $push, $pull, $unset and $rename all write
// through them).
func Merge(base, patch bsoncore.Document) (bsoncore.Document, error) {
	baseElems, err := base.Elements()
	if err != nil {
		return nil, err
	}
	patchElems, err := patch.Elements()
	if err != nil {
		return nil, err
	}
	patchByKey := make(map[string]bsoncore.Element, len(patchElems))
	for _, e := range patchElems {
		patchByKey[e.Key()] = e
	}

	builder := bsoncore.NewDocumentBuilder()
	seen := make(map[string]bool, len(baseElems))
	for _, e := range baseElems {
		if pe, ok := patchByKey[e.Key()]; ok {
			appendElement(builder, pe)
		} else {
			appendElement(builder, e)
		}
		seen[e.Key()] = true
	}
	for _, e := range patchElems {
		if !seen[e.Key()] {
			appendElement(builder, e)
		}
	}
	return builder.Build(), nil
}

// WithoutFields returns a copy of doc with the named top-level fields
// removed. Order of the remaining fields is preserved.
func WithoutFields(doc bsoncore.Document, fields map[string]bool) (bsoncore.Document, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, err
	}
	builder := bsoncore.NewDocumentBuilder()
	for _, e := range elems {
		if fields[e.Key()] {
			continue
		}
		appendElement(builder, e)
	}
	return builder.Build(), nil
}
