package collate

import (
	"bytes"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// compareDocLike compares two embedded documents or two arrays
// field-by-field (or element-by-element): shorter sorts before
// longer when one is a strict prefix of the other, otherwise the
// first differing field/element, compared recursively via Compare,
// decides. Field names must match positionally for documents to
// compare as equal on that field; a name mismatch falls back to
// comparing the two field names as strings.
func compareDocLike(a, b bsoncore.Value) int {
	da, _, err := bsoncore.ReadDocument(a.Data)
	if err != nil {
		return bytes.Compare(a.Data, b.Data)
	}
	db, _, err := bsoncore.ReadDocument(b.Data)
	if err != nil {
		return bytes.Compare(a.Data, b.Data)
	}
	ea, err := da.Elements()
	if err != nil {
		return bytes.Compare(a.Data, b.Data)
	}
	eb, err := db.Elements()
	if err != nil {
		return bytes.Compare(a.Data, b.Data)
	}
	n := len(ea)
	if len(eb) < n {
		n = len(eb)
	}
	for i := 0; i < n; i++ {
		if ea[i].Key() != eb[i].Key() {
			if ea[i].Key() < eb[i].Key() {
				return -1
			}
			return 1
		}
		if c := Compare(ea[i].Value(), eb[i].Value()); c != 0 {
			return c
		}
	}
	switch {
	case len(ea) < len(eb):
		return -1
	case len(ea) > len(eb):
		return 1
	default:
		return 0
	}
}
