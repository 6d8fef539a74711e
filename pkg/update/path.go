package update

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/cuemby/moldb/pkg/bsondoc"
)

func singleField(key string, val bsoncore.Value) bsoncore.Document {
	return bsoncore.NewDocumentBuilder().AppendValue(key, val).Build()
}

func singleFieldDoc(key string, sub bsoncore.Document) bsoncore.Document {
	return bsoncore.NewDocumentBuilder().AppendDocument(key, sub).Build()
}

func subDocumentAt(doc bsoncore.Document, key string) bsoncore.Document {
	v, err := doc.LookupErr(key)
	if err != nil || v.Type != bsontype.EmbeddedDocument {
		return bsoncore.NewDocumentBuilder().Build()
	}
	sub, _, err := bsoncore.ReadDocument(v.Data)
	if err != nil {
		return bsoncore.NewDocumentBuilder().Build()
	}
	return sub
}

// setAtPath sets the value found by walking segments, creating any
// missing intermediate embedded documents along the way.
func setAtPath(doc bsoncore.Document, segments []string, newVal bsoncore.Value) (bsoncore.Document, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("update: empty field path")
	}
	if len(segments) == 1 {
		return bsondoc.Merge(doc, singleField(segments[0], newVal))
	}
	sub := subDocumentAt(doc, segments[0])
	newSub, err := setAtPath(sub, segments[1:], newVal)
	if err != nil {
		return nil, err
	}
	return bsondoc.Merge(doc, singleFieldDoc(segments[0], newSub))
}

// unsetAtPath removes the field found by walking segments. Removing
// an already-absent path is not an error; it returns doc unchanged.
func unsetAtPath(doc bsoncore.Document, segments []string) (bsoncore.Document, error) {
	if len(segments) == 0 {
		return doc, nil
	}
	if len(segments) == 1 {
		return bsondoc.WithoutFields(doc, map[string]bool{segments[0]: true})
	}
	v, err := doc.LookupErr(segments[0])
	if err != nil || v.Type != bsontype.EmbeddedDocument {
		return doc, nil
	}
	sub, _, err := bsoncore.ReadDocument(v.Data)
	if err != nil {
		return doc, nil
	}
	newSub, err := unsetAtPath(sub, segments[1:])
	if err != nil {
		return nil, err
	}
	return bsondoc.Merge(doc, singleFieldDoc(segments[0], newSub))
}
