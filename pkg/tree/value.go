package tree

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func objectIDValue(oid primitive.ObjectID) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendObjectID("v", oid).Build()
	v, _ := doc.LookupErr("v")
	return v
}
