package bsondoc

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// Validate checks that doc is well-formed BSON, per spec.md §4.6's
// requirement that InsertOne and ReplaceOne reject malformed
// documents with INVALID_DOCUMENT before any tree mutation happens.
func Validate(doc bsoncore.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("malformed document: %w", err)
	}
	return nil
}
