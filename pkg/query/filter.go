package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/cuemby/moldb/pkg/bsondoc"
	"github.com/cuemby/moldb/pkg/collate"
)

// Matches reports whether doc satisfies every field constraint in filter.
func Matches(doc bsoncore.Document, filter bsoncore.Document) bool {
	elems, err := filter.Elements()
	if err != nil {
		return false
	}
	for _, e := range elems {
		if !matchesField(doc, e.Key(), e.Value()) {
			return false
		}
	}
	return true
}

func matchesField(doc bsoncore.Document, path string, constraint bsoncore.Value) bool {
	actual, ok := bsondoc.Lookup(doc, path)
	if !ok {
		actual = bsoncore.Value{Type: bsontype.Null}
	}
	if constraint.Type == bsontype.EmbeddedDocument && isOperatorDocument(constraint) {
		return matchesOperators(actual, constraint)
	}
	return collate.Compare(actual, constraint) == 0
}

func isOperatorDocument(v bsoncore.Value) bool {
	sub, _, err := bsoncore.ReadDocument(v.Data)
	if err != nil {
		return false
	}
	elems, err := sub.Elements()
	if err != nil || len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		if !strings.HasPrefix(e.Key(), "$") {
			return false
		}
	}
	return true
}

func matchesOperators(actual bsoncore.Value, opDoc bsoncore.Value) bool {
	sub, _, err := bsoncore.ReadDocument(opDoc.Data)
	if err != nil {
		return false
	}
	elems, err := sub.Elements()
	if err != nil {
		return false
	}
	for _, e := range elems {
		if !matchesOperator(actual, e.Key(), e.Value()) {
			return false
		}
	}
	return true
}

func matchesOperator(actual bsoncore.Value, op string, operand bsoncore.Value) bool {
	switch op {
	case "$eq":
		return collate.Compare(actual, operand) == 0
	case "$ne":
		return collate.Compare(actual, operand) != 0
	case "$gt":
		return collate.Compare(actual, operand) > 0
	case "$gte":
		return collate.Compare(actual, operand) >= 0
	case "$lt":
		return collate.Compare(actual, operand) < 0
	case "$lte":
		return collate.Compare(actual, operand) <= 0
	case "$in":
		return matchesIn(actual, operand)
	default:
		return false
	}
}

func matchesIn(actual bsoncore.Value, operand bsoncore.Value) bool {
	if operand.Type != bsontype.Array {
		return false
	}
	arr, _, err := bsoncore.ReadDocument(operand.Data)
	if err != nil {
		return false
	}
	elems, err := arr.Elements()
	if err != nil {
		return false
	}
	for _, e := range elems {
		if collate.Compare(actual, e.Value()) == 0 {
			return true
		}
	}
	return false
}

// equalityConstraint returns the value path must equal for filter to
// match, if filter constrains path with a plain equality (including
// an explicit $eq), and ok=false otherwise (missing, or a non-equality
// operator such as $gt).
func equalityConstraint(filter bsoncore.Document, path string) (bsoncore.Value, bool) {
	v, err := filter.LookupErr(path)
	if err != nil {
		return bsoncore.Value{}, false
	}
	if v.Type == bsontype.EmbeddedDocument && isOperatorDocument(v) {
		sub, _, _ := bsoncore.ReadDocument(v.Data)
		elems, _ := sub.Elements()
		if len(elems) == 1 && elems[0].Key() == "$eq" {
			return elems[0].Value(), true
		}
		return bsoncore.Value{}, false
	}
	return v, true
}
