package update

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/cuemby/moldb/pkg/bsondoc"
	"github.com/cuemby/moldb/pkg/collate"
	"github.com/cuemby/moldb/pkg/dberrors"
)

// IsOperatorSpec reports whether spec is non-empty and its top-level
// keys are all "$"-prefixed ("$set", "$inc", ...) rather than a plain
// replacement document. A document mixing "$"-prefixed and plain keys
// is a replacement document; an unknown "$" key is rejected by Apply,
// not here.
func IsOperatorSpec(spec bsoncore.Document) bool {
	elems, err := spec.Elements()
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

// order is the fixed dispatch order spec.md §4.3 requires: later
// operators in an update spec observe earlier operators' effects.
var order = []string{"$set", "$unset", "$inc", "$push", "$pull", "$rename"}

// Apply runs every operator present in spec against doc, in the fixed
// order above, and returns the resulting document. Unknown top-level
// keys return an UPDATE_OPERATOR error.
func Apply(doc bsoncore.Document, spec bsoncore.Document) (bsoncore.Document, error) {
	const op = "update.Apply"
	elems, err := spec.Elements()
	if err != nil {
		return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	bodies := make(map[string]bsoncore.Document, len(elems))
	for _, e := range elems {
		if !isKnownOperator(e.Key()) {
			return nil, dberrors.Wrap(op, dberrors.UpdateOperator,
				fmt.Errorf("unknown update operator %q", e.Key()))
		}
		if e.Value().Type != bsontype.EmbeddedDocument {
			return nil, dberrors.Wrap(op, dberrors.UpdateOperator,
				fmt.Errorf("operator %q requires a document operand", e.Key()))
		}
		sub, _, err := bsoncore.ReadDocument(e.Value().Data)
		if err != nil {
			return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
		}
		bodies[e.Key()] = sub
	}

	cur := doc
	var applyErr error
	for _, opName := range order {
		body, present := bodies[opName]
		if !present {
			continue
		}
		switch opName {
		case "$set":
			cur, applyErr = Set(cur, body)
		case "$unset":
			cur, applyErr = Unset(cur, body)
		case "$inc":
			cur, applyErr = Inc(cur, body)
		case "$push":
			cur, applyErr = Push(cur, body)
		case "$pull":
			cur, applyErr = Pull(cur, body)
		case "$rename":
			cur, applyErr = Rename(cur, body)
		}
		if applyErr != nil {
			return nil, dberrors.Wrap(op, dberrors.UpdateOperator, applyErr)
		}
	}
	return cur, nil
}

func isKnownOperator(key string) bool {
	for _, k := range order {
		if k == key {
			return true
		}
	}
	return false
}

// Set applies a $set body: {"a.b": 1, "c": "x"} to doc.
func Set(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		cur, err = setAtPath(cur, bsondoc.SplitPath(e.Key()), e.Value())
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Unset applies a $unset body: {"a.b": "", "c": ""} to doc; values in
// body are ignored, matching MongoDB's own $unset semantics.
func Unset(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		cur, err = unsetAtPath(cur, bsondoc.SplitPath(e.Key()))
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Inc applies a $inc body: {"a": 1, "b.c": -2} to doc. A missing
// field is treated as 0; incrementing a non-numeric existing field is
// an error.
func Inc(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		delta := e.Value()
		if !isNumber(delta.Type) {
			return nil, fmt.Errorf("$inc requires a numeric operand for %q", e.Key())
		}
		segments := bsondoc.SplitPath(e.Key())
		existing, ok := bsondoc.Lookup(cur, e.Key())
		var sum bsoncore.Value
		if !ok {
			sum = delta
		} else {
			if !isNumber(existing.Type) {
				return nil, fmt.Errorf("$inc target %q is not numeric", e.Key())
			}
			sum = addNumbers(existing, delta)
		}
		cur, err = setAtPath(cur, segments, sum)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func isNumber(t bsontype.Type) bool {
	switch t {
	case bsontype.Int32, bsontype.Int64, bsontype.Double, bsontype.Decimal128:
		return true
	default:
		return false
	}
}

// addNumbers sums two Number-class values. Double or Decimal128 on
// either side widens the result to Double. Otherwise, if both operands
// are Int32 the result stays Int32; if either is Int64 it widens to
// Int64.
func addNumbers(a, b bsoncore.Value) bsoncore.Value {
	if a.Type == bsontype.Double || b.Type == bsontype.Double || a.Type == bsontype.Decimal128 || b.Type == bsontype.Decimal128 {
		fa, fb := asFloat(a), asFloat(b)
		doc := bsoncore.NewDocumentBuilder().AppendDouble("v", fa+fb).Build()
		v, _ := doc.LookupErr("v")
		return v
	}
	if a.Type == bsontype.Int32 && b.Type == bsontype.Int32 {
		ia, _ := a.Int32OK()
		ib, _ := b.Int32OK()
		doc := bsoncore.NewDocumentBuilder().AppendInt32("v", ia+ib).Build()
		v, _ := doc.LookupErr("v")
		return v
	}
	ia, ib := asInt64(a), asInt64(b)
	doc := bsoncore.NewDocumentBuilder().AppendInt64("v", ia+ib).Build()
	v, _ := doc.LookupErr("v")
	return v
}

func asFloat(v bsoncore.Value) float64 {
	switch v.Type {
	case bsontype.Int32:
		n, _ := v.Int32OK()
		return float64(n)
	case bsontype.Int64:
		n, _ := v.Int64OK()
		return float64(n)
	case bsontype.Double:
		n, _ := v.DoubleOK()
		return n
	case bsontype.Decimal128:
		d, _ := v.Decimal128OK()
		n, _ := strconv.ParseFloat(d.String(), 64)
		return n
	default:
		return 0
	}
}

func asInt64(v bsoncore.Value) int64 {
	switch v.Type {
	case bsontype.Int32:
		n, _ := v.Int32OK()
		return int64(n)
	case bsontype.Int64:
		n, _ := v.Int64OK()
		return n
	default:
		return 0
	}
}

// Push applies a $push body: {"tags": "x"} appends "x" to the array
// at "tags", creating the array if the field is absent. Pushing onto
// a non-array existing field is an error.
func Push(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		segments := bsondoc.SplitPath(e.Key())
		existing, ok := bsondoc.Lookup(cur, e.Key())
		var items []bsoncore.Value
		if ok {
			if existing.Type != bsontype.Array {
				return nil, fmt.Errorf("$push target %q is not an array", e.Key())
			}
			arr, _, err := bsoncore.ReadDocument(existing.Data)
			if err != nil {
				return nil, err
			}
			arrElems, err := arr.Elements()
			if err != nil {
				return nil, err
			}
			for _, ae := range arrElems {
				items = append(items, ae.Value())
			}
		}
		items = append(items, e.Value())
		newArr := buildArray(items)
		arrDoc := bsoncore.NewDocumentBuilder().AppendArray("v", newArr).Build()
		arrVal, _ := arrDoc.LookupErr("v")
		cur, err = setAtPath(cur, segments, arrVal)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Pull applies a $pull body: {"tags": "x"} removes every array
// element equal (per pkg/collate.Compare) to "x" from the array at
// "tags". Pulling from a missing or non-array field is a no-op.
func Pull(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		segments := bsondoc.SplitPath(e.Key())
		existing, ok := bsondoc.Lookup(cur, e.Key())
		if !ok || existing.Type != bsontype.Array {
			continue
		}
		arr, _, err := bsoncore.ReadDocument(existing.Data)
		if err != nil {
			return nil, err
		}
		arrElems, err := arr.Elements()
		if err != nil {
			return nil, err
		}
		var kept []bsoncore.Value
		for _, ae := range arrElems {
			if collate.Compare(ae.Value(), e.Value()) != 0 {
				kept = append(kept, ae.Value())
			}
		}
		newArr := buildArray(kept)
		arrDoc := bsoncore.NewDocumentBuilder().AppendArray("v", newArr).Build()
		arrVal, _ := arrDoc.LookupErr("v")
		cur, err = setAtPath(cur, segments, arrVal)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Rename applies a $rename body: {"old": "new"} moves the value at
// "old" to "new". Renaming a missing field is a no-op.
func Rename(doc bsoncore.Document, body bsoncore.Document) (bsoncore.Document, error) {
	elems, err := body.Elements()
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, e := range elems {
		target, ok := e.Value().StringValueOK()
		if !ok {
			return nil, fmt.Errorf("$rename target for %q must be a string", e.Key())
		}
		val, ok := bsondoc.Lookup(cur, e.Key())
		if !ok {
			continue
		}
		cur, err = unsetAtPath(cur, bsondoc.SplitPath(e.Key()))
		if err != nil {
			return nil, err
		}
		cur, err = setAtPath(cur, bsondoc.SplitPath(target), val)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func buildArray(items []bsoncore.Value) bsoncore.Array {
	b := bsoncore.NewArrayBuilder()
	for _, v := range items {
		b.AppendValue(v)
	}
	return b.Build()
}
