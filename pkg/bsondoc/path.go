package bsondoc

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// SplitPath splits a dotted field path ("a.b.c") into its segments.
// An empty path yields a single empty segment, matching the top-level
// field named "".
func SplitPath(path string) []string {
	if path == "" {
		return []string{""}
	}
	return strings.Split(path, ".")
}

// Lookup resolves a dotted path against doc, descending into embedded
// documents and, when a segment parses as a non-negative integer,
// into arrays by index. ok is false if any segment is missing or the
// document is malformed at that point.
func Lookup(doc bsoncore.Document, path string) (v bsoncore.Value, ok bool) {
	segments := SplitPath(path)
	cur := doc
	for i, seg := range segments {
		val, err := cur.LookupErr(seg)
		if err != nil {
			if idx, convErr := strconv.Atoi(seg); convErr == nil && idx >= 0 {
				arr, aok := asArray(cur, "")
				if aok {
					val, ok = lookupArrayIndex(arr, idx)
					if !ok {
						return bsoncore.Value{}, false
					}
				} else {
					return bsoncore.Value{}, false
				}
			} else {
				return bsoncore.Value{}, false
			}
		}
		if i == len(segments)-1 {
			return val, true
		}
		switch val.Type {
		case bsontype.EmbeddedDocument:
			sub, _, berr := bsoncore.ReadDocument(val.Data)
			if berr != nil {
				return bsoncore.Value{}, false
			}
			cur = sub
		case bsontype.Array:
			arr, _, berr := bsoncore.ReadDocument(val.Data)
			if berr != nil {
				return bsoncore.Value{}, false
			}
			cur = arr
		default:
			return bsoncore.Value{}, false
		}
	}
	return bsoncore.Value{}, false
}

func asArray(doc bsoncore.Document, key string) (bsoncore.Document, bool) {
	if key != "" {
		v, err := doc.LookupErr(key)
		if err != nil || v.Type != bsontype.Array {
			return nil, false
		}
		arr, _, berr := bsoncore.ReadDocument(v.Data)
		return arr, berr == nil
	}
	return doc, true
}

func lookupArrayIndex(arr bsoncore.Document, idx int) (bsoncore.Value, bool) {
	v, err := arr.LookupErr(strconv.Itoa(idx))
	if err != nil {
		return bsoncore.Value{}, false
	}
	return v, true
}

// MultiKeyValues evaluates path against doc the way a multikey index
// does: if any array is traversed along the path, the result is every
// matching element value across that array rather than a single
// value. ok is false when path resolves to nothing at all.
func MultiKeyValues(doc bsoncore.Document, path string) (values []bsoncore.Value, ok bool) {
	segments := SplitPath(path)
	return collectMultiKey(doc, segments)
}

func collectMultiKey(cur bsoncore.Document, segments []string) ([]bsoncore.Value, bool) {
	seg := segments[0]
	rest := segments[1:]

	v, err := cur.LookupErr(seg)
	if err != nil {
		return nil, false
	}
	if len(rest) == 0 {
		if v.Type == bsontype.Array {
			arr, _, berr := bsoncore.ReadDocument(v.Data)
			if berr != nil {
				return nil, false
			}
			elems, err := arr.Elements()
			if err != nil {
				return nil, false
			}
			out := make([]bsoncore.Value, 0, len(elems))
			for _, e := range elems {
				out = append(out, e.Value())
			}
			return out, len(out) > 0
		}
		return []bsoncore.Value{v}, true
	}

	switch v.Type {
	case bsontype.EmbeddedDocument:
		sub, _, berr := bsoncore.ReadDocument(v.Data)
		if berr != nil {
			return nil, false
		}
		return collectMultiKey(sub, rest)
	case bsontype.Array:
		arr, _, berr := bsoncore.ReadDocument(v.Data)
		if berr != nil {
			return nil, false
		}
		elems, err := arr.Elements()
		if err != nil {
			return nil, false
		}
		var out []bsoncore.Value
		for _, e := range elems {
			sub, _, berr := bsoncore.ReadDocument(e.Value().Data)
			if berr != nil {
				continue
			}
			vals, ok := collectMultiKey(sub, rest)
			if ok {
				out = append(out, vals...)
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}
