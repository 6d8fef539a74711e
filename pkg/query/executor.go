package query

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/collection"
	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
	"github.com/cuemby/moldb/pkg/tree"
)

// plan is the chosen access path for one Find call.
type plan struct {
	index     *tree.IndexDescriptor
	prefixLen int
}

// chooseIndex returns the index whose declared fields share the
// longest equality-constrained prefix with filter. An index with no
// equality-constrained leading field is never selected; ties favor
// the first-declared index.
func chooseIndex(indexes []tree.IndexDescriptor, filter bsoncore.Document) plan {
	best := plan{}
	for i := range indexes {
		idx := &indexes[i]
		n := 0
		for _, f := range idx.Fields {
			if _, ok := equalityConstraint(filter, f.Path); !ok {
				break
			}
			n++
		}
		if n > best.prefixLen {
			best = plan{index: idx, prefixLen: n}
		}
	}
	return best
}

// Cursor yields documents matching one Find call, in whatever order
// its access path produces them (index order when an index was used,
// _id order on a full scan).
type Cursor struct {
	tx     kv.Tx
	t      *tree.Tree
	filter bsoncore.Document

	pending []bsoncore.Document
	i       int
	done    bool
	scanErr error
}

// Find resolves name's best access path for filter and returns a
// Cursor over every matching document. NOT_FOUND if name is not a
// registered collection.
func Find(tx kv.Tx, eng *collection.Engine, name string, filter bsoncore.Document) (*Cursor, error) {
	t, err := eng.Tree(tx, name)
	if err != nil {
		return nil, err
	}
	chosen := chooseIndex(t.Indexes(), filter)

	c := &Cursor{tx: tx, t: t, filter: filter}
	if chosen.index == nil {
		c.scanErr = t.ScanPrimary(tx, func(doc bsoncore.Document) bool {
			if Matches(doc, filter) {
				c.pending = append(c.pending, cloneDoc(doc))
			}
			return true
		})
		return c, c.scanErr
	}

	prefixFields := chosen.index.Fields[:chosen.prefixLen]
	var key []byte
	for _, f := range prefixFields {
		v, _ := equalityConstraint(filter, f.Path)
		key = keycodec.AppendValue(key, v, f.Descending)
	}
	c.scanErr = t.ScanIndexRange(tx, chosen.index.Name, key, key, func(_, ref []byte) bool {
		doc, ok, err := t.LookupByRef(tx, ref)
		if err != nil {
			c.scanErr = err
			return false
		}
		if ok && Matches(doc, filter) {
			c.pending = append(c.pending, cloneDoc(doc))
		}
		return true
	})
	return c, c.scanErr
}

// FindOne returns the first document matching filter, or ok=false if
// none does.
func FindOne(tx kv.Tx, eng *collection.Engine, name string, filter bsoncore.Document) (bsoncore.Document, bool, error) {
	cur, err := Find(tx, eng, name, filter)
	if err != nil {
		return nil, false, err
	}
	doc, ok, err := cur.Next()
	return doc, ok, err
}

// Next returns the next matching document, or ok=false once exhausted.
func (c *Cursor) Next() (bsoncore.Document, bool, error) {
	if c.scanErr != nil {
		return nil, false, c.scanErr
	}
	if c.i >= len(c.pending) {
		return nil, false, nil
	}
	doc := c.pending[c.i]
	c.i++
	return doc, true, nil
}

// All drains the cursor into a slice, mainly for tests and small
// result sets; large result sets should use Next in a loop instead.
func (c *Cursor) All() ([]bsoncore.Document, error) {
	if c.scanErr != nil {
		return nil, c.scanErr
	}
	return c.pending[c.i:], nil
}

func cloneDoc(doc bsoncore.Document) bsoncore.Document {
	out := make([]byte, len(doc))
	copy(out, doc)
	return out
}

// Ids drains the cursor and returns each matching document's _id,
// used by pkg/moldb to implement UpdateMany/DeleteMany atop
// per-document Collection Engine operations.
func Ids(tx kv.Tx, eng *collection.Engine, name string, filter bsoncore.Document) ([]bsoncore.Value, error) {
	cur, err := Find(tx, eng, name, filter)
	if err != nil {
		return nil, err
	}
	docs, err := cur.All()
	if err != nil {
		return nil, err
	}
	ids := make([]bsoncore.Value, 0, len(docs))
	for _, d := range docs {
		id, err := d.LookupErr("_id")
		if err != nil {
			return nil, dberrors.Wrap("query.Ids", dberrors.InvalidDocument, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
