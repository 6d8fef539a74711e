package tree

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
)

// Indexes returns the descriptors this Tree was constructed with, in
// declaration order, so the query executor can choose among them.
func (t *Tree) Indexes() []IndexDescriptor {
	out := make([]IndexDescriptor, len(t.indexes))
	copy(out, t.indexes)
	return out
}

// AddIndex registers idx with this Tree's in-memory descriptor list
// and builds its table from the documents already in the primary
// tree. Callers must not call AddIndex twice for the same name.
func (t *Tree) AddIndex(tx kv.Tx, idx IndexDescriptor) error {
	const op = "tree.AddIndex"
	if _, err := tx.CreateTable(t.IndexTableName(idx.Name), kv.TableConfig{Flags: kv.DupSort}); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	t.indexes = append(t.indexes, idx)

	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	table, err := tx.Table(t.IndexTableName(idx.Name))
	if err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}

	cur := primary.Cursor()
	for _, v, ok := cur.First(); ok; _, v, ok = cur.Next() {
		doc := bsoncore.Document(v)
		if idx.Sparse && allFieldsMissing(doc, idx.Fields) {
			continue
		}
		ref, err := primaryRef(doc)
		if err != nil {
			return dberrors.Wrap(op, dberrors.InvalidDocument, err)
		}
		key := keycodec.EncodeIndexKey(idx.Fields, doc)
		if idx.Unique {
			if existingRef, found := table.Get(key); found && string(existingRef) != string(ref) {
				t.indexes = t.indexes[:len(t.indexes)-1]
				return dberrors.New(dberrors.IndexConflict, op)
			}
		}
		if err := table.PutDup(key, ref); err != nil {
			return dberrors.Wrap(op, dberrors.IO, err)
		}
	}
	return nil
}

// RemoveIndex drops idx's table and forgets its descriptor.
func (t *Tree) RemoveIndex(tx kv.Tx, name string) error {
	const op = "tree.RemoveIndex"
	if err := tx.DeleteTable(t.IndexTableName(name)); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	for i, idx := range t.indexes {
		if idx.Name == name {
			t.indexes = append(t.indexes[:i], t.indexes[i+1:]...)
			break
		}
	}
	return nil
}

// ScanEntry is one (document, ref) pair yielded by a scan.
type ScanEntry struct {
	Doc bsoncore.Document
	Ref []byte
}

// ScanPrimary iterates every document in the primary tree, in _id
// order, calling visit for each until visit returns false or the
// table is exhausted.
func (t *Tree) ScanPrimary(tx kv.Tx, visit func(doc bsoncore.Document) bool) error {
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return dberrors.Wrap("tree.ScanPrimary", dberrors.IO, err)
	}
	cur := primary.Cursor()
	for _, v, ok := cur.First(); ok; _, v, ok = cur.Next() {
		if !visit(bsoncore.Document(v)) {
			break
		}
	}
	return nil
}

// ScanIndexRange iterates a secondary index's (key, primaryRef)
// entries starting at the first key >= lowerBound (or from the
// beginning if lowerBound is nil), calling visit for each until visit
// returns false, the index is exhausted, or a key no longer shares
// prefixBound as a prefix (pass nil to scan to the end of the index).
func (t *Tree) ScanIndexRange(tx kv.Tx, indexName string, lowerBound, prefixBound []byte, visit func(key, ref []byte) bool) error {
	table, err := tx.Table(t.IndexTableName(indexName))
	if err != nil {
		return dberrors.Wrap("tree.ScanIndexRange", dberrors.IO, err)
	}
	cur := table.Cursor()
	var k, v []byte
	var ok bool
	if lowerBound == nil {
		k, v, ok = cur.First()
	} else {
		k, v, ok = cur.Seek(lowerBound)
	}
	for ok {
		if prefixBound != nil && !samePrefix(k, prefixBound) {
			break
		}
		if !visit(k, v) {
			break
		}
		k, v, ok = cur.Next()
	}
	return nil
}

// LookupByRef resolves a primary-key reference (as stored in a
// secondary index entry) back to its document.
func (t *Tree) LookupByRef(tx kv.Tx, ref []byte) (bsoncore.Document, bool, error) {
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return nil, false, dberrors.Wrap("tree.LookupByRef", dberrors.IO, err)
	}
	if oid, ok := keycodec.DecodePrimaryKeyRefObjectID(ref); ok {
		key := keycodec.AppendValue(nil, objectIDValue(oid), false)
		v, found := primary.Get(key)
		if !found {
			return nil, false, nil
		}
		return bsoncore.Document(v), true, nil
	}
	// Slow path: ref is itself a full encoded value; primary keys are
	// encoded the same way, so it can be used directly.
	v, found := primary.Get(ref)
	if !found {
		return nil, false, nil
	}
	return bsoncore.Document(v), true, nil
}
