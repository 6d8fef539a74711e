package tree

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/cuemby/moldb/pkg/bsondoc"
	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
)

// IndexDescriptor names one secondary index: the ordered fields it
// covers, whether it enforces uniqueness, and whether it is sparse
// (documents missing every indexed field are omitted rather than
// indexed under a null key).
type IndexDescriptor struct {
	Name   string
	Fields []keycodec.Field
	Unique bool
	Sparse bool
}

// Tree is the primary table plus its secondary index tables for one
// collection, addressed by table-name prefix.
type Tree struct {
	prefix  string
	indexes []IndexDescriptor
}

// New returns a Tree for the collection identified by namePrefix
// (the collection engine passes the collection name), covering the
// given indexes.
// New does not touch storage; callers create the underlying tables
// with Create before first use.
func New(namePrefix string, indexes []IndexDescriptor) *Tree {
	return &Tree{prefix: namePrefix, indexes: indexes}
}

// PrimaryTableName is the kv table name backing the primary tree.
func (t *Tree) PrimaryTableName() string { return t.prefix + ":primary" }

// IndexTableName is the kv table name backing one named secondary index.
func (t *Tree) IndexTableName(indexName string) string { return t.prefix + ":idx:" + indexName }

// Create ensures every table this Tree needs exists within tx.
func (t *Tree) Create(tx kv.Tx) error {
	if _, err := tx.CreateTable(t.PrimaryTableName(), kv.TableConfig{Flags: kv.Default}); err != nil {
		return dberrors.Wrap("tree.Create", dberrors.IO, err)
	}
	for _, idx := range t.indexes {
		if _, err := tx.CreateTable(t.IndexTableName(idx.Name), kv.TableConfig{Flags: kv.DupSort}); err != nil {
			return dberrors.Wrap("tree.Create", dberrors.IO, err)
		}
	}
	return nil
}

// Drop removes every table this Tree owns.
func (t *Tree) Drop(tx kv.Tx) error {
	if err := tx.DeleteTable(t.PrimaryTableName()); err != nil {
		return dberrors.Wrap("tree.Drop", dberrors.IO, err)
	}
	for _, idx := range t.indexes {
		if err := tx.DeleteTable(t.IndexTableName(idx.Name)); err != nil {
			return dberrors.Wrap("tree.Drop", dberrors.IO, err)
		}
	}
	return nil
}

func primaryKey(doc bsoncore.Document) ([]byte, error) {
	id, ok := bsondoc.ID(doc)
	if !ok {
		return nil, fmt.Errorf("document has no _id")
	}
	return keycodec.AppendValue(nil, id, false), nil
}

// Get returns the document stored under the value id, or ok=false if
// absent.
func (t *Tree) Get(tx kv.Tx, id bsoncore.Value) (bsoncore.Document, bool, error) {
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return nil, false, dberrors.Wrap("tree.Get", dberrors.IO, err)
	}
	key := keycodec.AppendValue(nil, id, false)
	v, ok := primary.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bsoncore.Document(v), true, nil
}

// Insert adds doc to the primary table and every secondary index,
// failing with INDEX_CONFLICT if doc would violate a unique index and
// with ALREADY_EXISTS if its _id is already present.
func (t *Tree) Insert(tx kv.Tx, doc bsoncore.Document) error {
	const op = "tree.Insert"
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	pk, err := primaryKey(doc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	if _, exists := primary.Get(pk); exists {
		return dberrors.New(dberrors.AlreadyExists, op)
	}

	ref, err := primaryRef(doc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}

	if err := t.checkUniqueConflicts(tx, doc, nil); err != nil {
		return err
	}

	if err := primary.Put(pk, doc); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	if err := t.insertIndexEntries(tx, doc, ref); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	return nil
}

func primaryRef(doc bsoncore.Document) ([]byte, error) {
	id, ok := bsondoc.ID(doc)
	if !ok {
		return nil, fmt.Errorf("document has no _id")
	}
	return keycodec.EncodePrimaryKeyRef(id), nil
}

// Replace overwrites the document stored under oldDoc's _id with
// newDoc (which must carry the same _id), updating every secondary
// index to match.
func (t *Tree) Replace(tx kv.Tx, oldDoc, newDoc bsoncore.Document) error {
	const op = "tree.Replace"
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	pk, err := primaryKey(newDoc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	ref, err := primaryRef(newDoc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}

	if err := t.checkUniqueConflicts(tx, newDoc, oldDoc); err != nil {
		return err
	}

	if err := t.removeIndexEntries(tx, oldDoc, ref); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	if err := primary.Put(pk, newDoc); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	if err := t.insertIndexEntries(tx, newDoc, ref); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	return nil
}

// Delete removes doc from the primary table and every secondary
// index.
func (t *Tree) Delete(tx kv.Tx, doc bsoncore.Document) error {
	const op = "tree.Delete"
	primary, err := tx.Table(t.PrimaryTableName())
	if err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	pk, err := primaryKey(doc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	ref, err := primaryRef(doc)
	if err != nil {
		return dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	if err := primary.Delete(pk); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	if err := t.removeIndexEntries(tx, doc, ref); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	return nil
}

func (t *Tree) insertIndexEntries(tx kv.Tx, doc bsoncore.Document, ref []byte) error {
	for _, idx := range t.indexes {
		if idx.Sparse && allFieldsMissing(doc, idx.Fields) {
			continue
		}
		table, err := tx.Table(t.IndexTableName(idx.Name))
		if err != nil {
			return err
		}
		key := keycodec.EncodeIndexKey(idx.Fields, doc)
		if err := table.PutDup(key, ref); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) removeIndexEntries(tx kv.Tx, doc bsoncore.Document, ref []byte) error {
	for _, idx := range t.indexes {
		if idx.Sparse && allFieldsMissing(doc, idx.Fields) {
			continue
		}
		table, err := tx.Table(t.IndexTableName(idx.Name))
		if err != nil {
			return err
		}
		key := keycodec.EncodeIndexKey(idx.Fields, doc)
		if err := table.DeleteDup(key, ref); err != nil {
			return err
		}
	}
	return nil
}

// allFieldsMissing reports whether every indexed path of a sparse
// index is absent from doc. A path holding BSON Null or Undefined
// counts as missing: a sparse index excludes documents where none of
// its fields carry a real value.
func allFieldsMissing(doc bsoncore.Document, fields []keycodec.Field) bool {
	for _, f := range fields {
		v, ok := bsondoc.Lookup(doc, f.Path)
		if !ok {
			continue
		}
		if v.Type == bsontype.Null || v.Type == bsontype.Undefined {
			continue
		}
		return false
	}
	return true
}

// checkUniqueConflicts reports INDEX_CONFLICT if doc's key under any
// unique index is already occupied by a document other than
// excludeDoc (excludeDoc is nil on Insert, and the pre-update document
// on Replace, so that updating a document in place does not conflict
// with its own prior entry).
func (t *Tree) checkUniqueConflicts(tx kv.Tx, doc bsoncore.Document, excludeDoc bsoncore.Document) error {
	var excludeRef []byte
	if excludeDoc != nil {
		ref, err := primaryRef(excludeDoc)
		if err == nil {
			excludeRef = ref
		}
	}
	for _, idx := range t.indexes {
		if !idx.Unique {
			continue
		}
		if idx.Sparse && allFieldsMissing(doc, idx.Fields) {
			continue
		}
		table, err := tx.Table(t.IndexTableName(idx.Name))
		if err != nil {
			return dberrors.Wrap("tree.checkUniqueConflicts", dberrors.IO, err)
		}
		key := keycodec.EncodeIndexKey(idx.Fields, doc)
		cur := table.Cursor()
		for k, v, ok := cur.Seek(key); ok; k, v, ok = cur.Next() {
			if !samePrefix(k, key) {
				break
			}
			if string(k) != string(key) {
				break
			}
			if excludeRef != nil && string(v) == string(excludeRef) {
				continue
			}
			return dberrors.New(dberrors.IndexConflict, "tree.checkUniqueConflicts")
		}
	}
	return nil
}

func samePrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	return string(k[:len(prefix)]) == string(prefix)
}
