package collection

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/bsondoc"
	"github.com/cuemby/moldb/pkg/catalog"
	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/fxcache"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
	"github.com/cuemby/moldb/pkg/metrics"
	"github.com/cuemby/moldb/pkg/tree"
)

const handlesCacheName = "collection.handles"

// Engine is the Collection Engine: catalog access plus a cache of
// constructed Tree handles, one per open collection.
type Engine struct {
	handles *fxcache.Cache[string, *tree.Tree]
}

// NewEngine returns an Engine with an unbounded handle cache (moldb
// expects collection counts in the tens to low thousands, not a
// workload that benefits from evicting handles).
func NewEngine() *Engine {
	return &Engine{
		handles: fxcache.New[string, *tree.Tree](fxcache.Config[string, *tree.Tree]{
			Policy:  fxcache.LRU,
			KeyMode: fxcache.KeyVariable,
		}),
	}
}

// CreateCollection registers name in the catalog and creates its
// backing tables. Creating an already-existing collection returns
// ALREADY_EXISTS.
func (e *Engine) CreateCollection(tx kv.Tx, name string) error {
	const op = "collection.CreateCollection"
	if err := catalog.EnsureTable(tx); err != nil {
		return err
	}
	if _, ok, err := catalog.Get(tx, name); err != nil {
		return err
	} else if ok {
		return dberrors.New(dberrors.AlreadyExists, op)
	}
	desc := catalog.Descriptor{Name: name}
	if err := catalog.Put(tx, desc); err != nil {
		return err
	}
	t := tree.New(name, nil)
	if err := t.Create(tx); err != nil {
		return err
	}
	e.handles.Set(name, t, 0)
	return nil
}

// DropCollection removes name's catalog entry, backing tables, and
// cached handle. Dropping a nonexistent collection returns NOT_FOUND.
func (e *Engine) DropCollection(tx kv.Tx, name string) error {
	const op = "collection.DropCollection"
	t, err := e.open(tx, name)
	if err != nil {
		return err
	}
	if err := t.Drop(tx); err != nil {
		return dberrors.Wrap(op, dberrors.IO, err)
	}
	if err := catalog.Delete(tx, name); err != nil {
		return err
	}
	e.handles.Delete(name)
	return nil
}

// ListCollections returns every registered collection name.
func (e *Engine) ListCollections(tx kv.Tx) ([]string, error) {
	if err := catalog.EnsureTable(tx); err != nil {
		return nil, err
	}
	descs, err := catalog.List(tx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names, nil
}

// open resolves name to its Tree handle, consulting the cache first
// and falling back to the catalog. NOT_FOUND if no such collection is
// registered.
func (e *Engine) open(tx kv.Tx, name string) (*tree.Tree, error) {
	const op = "collection.open"
	if t, ok := e.handles.Get(name); ok {
		metrics.CacheHitsTotal.WithLabelValues(handlesCacheName).Inc()
		return t, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(handlesCacheName).Inc()
	desc, ok, err := catalog.Get(tx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, op)
	}
	t := tree.New(name, toTreeIndexes(desc.Indexes))
	e.handles.Set(name, t, 0)
	return t, nil
}

func toTreeIndexes(specs []catalog.IndexSpec) []tree.IndexDescriptor {
	out := make([]tree.IndexDescriptor, len(specs))
	for i, s := range specs {
		out[i] = tree.IndexDescriptor{Name: s.Name, Fields: s.Fields, Unique: s.Unique, Sparse: s.Sparse}
	}
	return out
}

// Tree exposes name's Tree handle for read-only use by the query
// executor. NOT_FOUND if no such collection is registered.
func (e *Engine) Tree(tx kv.Tx, name string) (*tree.Tree, error) {
	return e.open(tx, name)
}

// InsertOne validates doc and inserts it into name's primary tree and
// every secondary index, returning the stored document. A document
// without an _id field fails INVALID_DOCUMENT: moldb never mints an
// _id on a caller's behalf.
func (e *Engine) InsertOne(tx kv.Tx, name string, doc bsoncore.Document) (bsoncore.Document, error) {
	const op = "collection.InsertOne"
	if err := bsondoc.Validate(doc); err != nil {
		return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	if _, ok := bsondoc.ID(doc); !ok {
		return nil, dberrors.New(dberrors.InvalidDocument, op)
	}
	t, err := e.open(tx, name)
	if err != nil {
		return nil, err
	}
	if err := t.Insert(tx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReplaceByID replaces the document with the given _id with newDoc
// (which must not itself redeclare a different _id), returning the
// stored document. NOT_FOUND if no document with that _id exists.
func (e *Engine) ReplaceByID(tx kv.Tx, name string, id bsoncore.Value, newDoc bsoncore.Document) (bsoncore.Document, error) {
	const op = "collection.ReplaceByID"
	if err := bsondoc.Validate(newDoc); err != nil {
		return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	t, err := e.open(tx, name)
	if err != nil {
		return nil, err
	}
	oldDoc, ok, err := t.Get(tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, op)
	}
	merged, err := withSameID(newDoc, id)
	if err != nil {
		return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	if err := t.Replace(tx, oldDoc, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// UpdateByID applies apply to the document with the given _id and
// stores the result. NOT_FOUND if no document with that _id exists.
func (e *Engine) UpdateByID(tx kv.Tx, name string, id bsoncore.Value, apply func(bsoncore.Document) (bsoncore.Document, error)) (bsoncore.Document, error) {
	const op = "collection.UpdateByID"
	t, err := e.open(tx, name)
	if err != nil {
		return nil, err
	}
	oldDoc, ok, err := t.Get(tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, op)
	}
	newDoc, err := apply(oldDoc)
	if err != nil {
		return nil, dberrors.Wrap(op, dberrors.UpdateOperator, err)
	}
	newDoc, err = withSameID(newDoc, id)
	if err != nil {
		return nil, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	if err := t.Replace(tx, oldDoc, newDoc); err != nil {
		return nil, err
	}
	return newDoc, nil
}

// DeleteByID removes the document with the given _id. NOT_FOUND if no
// such document exists.
func (e *Engine) DeleteByID(tx kv.Tx, name string, id bsoncore.Value) error {
	const op = "collection.DeleteByID"
	t, err := e.open(tx, name)
	if err != nil {
		return err
	}
	doc, ok, err := t.Get(tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.New(dberrors.NotFound, op)
	}
	return t.Delete(tx, doc)
}

// Count returns the number of documents in name's primary tree.
func (e *Engine) Count(tx kv.Tx, name string) (int64, error) {
	t, err := e.open(tx, name)
	if err != nil {
		return 0, err
	}
	var n int64
	err = t.ScanPrimary(tx, func(bsoncore.Document) bool {
		n++
		return true
	})
	return n, err
}

// CreateIndex adds a secondary index to name, building it from
// documents already present. INDEX_CONFLICT if spec.Unique and
// existing documents collide.
func (e *Engine) CreateIndex(tx kv.Tx, name string, spec catalog.IndexSpec) error {
	const op = "collection.CreateIndex"
	t, err := e.open(tx, name)
	if err != nil {
		return err
	}
	for _, existing := range t.Indexes() {
		if existing.Name == spec.Name {
			return dberrors.New(dberrors.AlreadyExists, op)
		}
	}
	if err := t.AddIndex(tx, tree.IndexDescriptor{
		Name: spec.Name, Fields: spec.Fields, Unique: spec.Unique, Sparse: spec.Sparse,
	}); err != nil {
		return err
	}
	desc, ok, err := catalog.Get(tx, name)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.New(dberrors.NotFound, op)
	}
	desc.Indexes = append(desc.Indexes, spec)
	return catalog.Put(tx, desc)
}

// DropIndex removes a secondary index from name.
func (e *Engine) DropIndex(tx kv.Tx, name, indexName string) error {
	const op = "collection.DropIndex"
	t, err := e.open(tx, name)
	if err != nil {
		return err
	}
	if err := t.RemoveIndex(tx, indexName); err != nil {
		return err
	}
	desc, ok, err := catalog.Get(tx, name)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.New(dberrors.NotFound, op)
	}
	kept := desc.Indexes[:0]
	for _, idx := range desc.Indexes {
		if idx.Name != indexName {
			kept = append(kept, idx)
		}
	}
	desc.Indexes = kept
	return catalog.Put(tx, desc)
}

// Metadata returns name's attached metadata document, or an empty
// document if none was ever set.
func (e *Engine) Metadata(tx kv.Tx, name string) (bsoncore.Document, error) {
	const op = "collection.Metadata"
	desc, ok, err := catalog.Get(tx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, op)
	}
	if desc.Meta == nil {
		return bsoncore.NewDocumentBuilder().Build(), nil
	}
	return desc.Meta, nil
}

// SetMetadata replaces name's attached metadata document.
func (e *Engine) SetMetadata(tx kv.Tx, name string, meta bsoncore.Document) error {
	const op = "collection.SetMetadata"
	desc, ok, err := catalog.Get(tx, name)
	if err != nil {
		return err
	}
	if !ok {
		return dberrors.New(dberrors.NotFound, op)
	}
	desc.Meta = meta
	return catalog.Put(tx, desc)
}

func withSameID(doc bsoncore.Document, id bsoncore.Value) (bsoncore.Document, error) {
	if existing, ok := bsondoc.ID(doc); ok {
		if keycodec.EncodePrimaryKeyRef(existing) != nil && string(keycodec.AppendValue(nil, existing, false)) != string(keycodec.AppendValue(nil, id, false)) {
			return nil, fmt.Errorf("replacement document's _id does not match the target document")
		}
		return doc, nil
	}
	builder := bsoncore.NewDocumentBuilder().AppendValue(bsondoc.IDField, id)
	elems, err := doc.Elements()
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		builder.AppendValue(e.Key(), e.Value())
	}
	return builder.Build(), nil
}
