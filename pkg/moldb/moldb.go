package moldb

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/catalog"
	"github.com/cuemby/moldb/pkg/collection"
	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
	"github.com/cuemby/moldb/pkg/kv/boltkv"
	"github.com/cuemby/moldb/pkg/log"
	"github.com/cuemby/moldb/pkg/metrics"
	"github.com/cuemby/moldb/pkg/query"
	"github.com/cuemby/moldb/pkg/update"
)

// Options configures Open.
type Options struct {
	// MaxMapSize is a soft quota enforced on every write, in bytes; 0
	// disables the check (see pkg/kv/boltkv.Options.MaxMapSize).
	MaxMapSize int64
	ReadOnly   bool
}

// Database is the embedded document database: one bbolt environment
// plus the Schema Catalog and Collection Engine layered on top of it,
// guarded by a single process-wide writer lock.
type Database struct {
	env kv.Env
	eng *collection.Engine

	// mu serializes writers (spec.md §4.8/§5). Readers take their own
	// bbolt read transaction and never acquire mu.
	mu sync.Mutex
}

// Open creates or opens the environment at path.
func Open(path string, opts Options) (*Database, error) {
	env, err := boltkv.Open(path, boltkv.Options{MaxMapSize: opts.MaxMapSize, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	db := &Database{env: env, eng: collection.NewEngine()}
	if !opts.ReadOnly {
		if err := db.withWrite(func(tx kv.Tx) error {
			return catalog.EnsureTable(tx)
		}); err != nil {
			env.Close()
			return nil, err
		}
	}
	return db, nil
}

// Close releases the underlying environment.
func (db *Database) Close() error {
	return db.env.Close()
}

// Sync forces a durability barrier (see kv.Env.Sync).
func (db *Database) Sync(force bool) error {
	return db.env.Sync(force)
}

// Resize updates the soft map-size quota.
func (db *Database) Resize(newMapSize int64) error {
	return db.env.Resize(newMapSize)
}

// Strerror returns the human-readable description of a dberrors.Kind,
// spec.md §6's `strerror(code)`.
func Strerror(kind dberrors.Kind) string {
	return string(kind)
}

// withWrite runs fn inside one writable transaction while holding the
// writer lock, committing on success and rolling back on any failure.
func (db *Database) withWrite(fn func(tx kv.Tx) error) error {
	timer := metrics.NewTimer()
	db.mu.Lock()
	timer.ObserveDuration(metrics.WriteLockWaitDuration)
	defer db.mu.Unlock()

	tx, err := db.env.Begin(context.Background(), true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		metrics.TransactionsTotal.WithLabelValues("true", "abort").Inc()
		return err
	}
	if err := tx.Commit(); err != nil {
		metrics.TransactionsTotal.WithLabelValues("true", "abort").Inc()
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("true", "commit").Inc()
	if sz, err := db.env.Size(); err == nil {
		metrics.EnvironmentSizeBytes.Set(float64(sz))
	}
	return nil
}

// withRead runs fn inside one read-only transaction. No writer lock
// is taken; bbolt's MVCC gives it a consistent snapshot regardless of
// concurrent writers.
func (db *Database) withRead(fn func(tx kv.Tx) error) error {
	tx, err := db.env.Begin(context.Background(), false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = fn(tx)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("false", "abort").Inc()
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("false", "commit").Inc()
	return nil
}

// recordOp updates per-operation metrics and, on failure, emits a
// structured log line carrying a trace id so a single failed
// operation's metric bump and log line can be correlated in log
// aggregation even when many operations on the same collection fail
// around the same time.
func recordOp(coll, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.OperationsTotal.WithLabelValues(coll, op, status).Inc()

	if err != nil {
		log.WithCollection(coll).WithOp(op).Error().
			Str("trace_id", uuid.New().String()).
			Err(err).
			Msg("operation failed")
	}
}

// --- Collection lifecycle ---

// CreateCollection registers a new, empty collection. ALREADY_EXISTS
// if name is already registered.
func (db *Database) CreateCollection(name string) error {
	const op = "CreateCollection"
	timer := metrics.NewTimer()
	err := db.withWrite(func(tx kv.Tx) error {
		return db.eng.CreateCollection(tx, name)
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return err
}

// DropCollection removes name and every document and index it holds.
// NOT_FOUND if name is not registered.
func (db *Database) DropCollection(name string) error {
	const op = "DropCollection"
	timer := metrics.NewTimer()
	err := db.withWrite(func(tx kv.Tx) error {
		return db.eng.DropCollection(tx, name)
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return err
}

// Exists reports whether name is a registered collection.
func (db *Database) Exists(name string) (bool, error) {
	names, err := db.ListCollections()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ListCollections returns every registered collection name.
func (db *Database) ListCollections() ([]string, error) {
	var names []string
	err := db.withRead(func(tx kv.Tx) error {
		var err error
		names, err = db.eng.ListCollections(tx)
		return err
	})
	return names, err
}

// Count returns the number of documents in name matching filter, or
// every document if filter is nil/empty.
func (db *Database) Count(name string, filter bsoncore.Document) (int64, error) {
	var n int64
	err := db.withRead(func(tx kv.Tx) error {
		if len(filter) == 0 || isEmptyDoc(filter) {
			var err error
			n, err = db.eng.Count(tx, name)
			return err
		}
		ids, err := query.Ids(tx, db.eng, name, filter)
		n = int64(len(ids))
		return err
	})
	return n, err
}

func isEmptyDoc(doc bsoncore.Document) bool {
	elems, err := doc.Elements()
	return err == nil && len(elems) == 0
}

// Metadata returns name's attached metadata document.
func (db *Database) Metadata(name string) (bsoncore.Document, error) {
	var meta bsoncore.Document
	err := db.withRead(func(tx kv.Tx) error {
		var err error
		meta, err = db.eng.Metadata(tx, name)
		return err
	})
	return meta, err
}

// SetMetadata replaces name's attached metadata document.
func (db *Database) SetMetadata(name string, meta bsoncore.Document) error {
	return db.withWrite(func(tx kv.Tx) error {
		return db.eng.SetMetadata(tx, name, meta)
	})
}

// --- CRUD ---

// InsertOne validates and inserts doc into name and returns the stored
// document. doc must carry an _id; a document without one fails
// INVALID_DOCUMENT.
func (db *Database) InsertOne(name string, doc bsoncore.Document) (bsoncore.Document, error) {
	const op = "InsertOne"
	timer := metrics.NewTimer()
	var stored bsoncore.Document
	err := db.withWrite(func(tx kv.Tx) error {
		var err error
		stored, err = db.eng.InsertOne(tx, name, doc)
		return err
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return stored, err
}

// FindOne returns the first document in name matching filter.
func (db *Database) FindOne(name string, filter bsoncore.Document) (bsoncore.Document, bool, error) {
	const op = "FindOne"
	timer := metrics.NewTimer()
	var doc bsoncore.Document
	var found bool
	err := db.withRead(func(tx kv.Tx) error {
		var err error
		doc, found, err = query.FindOne(tx, db.eng, name, filter)
		return err
	})
	timer.ObserveDurationVec(metrics.QueryDuration, name, accessPath(found))
	metrics.QueriesTotal.WithLabelValues(name, accessPath(found)).Inc()
	recordOp(name, op, err)
	return doc, found, err
}

func accessPath(found bool) string {
	if found {
		return "matched"
	}
	return "unmatched"
}

// Find returns a Cursor over every document in name matching filter.
func (db *Database) Find(name string, filter bsoncore.Document) (*Cursor, error) {
	const op = "Find"
	timer := metrics.NewTimer()
	var docs []bsoncore.Document
	err := db.withRead(func(tx kv.Tx) error {
		cur, err := query.Find(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		docs, err = cur.All()
		return err
	})
	timer.ObserveDurationVec(metrics.QueryDuration, name, "scan")
	recordOp(name, op, err)
	if err != nil {
		return nil, err
	}
	return &Cursor{docs: docs}, nil
}

// UpdateOne applies updateSpec to the first document in name matching
// filter. updateSpec may be an update-operator document ($set, $inc,
// ...) or a full replacement document. NOT_FOUND if no document
// matches.
func (db *Database) UpdateOne(name string, filter, updateSpec bsoncore.Document) (bsoncore.Document, error) {
	const op = "UpdateOne"
	timer := metrics.NewTimer()
	var result bsoncore.Document
	err := db.withWrite(func(tx kv.Tx) error {
		id, err := findOneID(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		result, err = applyUpdate(tx, db.eng, name, id, updateSpec)
		return err
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return result, err
}

// UpdateMany applies updateSpec to every document in name matching
// filter, inside one transaction; any single failure aborts the
// entire call, leaving no document modified.
func (db *Database) UpdateMany(name string, filter, updateSpec bsoncore.Document) (int64, error) {
	const op = "UpdateMany"
	timer := metrics.NewTimer()
	var modified int64
	err := db.withWrite(func(tx kv.Tx) error {
		ids, err := query.Ids(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := applyUpdate(tx, db.eng, name, id, updateSpec); err != nil {
				return err
			}
			modified++
		}
		return nil
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	if err != nil {
		return 0, err
	}
	return modified, nil
}

// ReplaceOne replaces the first document in name matching filter with
// replacement in full. NOT_FOUND if no document matches.
func (db *Database) ReplaceOne(name string, filter, replacement bsoncore.Document) (bsoncore.Document, error) {
	const op = "ReplaceOne"
	timer := metrics.NewTimer()
	var result bsoncore.Document
	err := db.withWrite(func(tx kv.Tx) error {
		id, err := findOneID(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		result, err = db.eng.ReplaceByID(tx, name, id, replacement)
		return err
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return result, err
}

// DeleteOne removes the first document in name matching filter.
// NOT_FOUND if no document matches.
func (db *Database) DeleteOne(name string, filter bsoncore.Document) error {
	const op = "DeleteOne"
	timer := metrics.NewTimer()
	err := db.withWrite(func(tx kv.Tx) error {
		id, err := findOneID(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		return db.eng.DeleteByID(tx, name, id)
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	return err
}

// DeleteMany removes every document in name matching filter, inside
// one transaction, and returns how many were removed.
func (db *Database) DeleteMany(name string, filter bsoncore.Document) (int64, error) {
	const op = "DeleteMany"
	timer := metrics.NewTimer()
	var deleted int64
	err := db.withWrite(func(tx kv.Tx) error {
		ids, err := query.Ids(tx, db.eng, name, filter)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := db.eng.DeleteByID(tx, name, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	timer.ObserveDurationVec(metrics.OperationDuration, name, op)
	recordOp(name, op, err)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func findOneID(tx kv.Tx, eng *collection.Engine, name string, filter bsoncore.Document) (bsoncore.Value, error) {
	const op = "moldb.findOneID"
	doc, ok, err := query.FindOne(tx, eng, name, filter)
	if err != nil {
		return bsoncore.Value{}, err
	}
	if !ok {
		return bsoncore.Value{}, dberrors.New(dberrors.NotFound, op)
	}
	id, err := doc.LookupErr("_id")
	if err != nil {
		return bsoncore.Value{}, dberrors.Wrap(op, dberrors.InvalidDocument, err)
	}
	return id, nil
}

// applyUpdate runs updateSpec against the document with id, either as
// an update-operator document (non-empty, every top-level key
// "$"-prefixed) or otherwise as a full replacement.
func applyUpdate(tx kv.Tx, eng *collection.Engine, name string, id bsoncore.Value, updateSpec bsoncore.Document) (bsoncore.Document, error) {
	if update.IsOperatorSpec(updateSpec) {
		return eng.UpdateByID(tx, name, id, func(doc bsoncore.Document) (bsoncore.Document, error) {
			return update.Apply(doc, updateSpec)
		})
	}
	return eng.ReplaceByID(tx, name, id, updateSpec)
}

// --- Indexes ---

// IndexOptions configures CreateIndex.
type IndexOptions struct {
	// Name overrides the generated default "field1_dir1_field2_dir2…".
	Name   string
	Unique bool
	Sparse bool
}

// CreateIndex adds a secondary index over fields to name, building it
// from documents already present. INDEX_CONFLICT if Unique is set and
// existing documents collide; ALREADY_EXISTS if the (possibly
// generated) name is already in use. The reserved name "_id_" is
// never available to a caller, matching DropIndex's own refusal to
// touch it.
func (db *Database) CreateIndex(name string, fields []keycodec.Field, opts IndexOptions) (string, error) {
	const op = "CreateIndex"
	indexName := opts.Name
	if indexName == "" {
		indexName = defaultIndexName(fields)
	}
	if indexName == "_id_" {
		return "", dberrors.New(dberrors.InvalidArgument, "moldb.CreateIndex")
	}
	timer := metrics.NewTimer()
	err := db.withWrite(func(tx kv.Tx) error {
		return db.eng.CreateIndex(tx, name, catalog.IndexSpec{
			Name: indexName, Fields: fields, Unique: opts.Unique, Sparse: opts.Sparse,
		})
	})
	timer.ObserveDurationVec(metrics.IndexMaintenanceDuration, name, indexName, "create")
	recordOp(name, op, err)
	if err != nil {
		if dberrors.KindOf(err) == dberrors.IndexConflict {
			metrics.IndexConflictsTotal.WithLabelValues(name, indexName).Inc()
		}
		return "", err
	}
	return indexName, nil
}

// DropIndex removes a secondary index from name. The implicit primary
// index "_id_" cannot be dropped.
func (db *Database) DropIndex(name, indexName string) error {
	const op = "DropIndex"
	if indexName == "_id_" {
		return dberrors.New(dberrors.InvalidArgument, "moldb.DropIndex")
	}
	timer := metrics.NewTimer()
	err := db.withWrite(func(tx kv.Tx) error {
		return db.eng.DropIndex(tx, name, indexName)
	})
	timer.ObserveDurationVec(metrics.IndexMaintenanceDuration, name, indexName, "drop")
	recordOp(name, op, err)
	return err
}

// defaultIndexName follows MongoDB's own "field_dir" join convention,
// e.g. {lastName:1, firstName:1} -> "lastName_1_firstName_1".
func defaultIndexName(fields []keycodec.Field) string {
	parts := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		dir := "1"
		if f.Descending {
			dir = "-1"
		}
		parts = append(parts, f.Path, dir)
	}
	return strings.Join(parts, "_")
}

// Cursor is a materialized result set from Find, spec.md §6's cursor
// shape (`next()`, `destroy()`).
type Cursor struct {
	docs []bsoncore.Document
	i    int
}

// Next returns the next document, or ok=false once exhausted.
func (c *Cursor) Next() (bsoncore.Document, bool) {
	if c.i >= len(c.docs) {
		return nil, false
	}
	doc := c.docs[c.i]
	c.i++
	return doc, true
}

// All returns every remaining document.
func (c *Cursor) All() []bsoncore.Document {
	return c.docs[c.i:]
}

// Destroy releases the cursor. Find materializes its result set
// eagerly and closes its read transaction before returning, so
// Destroy has nothing left to release; it exists to satisfy spec.md
// §6's cursor shape.
func (c *Cursor) Destroy() {
	c.docs = nil
}
