package moldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/fxcache"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
)

func openDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "moldb.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func userDoc(id primitive.ObjectID, email, name string) bsoncore.Document {
	return bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", id).
		AppendString("email", email).
		AppendString("name", name).
		Build()
}

func strField(doc bsoncore.Document, key string) string {
	v, err := doc.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}

// Scenario 1: insert and find by unique index.
func TestScenarioInsertAndFindByUniqueIndex(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("users"))
	_, err := db.CreateIndex("users", []keycodec.Field{{Path: "email"}}, IndexOptions{Unique: true})
	require.NoError(t, err)

	id1 := mustOID(t, "000000000000000000000001")
	id2 := mustOID(t, "000000000000000000000002")
	id3 := mustOID(t, "000000000000000000000003")

	_, err = db.InsertOne("users", userDoc(id1, "a@x", "A"))
	require.NoError(t, err)
	_, err = db.InsertOne("users", userDoc(id2, "b@x", "B"))
	require.NoError(t, err)

	_, err = db.InsertOne("users", userDoc(id3, "a@x", "C"))
	require.ErrorIs(t, err, dberrors.IndexConflict)

	filter := bsoncore.NewDocumentBuilder().AppendString("email", "b@x").Build()
	doc, ok, err := db.FindOne("users", filter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B", strField(doc, "name"))
}

// Scenario 2: compound index prefix match.
func TestScenarioCompoundIndexPrefixMatch(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("people"))
	_, err := db.CreateIndex("people", []keycodec.Field{{Path: "lastName"}, {Path: "firstName"}}, IndexOptions{})
	require.NoError(t, err)

	rows := []struct{ last, first string }{
		{"Doe", "John"}, {"Doe", "Jane"}, {"Roe", "Roy"},
	}
	for _, r := range rows {
		doc := bsoncore.NewDocumentBuilder().
			AppendObjectID("_id", primitive.NewObjectID()).
			AppendString("lastName", r.last).
			AppendString("firstName", r.first).
			Build()
		_, err := db.InsertOne("people", doc)
		require.NoError(t, err)
	}

	both := bsoncore.NewDocumentBuilder().AppendString("lastName", "Doe").AppendString("firstName", "Jane").Build()
	cur, err := db.Find("people", both)
	require.NoError(t, err)
	docs := cur.All()
	require.Len(t, docs, 1)
	require.Equal(t, "Jane", strField(docs[0], "firstName"))

	lastOnly := bsoncore.NewDocumentBuilder().AppendString("lastName", "Doe").Build()
	cur, err = db.Find("people", lastOnly)
	require.NoError(t, err)
	require.Len(t, cur.All(), 2)

	firstOnly := bsoncore.NewDocumentBuilder().AppendString("firstName", "Jane").Build()
	cur, err = db.Find("people", firstOnly)
	require.NoError(t, err)
	docs = cur.All()
	require.Len(t, docs, 1)
	require.Equal(t, "Jane", strField(docs[0], "firstName"))
}

// Scenario 3: sparse index excludes nulls and missing fields.
func TestScenarioSparseIndexExcludesNulls(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("contacts"))
	indexName, err := db.CreateIndex("contacts", []keycodec.Field{{Path: "phone"}}, IndexOptions{Sparse: true})
	require.NoError(t, err)

	withPhone := bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", mustOID(t, "000000000000000000000001")).
		AppendString("phone", "555").
		Build()
	nullPhone := bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", mustOID(t, "000000000000000000000002")).
		AppendNull("phone").
		Build()
	noPhone := bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", mustOID(t, "000000000000000000000003")).
		Build()

	_, err = db.InsertOne("contacts", withPhone)
	require.NoError(t, err)
	_, err = db.InsertOne("contacts", nullPhone)
	require.NoError(t, err)
	_, err = db.InsertOne("contacts", noPhone)
	require.NoError(t, err)

	filter := bsoncore.NewDocumentBuilder().AppendString("phone", "555").Build()
	doc, ok, err := db.FindOne("contacts", filter)
	require.NoError(t, err)
	require.True(t, ok)
	id, _ := doc.LookupErr("_id")
	oid, _ := id.ObjectIDOK()
	require.Equal(t, mustOID(t, "000000000000000000000001"), oid)

	require.Equal(t, 1, sparseIndexEntryCount(t, db, "contacts", indexName))
}

// sparseIndexEntryCount counts the raw key entries stored in the named
// index's table, bypassing the query executor so the sparse predicate
// is exercised directly rather than indirectly through a filter match.
func sparseIndexEntryCount(t *testing.T, db *Database, collName, indexName string) int {
	t.Helper()
	n := 0
	err := db.withRead(func(tx kv.Tx) error {
		tr, err := db.eng.Tree(tx, collName)
		if err != nil {
			return err
		}
		table, err := tx.Table(tr.IndexTableName(indexName))
		if err != nil {
			return err
		}
		cur := table.Cursor()
		for _, _, ok := cur.First(); ok; _, _, ok = cur.Next() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

// Scenario 4: update-operator composition.
func TestScenarioUpdateOperatorComposition(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("docs"))

	id := mustOID(t, "000000000000000000000001")
	doc := bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", id).
		AppendInt32("n", 1).
		AppendArray("a", bsoncore.NewArrayBuilder().AppendInt32(1).AppendInt32(2).AppendInt32(3).Build()).
		AppendString("name", "x").
		Build()
	_, err := db.InsertOne("docs", doc)
	require.NoError(t, err)

	spec := bsoncore.NewDocumentBuilder().
		AppendDocument("$inc", bsoncore.NewDocumentBuilder().AppendInt32("n", 2).Build()).
		AppendDocument("$pull", bsoncore.NewDocumentBuilder().AppendInt32("a", 2).Build()).
		AppendDocument("$rename", bsoncore.NewDocumentBuilder().AppendString("name", "label").Build()).
		Build()

	filter := bsoncore.NewDocumentBuilder().AppendObjectID("_id", id).Build()
	result, err := db.UpdateOne("docs", filter, spec)
	require.NoError(t, err)

	elems, err := result.Elements()
	require.NoError(t, err)
	keys := make([]string, len(elems))
	for i, e := range elems {
		keys[i] = e.Key()
	}
	require.Equal(t, []string{"_id", "n", "a", "label"}, keys)

	nVal, _ := result.LookupErr("n")
	n, _ := nVal.Int32OK()
	require.Equal(t, int32(3), n)

	require.Equal(t, "x", strField(result, "label"))
}

// Scenario 5: atomicity under index conflict.
func TestScenarioAtomicityUnderIndexConflict(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("users"))
	_, err := db.CreateIndex("users", []keycodec.Field{{Path: "email"}}, IndexOptions{Unique: true})
	require.NoError(t, err)

	id1 := mustOID(t, "000000000000000000000001")
	id2 := mustOID(t, "000000000000000000000002")
	_, err = db.InsertOne("users", userDoc(id1, "a", "A"))
	require.NoError(t, err)
	_, err = db.InsertOne("users", userDoc(id2, "b", "B"))
	require.NoError(t, err)

	before1, _, err := db.FindOne("users", bsoncore.NewDocumentBuilder().AppendObjectID("_id", id1).Build())
	require.NoError(t, err)

	filter := bsoncore.NewDocumentBuilder().AppendString("email", "a").Build()
	spec := bsoncore.NewDocumentBuilder().
		AppendDocument("$set", bsoncore.NewDocumentBuilder().AppendString("email", "b").Build()).
		Build()
	_, err = db.UpdateOne("users", filter, spec)
	require.ErrorIs(t, err, dberrors.IndexConflict)

	after1, _, err := db.FindOne("users", bsoncore.NewDocumentBuilder().AppendObjectID("_id", id1).Build())
	require.NoError(t, err)
	require.Equal(t, []byte(before1), []byte(after1))
}

// Scenario 6: FX Cache capacity eviction in LRU order with OnEvict,
// driven through pkg/fxcache's API directly (this scenario exercises
// pkg/fxcache, not pkg/moldb). TTL expiry is covered by pkg/fxcache's
// TestTTLExpiryLazy.
func TestScenarioFXCacheLRUEviction(t *testing.T) {
	var evicted []string
	cache := fxcache.New[string, int](fxcache.Config[string, int]{
		Policy:   fxcache.LRU,
		MaxItems: 2,
		OnEvict:  func(key string, _ int) { evicted = append(evicted, key) },
	})

	cache.Set("k1", 1, 0)
	cache.Set("k2", 2, 0)
	_, ok := cache.Get("k1")
	require.True(t, ok)

	cache.Set("k3", 3, 0)
	require.Equal(t, []string{"k2"}, evicted)

	_, ok = cache.Get("k2")
	require.False(t, ok)
	_, ok = cache.Get("k1")
	require.True(t, ok)
	_, ok = cache.Get("k3")
	require.True(t, ok)
}

// Boundary: inserting a document without _id fails INVALID_DOCUMENT
// rather than silently minting one.
func TestInsertOneWithoutIDFails(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("docs"))

	doc := bsoncore.NewDocumentBuilder().AppendString("name", "no id here").Build()
	_, err := db.InsertOne("docs", doc)
	require.ErrorIs(t, err, dberrors.InvalidDocument)
}

// Boundary: the reserved index name "_id_" cannot be claimed by
// CreateIndex, symmetric with DropIndex's own refusal to drop it.
func TestCreateIndexRejectsReservedIDName(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateCollection("docs"))

	_, err := db.CreateIndex("docs", []keycodec.Field{{Path: "x"}}, IndexOptions{Name: "_id_"})
	require.ErrorIs(t, err, dberrors.InvalidArgument)
}

func mustOID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return oid
}
