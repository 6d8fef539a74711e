package collection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cuemby/moldb/pkg/bsondoc"
	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/kv/boltkv"
	"github.com/cuemby/moldb/pkg/update"
)

func TestInsertReplaceDelete(t *testing.T) {
	env, err := boltkv.Open(filepath.Join(t.TempDir(), "test.db"), boltkv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	ctx := context.Background()
	eng := NewEngine()

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, eng.CreateCollection(tx, "people"))

	doc := bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", primitive.NewObjectID()).
		AppendString("name", "ada").
		Build()
	stored, err := eng.InsertOne(tx, "people", doc)
	require.NoError(t, err)
	id, ok := bsondoc.ID(stored)
	require.True(t, ok)

	n, err := eng.Count(tx, "people")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	updated, err := eng.UpdateByID(tx, "people", id, func(d bsoncore.Document) (bsoncore.Document, error) {
		spec := bsoncore.NewDocumentBuilder().
			AppendDocument("$set", bsoncore.NewDocumentBuilder().AppendInt32("age", 30).Build()).
			Build()
		return update.Apply(d, spec)
	})
	require.NoError(t, err)
	age, err := updated.LookupErr("age")
	require.NoError(t, err)
	n32, _ := age.Int32OK()
	require.Equal(t, int32(30), n32)

	require.NoError(t, eng.DeleteByID(tx, "people", id))
	n, err = eng.Count(tx, "people")
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	require.NoError(t, tx.Commit())
}

func TestDropCollectionNotFound(t *testing.T) {
	env, err := boltkv.Open(filepath.Join(t.TempDir(), "test.db"), boltkv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	ctx := context.Background()
	eng := NewEngine()

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	err = eng.DropCollection(tx, "missing")
	require.Error(t, err)
	require.Equal(t, dberrors.NotFound, dberrors.KindOf(err))
	require.NoError(t, tx.Rollback())
}
