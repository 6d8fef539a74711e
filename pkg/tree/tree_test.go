package tree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
	"github.com/cuemby/moldb/pkg/kv/boltkv"
)

func openEnv(t *testing.T) *boltkv.Env {
	t.Helper()
	env, err := boltkv.Open(filepath.Join(t.TempDir(), "test.db"), boltkv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func docWithNameAge(t *testing.T, name string, age int32) bsoncore.Document {
	t.Helper()
	return bsoncore.NewDocumentBuilder().
		AppendObjectID("_id", primitive.NewObjectID()).
		AppendString("name", name).
		AppendInt32("age", age).
		Build()
}

func TestInsertAndGetByID(t *testing.T) {
	env := openEnv(t)
	ctx := context.Background()
	tr := New("people", nil)

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tr.Create(tx))

	doc := docWithNameAge(t, "ada", 30)
	require.NoError(t, tr.Insert(tx, doc))
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(ctx, false)
	require.NoError(t, err)
	id, _ := doc.LookupErr("_id")
	got, ok, err := tr.Get(tx, id)
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := got.LookupErr("name")
	s, _ := name.StringValueOK()
	require.Equal(t, "ada", s)
	require.NoError(t, tx.Rollback())
}

func TestUniqueIndexConflict(t *testing.T) {
	env := openEnv(t)
	ctx := context.Background()
	tr := New("people", []IndexDescriptor{
		{Name: "by_name", Fields: []keycodec.Field{{Path: "name"}}, Unique: true},
	})

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tr.Create(tx))
	require.NoError(t, tr.Insert(tx, docWithNameAge(t, "ada", 30)))
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(ctx, true)
	require.NoError(t, err)
	err = tr.Insert(tx, docWithNameAge(t, "ada", 40))
	require.Error(t, err)
	require.Equal(t, dberrors.IndexConflict, dberrors.KindOf(err))
	require.NoError(t, tx.Rollback())
}

func TestScanIndexRangeOrdersByKey(t *testing.T) {
	env := openEnv(t)
	ctx := context.Background()
	tr := New("people", []IndexDescriptor{
		{Name: "by_age", Fields: []keycodec.Field{{Path: "age"}}},
	})

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tr.Create(tx))
	require.NoError(t, tr.Insert(tx, docWithNameAge(t, "a", 30)))
	require.NoError(t, tr.Insert(tx, docWithNameAge(t, "b", 10)))
	require.NoError(t, tr.Insert(tx, docWithNameAge(t, "c", 20)))
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(ctx, false)
	require.NoError(t, err)
	var ages []int32
	err = tr.ScanIndexRange(tx, "by_age", nil, nil, func(key, ref []byte) bool {
		doc, ok, lerr := tr.LookupByRef(tx, ref)
		require.NoError(t, lerr)
		require.True(t, ok)
		age, _ := doc.LookupErr("age")
		n, _ := age.Int32OK()
		ages = append(ages, n)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []int32{10, 20, 30}, ages)
	require.NoError(t, tx.Rollback())
}
