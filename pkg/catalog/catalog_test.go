package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv/boltkv"
)

func TestPutGetList(t *testing.T) {
	env, err := boltkv.Open(filepath.Join(t.TempDir(), "test.db"), boltkv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	ctx := context.Background()

	tx, err := env.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, EnsureTable(tx))

	desc := Descriptor{
		Name: "people",
		Indexes: []IndexSpec{
			{Name: "by_name", Fields: []keycodec.Field{{Path: "name"}}, Unique: true},
		},
	}
	require.NoError(t, Put(tx, desc))
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(ctx, false)
	require.NoError(t, err)
	got, ok, err := Get(tx, "people")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "people", got.Name)
	require.Len(t, got.Indexes, 1)
	require.Equal(t, "by_name", got.Indexes[0].Name)
	require.True(t, got.Indexes[0].Unique)

	all, err := List(tx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NoError(t, tx.Rollback())
}
