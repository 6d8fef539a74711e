package keycodec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/collate"
)

func valueOf(t *testing.T, build func(*bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder) bsoncore.Value {
	t.Helper()
	doc := build(bsoncore.NewDocumentBuilder()).Build()
	v, err := doc.LookupErr("v")
	require.NoError(t, err)
	return v
}

func TestAppendValueOrderAgreesWithCollate(t *testing.T) {
	nums := []int32{-100, -5, -1, 0, 1, 5, 100}
	var values []bsoncore.Value
	for _, n := range nums {
		values = append(values, valueOf(t, func(b *bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder {
			return b.AppendInt32("v", n)
		}))
	}

	var keys [][]byte
	for _, v := range values {
		keys = append(keys, AppendValue(nil, v, false))
	}

	sortedIdx := make([]int, len(keys))
	for i := range sortedIdx {
		sortedIdx[i] = i
	}
	sort.Slice(sortedIdx, func(i, j int) bool {
		return bytes.Compare(keys[sortedIdx[i]], keys[sortedIdx[j]]) < 0
	})
	for i, idx := range sortedIdx {
		require.Equal(t, i, idx, "byte order of encoded ints must match ascending int order")
	}

	for i := 0; i < len(values)-1; i++ {
		require.Equal(t, -1, collate.Compare(values[i], values[i+1]))
	}
}

func TestAppendValueDescendingReversesOrder(t *testing.T) {
	a := valueOf(t, func(b *bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder { return b.AppendInt32("v", 1) })
	c := valueOf(t, func(b *bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder { return b.AppendInt32("v", 2) })

	ascA, ascC := AppendValue(nil, a, false), AppendValue(nil, c, false)
	require.Equal(t, -1, bytes.Compare(ascA, ascC))

	descA, descC := AppendValue(nil, a, true), AppendValue(nil, c, true)
	require.Equal(t, 1, bytes.Compare(descA, descC))
}

func TestStringEscapingKeepsTerminatorUnambiguous(t *testing.T) {
	a := valueOf(t, func(b *bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder { return b.AppendString("v", "abc") })
	c := valueOf(t, func(b *bsoncore.DocumentBuilder) *bsoncore.DocumentBuilder { return b.AppendString("v", "abcd") })
	require.Equal(t, -1, bytes.Compare(AppendValue(nil, a, false), AppendValue(nil, c, false)))
}

func TestEncodeIndexKeyMissingFieldSortsAsNull(t *testing.T) {
	withField := bsoncore.NewDocumentBuilder().AppendInt32("age", 5).Build()
	withoutField := bsoncore.NewDocumentBuilder().AppendString("name", "x").Build()

	fields := []Field{{Path: "age"}}
	keyWith := EncodeIndexKey(fields, withField)
	keyWithout := EncodeIndexKey(fields, withoutField)
	require.Equal(t, -1, bytes.Compare(keyWithout, keyWith))
}
