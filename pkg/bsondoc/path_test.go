package bsondoc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

func buildDoc(t *testing.T) bsoncore.Document {
	t.Helper()
	inner := bsoncore.NewDocumentBuilder().
		AppendString("city", "lima").
		AppendInt32("zip", 15074).
		Build()
	arr := bsoncore.NewArrayBuilder().
		AppendInt32(1).
		AppendInt32(2).
		AppendInt32(3).
		Build()
	return bsoncore.NewDocumentBuilder().
		AppendString("name", "ada").
		AppendDocument("address", inner).
		AppendArray("tags", arr).
		Build()
}

func TestLookupNested(t *testing.T) {
	doc := buildDoc(t)

	v, ok := Lookup(doc, "address.city")
	require.True(t, ok)
	s, ok := v.StringValueOK()
	require.True(t, ok)
	require.Equal(t, "lima", s)

	_, ok = Lookup(doc, "address.missing")
	require.False(t, ok)
}

func TestLookupArrayIndex(t *testing.T) {
	doc := buildDoc(t)
	v, ok := Lookup(doc, "tags.1")
	require.True(t, ok)
	n, ok := v.Int32OK()
	require.True(t, ok)
	require.Equal(t, int32(2), n)
}

func TestMultiKeyValues(t *testing.T) {
	doc := buildDoc(t)
	vals, ok := MultiKeyValues(doc, "tags")
	require.True(t, ok)
	require.Len(t, vals, 3)
}

func TestEnsureIDAddsObjectID(t *testing.T) {
	doc := bsoncore.NewDocumentBuilder().AppendString("name", "ada").Build()
	withID, err := EnsureID(doc)
	require.NoError(t, err)
	v, ok := ID(withID)
	require.True(t, ok)
	require.True(t, IsFastPathID(v))
}

func TestMergeOverwritesAndAppends(t *testing.T) {
	base := bsoncore.NewDocumentBuilder().
		AppendString("name", "ada").
		AppendInt32("age", 30).
		Build()
	patch := bsoncore.NewDocumentBuilder().
		AppendInt32("age", 31).
		AppendString("city", "lima").
		Build()

	merged, err := Merge(base, patch)
	require.NoError(t, err)

	age, ok := Lookup(merged, "age")
	require.True(t, ok)
	n, _ := age.Int32OK()
	require.Equal(t, int32(31), n)

	city, ok := Lookup(merged, "city")
	require.True(t, ok)
	s, _ := city.StringValueOK()
	require.Equal(t, "lima", s)
}
