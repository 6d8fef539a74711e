package collate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const fieldName = "v"

func i32(n int32) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendInt32(fieldName, n).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func i64(n int64) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendInt64(fieldName, n).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func dbl(n float64) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendDouble(fieldName, n).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func str(s string) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendString(fieldName, s).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func boolean(b bool) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendBoolean(fieldName, b).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func null() bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendNull(fieldName).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func objID(oid primitive.ObjectID) bsoncore.Value {
	doc := bsoncore.NewDocumentBuilder().AppendObjectID(fieldName, oid).Build()
	rv, _ := doc.LookupErr(fieldName)
	return rv
}

func TestCompareNumericCrossType(t *testing.T) {
	require.Equal(t, 0, Compare(i32(3), dbl(3.0)))
	require.Equal(t, -1, Compare(i32(2), dbl(3.0)))
	require.Equal(t, 1, Compare(dbl(3.5), i32(3)))
}

func TestCompareLargeInt64ByValueNotDigitString(t *testing.T) {
	// Both exceed the ±2^53 float64-safe range, so this exercises the
	// exact-integer comparison path rather than the float64 fast path.
	smaller := i64(9999999999999999)
	bigger := i64(10000000000000000)
	require.Equal(t, -1, Compare(smaller, bigger))
	require.Equal(t, 1, Compare(bigger, smaller))

	require.Equal(t, -1, Compare(i64(-10000000000000000), i64(-9999999999999999)))
}

func TestCompareNaNSortsLowest(t *testing.T) {
	nan := dbl(math.NaN())
	require.Equal(t, 0, Compare(nan, dbl(math.NaN())))
	require.Equal(t, -1, Compare(nan, dbl(-1e300)))
	require.Equal(t, 1, Compare(dbl(0), nan))
}

func TestCompareTypePrecedence(t *testing.T) {
	require.Equal(t, -1, Compare(null(), i32(0)))
	require.Equal(t, -1, Compare(i32(0), str("")))
	require.Equal(t, -1, Compare(str("zzz"), objID(primitive.NewObjectID())))
	require.Equal(t, -1, Compare(objID(primitive.NewObjectID()), boolean(false)))
}

func TestCompareAntisymmetric(t *testing.T) {
	values := []bsoncore.Value{
		null(), i32(1), i32(2), dbl(2.0), str("a"), str("b"),
		boolean(false), boolean(true),
	}
	for _, a := range values {
		for _, b := range values {
			if Compare(a, b) != -Compare(b, a) {
				// Bool/Bool equal case: -0 == 0, fine; only check sign
				// symmetry where nonzero.
				if Compare(a, b) == 0 {
					require.Equal(t, 0, Compare(b, a))
					continue
				}
				t.Fatalf("asymmetry for %v vs %v", a, b)
			}
		}
	}
}

func TestCompareTransitiveSample(t *testing.T) {
	ordered := []bsoncore.Value{null(), i32(1), dbl(2.5), str("m"), boolean(true)}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			require.LessOrEqual(t, Compare(ordered[i], ordered[j]), 0)
		}
	}
}
