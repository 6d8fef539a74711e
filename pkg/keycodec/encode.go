package keycodec

import (
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	tagNull     byte = 0x01
	tagNumber   byte = 0x02
	tagString   byte = 0x03
	tagDoc      byte = 0x04
	tagArray    byte = 0x05
	tagBinary   byte = 0x06
	tagObjID    byte = 0x07
	tagBool     byte = 0x08
	tagDate     byte = 0x09
	tagFallback byte = 0xFE
)

// escByte is the escape byte of variable-length payloads: a literal
// 0x00 byte inside the payload is escaped as 0x00 0xFF so it can never
// be confused with the terminator 0x00 0x00 that ends the payload.
const escByte = 0x00

func appendEscaped(buf, data []byte) []byte {
	for _, b := range data {
		if b == escByte {
			buf = append(buf, escByte, 0xFF)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, escByte, escByte)
}

// AppendValue appends the order-preserving encoding of v to buf and
// returns the extended slice. If descending is true, every byte of
// v's own encoding (but not buf's existing prefix) is bit-flipped.
func AppendValue(buf []byte, v bsoncore.Value, descending bool) []byte {
	start := len(buf)
	buf = appendValue(buf, v)
	if descending {
		flip(buf[start:])
	}
	return buf
}

func flip(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}

func appendValue(buf []byte, v bsoncore.Value) []byte {
	switch v.Type {
	case bsontype.Null, bsontype.Undefined:
		return append(buf, tagNull)
	case bsontype.Int32, bsontype.Int64, bsontype.Double, bsontype.Decimal128:
		return appendNumber(buf, v)
	case bsontype.String, bsontype.Symbol:
		return appendString(buf, v)
	case bsontype.EmbeddedDocument:
		return appendDocument(buf, v)
	case bsontype.Array:
		return appendArray(buf, v)
	case bsontype.Binary:
		return appendBinary(buf, v)
	case bsontype.ObjectID:
		oid, _ := v.ObjectIDOK()
		buf = append(buf, tagObjID)
		return append(buf, oid[:]...)
	case bsontype.Boolean:
		b, _ := v.BooleanOK()
		buf = append(buf, tagBool)
		if b {
			return append(buf, 0x01)
		}
		return append(buf, 0x00)
	case bsontype.DateTime:
		ms, _ := v.DateTimeOK()
		buf = append(buf, tagDate)
		return appendOrderedInt64(buf, ms)
	default:
		buf = append(buf, tagFallback)
		return appendEscaped(buf, v.Data)
	}
}

func appendString(buf []byte, v bsoncore.Value) []byte {
	var s string
	if sv, ok := v.StringValueOK(); ok {
		s = sv
	} else if sv, ok := v.SymbolOK(); ok {
		s = sv
	}
	buf = append(buf, tagString)
	return appendEscaped(buf, []byte(s))
}

func appendDocument(buf []byte, v bsoncore.Value) []byte {
	buf = append(buf, tagDoc)
	doc, _, err := bsoncore.ReadDocument(v.Data)
	if err != nil {
		return append(buf, escByte, escByte)
	}
	elems, err := doc.Elements()
	if err != nil {
		return append(buf, escByte, escByte)
	}
	for _, e := range elems {
		buf = appendEscaped(buf, []byte(e.Key()))
		buf = appendValue(buf, e.Value())
	}
	return append(buf, escByte, escByte)
}

func appendArray(buf []byte, v bsoncore.Value) []byte {
	buf = append(buf, tagArray)
	arr, _, err := bsoncore.ReadDocument(v.Data)
	if err != nil {
		return append(buf, escByte, escByte)
	}
	elems, err := arr.Elements()
	if err != nil {
		return append(buf, escByte, escByte)
	}
	for _, e := range elems {
		buf = appendValue(buf, e.Value())
	}
	return append(buf, escByte, escByte)
}

func appendBinary(buf []byte, v bsoncore.Value) []byte {
	subtype, data, _ := v.BinaryOK()
	buf = append(buf, tagBinary, subtype)
	return appendEscaped(buf, data)
}

// appendNumber encodes any Number-class value into the 8-byte
// order-preserving float64 form. Values outside float64's exact range
// (large int64, Decimal128) lose precision here; moldb accepts that
// narrowing for index ordering purposes, matching pkg/collate's own
// documented fast-path/slow-path split for those types.
func appendNumber(buf []byte, v bsoncore.Value) []byte {
	buf = append(buf, tagNumber)
	f := toFloat64(v)
	return appendOrderedFloat64(buf, f)
}

func toFloat64(v bsoncore.Value) float64 {
	switch v.Type {
	case bsontype.Int32:
		n, _ := v.Int32OK()
		return float64(n)
	case bsontype.Int64:
		n, _ := v.Int64OK()
		return float64(n)
	case bsontype.Double:
		n, _ := v.DoubleOK()
		return n
	case bsontype.Decimal128:
		// Decimal128 is approximated by parsing its string form as a
		// float64, so digits beyond float64 precision are lost; zero is
		// used only when that parse fails.
		d, _ := v.Decimal128OK()
		f, err := strconv.ParseFloat(d.String(), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// appendOrderedFloat64 appends the classic order-preserving
// transform: flip the sign bit for non-negative values, flip every
// bit for negative values, so big-endian byte comparison of the
// result agrees with float64 comparison (NaN excepted, which callers
// must not index on directly).
func appendOrderedFloat64(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(bits)
		bits >>= 8
	}
	return append(buf, b[:]...)
}

func appendOrderedInt64(buf []byte, n int64) []byte {
	u := uint64(n) ^ (1 << 63)
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
	return append(buf, b[:]...)
}
