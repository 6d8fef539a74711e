/*
Package bsondoc provides the document-shaped operations moldb needs on
top of go.mongodb.org/mongo-driver/bson/bsoncore, which gives only raw
encode/decode. Everything here works directly on bsoncore.Document
byte slices: dotted-path lookup, _id extraction and validation, and
shallow copy/merge, without ever decoding into a Go struct.

moldb never defines its own document type; a "document" is always a
bsoncore.Document, i.e. validated BSON bytes.
*/
package bsondoc
