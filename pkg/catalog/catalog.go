package catalog

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/cuemby/moldb/pkg/dberrors"
	"github.com/cuemby/moldb/pkg/keycodec"
	"github.com/cuemby/moldb/pkg/kv"
)

// TableName is the reserved kv table backing the catalog.
const TableName = "schema"

// IndexSpec is a secondary index as recorded in the catalog.
type IndexSpec struct {
	Name   string
	Fields []keycodec.Field
	Unique bool
	Sparse bool
}

// Descriptor is one collection's catalog entry.
type Descriptor struct {
	Name    string
	Indexes []IndexSpec
	// Meta is an arbitrary, caller-defined document attached to the
	// collection (spec.md's per-collection metadata), e.g. application
	// version tags or display options. moldb never interprets it.
	Meta bsoncore.Document
}

// EnsureTable creates the catalog's backing table if absent.
func EnsureTable(tx kv.Tx) error {
	if _, err := tx.CreateTable(TableName, kv.TableConfig{Flags: kv.Default}); err != nil {
		return dberrors.Wrap("catalog.EnsureTable", dberrors.IO, err)
	}
	return nil
}

// Get returns the Descriptor for name, or ok=false if no such
// collection is registered.
func Get(tx kv.Tx, name string) (Descriptor, bool, error) {
	table, err := tx.Table(TableName)
	if err != nil {
		return Descriptor{}, false, dberrors.Wrap("catalog.Get", dberrors.IO, err)
	}
	v, ok := table.Get([]byte(name))
	if !ok {
		return Descriptor{}, false, nil
	}
	desc, err := decode(bsoncore.Document(v))
	if err != nil {
		return Descriptor{}, false, dberrors.Wrap("catalog.Get", dberrors.InvalidDocument, err)
	}
	return desc, true, nil
}

// Put writes (or overwrites) desc's catalog entry.
func Put(tx kv.Tx, desc Descriptor) error {
	table, err := tx.Table(TableName)
	if err != nil {
		return dberrors.Wrap("catalog.Put", dberrors.IO, err)
	}
	if err := table.Put([]byte(desc.Name), encode(desc)); err != nil {
		return dberrors.Wrap("catalog.Put", dberrors.IO, err)
	}
	return nil
}

// Delete removes name's catalog entry, if any.
func Delete(tx kv.Tx, name string) error {
	table, err := tx.Table(TableName)
	if err != nil {
		return dberrors.Wrap("catalog.Delete", dberrors.IO, err)
	}
	if err := table.Delete([]byte(name)); err != nil {
		return dberrors.Wrap("catalog.Delete", dberrors.IO, err)
	}
	return nil
}

// List returns every registered collection's Descriptor.
func List(tx kv.Tx) ([]Descriptor, error) {
	table, err := tx.Table(TableName)
	if err != nil {
		return nil, dberrors.Wrap("catalog.List", dberrors.IO, err)
	}
	var out []Descriptor
	cur := table.Cursor()
	for _, v, ok := cur.First(); ok; _, v, ok = cur.Next() {
		desc, err := decode(bsoncore.Document(v))
		if err != nil {
			return nil, dberrors.Wrap("catalog.List", dberrors.InvalidDocument, err)
		}
		out = append(out, desc)
	}
	return out, nil
}

func encode(desc Descriptor) bsoncore.Document {
	idxArr := bsoncore.NewArrayBuilder()
	for _, idx := range desc.Indexes {
		fieldsArr := bsoncore.NewArrayBuilder()
		for _, f := range idx.Fields {
			fieldsArr.AppendDocument(bsoncore.NewDocumentBuilder().
				AppendString("path", f.Path).
				AppendBoolean("desc", f.Descending).
				Build())
		}
		idxArr.AppendDocument(bsoncore.NewDocumentBuilder().
			AppendString("name", idx.Name).
			AppendArray("fields", fieldsArr.Build()).
			AppendBoolean("unique", idx.Unique).
			AppendBoolean("sparse", idx.Sparse).
			Build())
	}
	builder := bsoncore.NewDocumentBuilder().
		AppendString("name", desc.Name).
		AppendArray("indexes", idxArr.Build())
	if desc.Meta != nil {
		builder.AppendDocument("meta", desc.Meta)
	}
	return builder.Build()
}

func decode(doc bsoncore.Document) (Descriptor, error) {
	name, err := doc.LookupErr("name")
	if err != nil {
		return Descriptor{}, err
	}
	nameStr, _ := name.StringValueOK()

	desc := Descriptor{Name: nameStr}
	idxVal, err := doc.LookupErr("indexes")
	if err != nil {
		return desc, nil
	}
	idxArr, _, err := bsoncore.ReadDocument(idxVal.Data)
	if err != nil {
		return Descriptor{}, err
	}
	idxElems, err := idxArr.Elements()
	if err != nil {
		return Descriptor{}, err
	}
	for _, ie := range idxElems {
		idxDoc, _, err := bsoncore.ReadDocument(ie.Value().Data)
		if err != nil {
			return Descriptor{}, err
		}
		spec, err := decodeIndexSpec(idxDoc)
		if err != nil {
			return Descriptor{}, err
		}
		desc.Indexes = append(desc.Indexes, spec)
	}
	if metaV, err := doc.LookupErr("meta"); err == nil {
		metaDoc, _, err := bsoncore.ReadDocument(metaV.Data)
		if err == nil {
			desc.Meta = metaDoc
		}
	}
	return desc, nil
}

func decodeIndexSpec(doc bsoncore.Document) (IndexSpec, error) {
	nameV, err := doc.LookupErr("name")
	if err != nil {
		return IndexSpec{}, err
	}
	name, _ := nameV.StringValueOK()
	uniqueV, _ := doc.LookupErr("unique")
	unique, _ := uniqueV.BooleanOK()
	sparseV, _ := doc.LookupErr("sparse")
	sparse, _ := sparseV.BooleanOK()

	spec := IndexSpec{Name: name, Unique: unique, Sparse: sparse}
	fieldsV, err := doc.LookupErr("fields")
	if err != nil {
		return spec, nil
	}
	fieldsArr, _, err := bsoncore.ReadDocument(fieldsV.Data)
	if err != nil {
		return IndexSpec{}, err
	}
	fieldElems, err := fieldsArr.Elements()
	if err != nil {
		return IndexSpec{}, err
	}
	for _, fe := range fieldElems {
		fieldDoc, _, err := bsoncore.ReadDocument(fe.Value().Data)
		if err != nil {
			return IndexSpec{}, err
		}
		pathV, err := fieldDoc.LookupErr("path")
		if err != nil {
			return IndexSpec{}, err
		}
		path, _ := pathV.StringValueOK()
		descV, _ := fieldDoc.LookupErr("desc")
		desc, _ := descV.BooleanOK()
		spec.Fields = append(spec.Fields, keycodec.Field{Path: path, Descending: desc})
	}
	return spec, nil
}
