// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Describe schema field definitions: one row per registered function.
var describeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "arity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "has_kwargs", Type: &arrow.BooleanType{}},
	{Name: "kwargs_schema_ipc", Type: arrow.BinaryTypes.Binary, Nullable: true},
	{Name: "output_type", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// Describe metadata keys.
const (
	MetaCollection      = "vgi_udf.collection"
	MetaManifestVersion = "vgi_udf.manifest_version"
	ManifestVersion     = "1"
)

// serializeSchema serializes an Arrow schema to IPC format bytes.
func serializeSchema(schema *arrow.Schema) []byte {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	w.Close()
	return buf.Bytes()
}

// Describe builds the introspection batch for the collection: one row per
// function, sorted by name, with the collection identity carried in the
// batch metadata. The caller must Release the returned batch.
func (c *Collection) Describe(mem memory.Allocator) (arrow.RecordBatch, arrow.Metadata) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	names := c.Functions()
	n := len(names)

	nameBuilder := array.NewStringBuilder(mem)
	defer nameBuilder.Release()

	arityBuilder := array.NewInt64Builder(mem)
	defer arityBuilder.Release()

	hasKwargsBuilder := array.NewBooleanBuilder(mem)
	defer hasKwargsBuilder.Release()

	kwargsSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer kwargsSchemaBuilder.Release()

	outputTypeBuilder := array.NewStringBuilder(mem)
	defer outputTypeBuilder.Release()

	for _, name := range names {
		f := c.funcs[name]

		nameBuilder.Append(name)
		arityBuilder.Append(int64(f.arity))
		hasKwargsBuilder.Append(f.hasKwargs)

		if f.kwargsSchema != nil {
			kwargsSchemaBuilder.Append(serializeSchema(f.kwargsSchema))
		} else {
			kwargsSchemaBuilder.AppendNull()
		}

		// output_type carries only statically declared types; functions
		// with input-dependent output types describe as null.
		if f.fixedOutput != nil {
			outputTypeBuilder.Append(f.fixedOutput.String())
		} else {
			outputTypeBuilder.AppendNull()
		}
	}

	cols := make([]arrow.Array, 5)
	cols[0] = nameBuilder.NewArray()
	cols[1] = arityBuilder.NewArray()
	cols[2] = hasKwargsBuilder.NewArray()
	cols[3] = kwargsSchemaBuilder.NewArray()
	cols[4] = outputTypeBuilder.NewArray()
	for _, col := range cols {
		defer col.Release()
	}

	batch := array.NewRecordBatch(describeSchema, cols, int64(n))

	meta := arrow.NewMetadata(
		[]string{MetaCollection, MetaManifestVersion},
		[]string{c.name, ManifestVersion},
	)
	return batch, meta
}

// deserializeSchema parses IPC schema bytes back into an Arrow schema.
func deserializeSchema(data []byte) (*arrow.Schema, error) {
	r, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return r.Schema(), nil
}
