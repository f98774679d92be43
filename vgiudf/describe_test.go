// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type describeOpts struct {
	Capitalize bool  `udf:"capitalize,default=false"`
	Limit      int64 `udf:"limit"`
}

func describeCollection() *Collection {
	c := NewCollection("showcase")
	Func(c, "zeta", noopKernel)
	Func(c, "alpha", noopKernel, WithArity(2), WithOutputType(arrow.PrimitiveTypes.Int64))
	FuncWithKwargs(c, "mike", func(cc *CallContext, in []Column, k describeOpts) (Column, error) {
		return Column{}, nil
	}, WithArity(1))
	return c
}

func TestCollectionDescribe(t *testing.T) {
	c := describeCollection()
	batch, meta := c.Describe(nil)
	defer batch.Release()

	require.Equal(t, int64(3), batch.NumRows())
	require.Equal(t, int64(5), batch.NumCols())

	collection, ok := meta.GetValue(MetaCollection)
	require.True(t, ok)
	assert.Equal(t, "showcase", collection)
	version, ok := meta.GetValue(MetaManifestVersion)
	require.True(t, ok)
	assert.Equal(t, ManifestVersion, version)

	names := batch.Column(0).(*array.String)
	assert.Equal(t, "alpha", names.Value(0))
	assert.Equal(t, "mike", names.Value(1))
	assert.Equal(t, "zeta", names.Value(2))

	arities := batch.Column(1).(*array.Int64)
	assert.Equal(t, int64(2), arities.Value(0))
	assert.Equal(t, int64(1), arities.Value(1))
	assert.Equal(t, int64(-1), arities.Value(2), "undeclared arity describes as -1")

	hasKwargs := batch.Column(2).(*array.Boolean)
	assert.False(t, hasKwargs.Value(0))
	assert.True(t, hasKwargs.Value(1))
	assert.False(t, hasKwargs.Value(2))

	kwargsSchemas := batch.Column(3).(*array.Binary)
	assert.True(t, kwargsSchemas.IsNull(0))
	require.False(t, kwargsSchemas.IsNull(1))
	assert.True(t, kwargsSchemas.IsNull(2))

	schema, err := deserializeSchema(kwargsSchemas.Value(1))
	require.NoError(t, err)
	require.Equal(t, 2, schema.NumFields())
	assert.Equal(t, "capitalize", schema.Field(0).Name)
	assert.Equal(t, "limit", schema.Field(1).Name)

	outputTypes := batch.Column(4).(*array.String)
	require.False(t, outputTypes.IsNull(0))
	assert.Equal(t, arrow.PrimitiveTypes.Int64.String(), outputTypes.Value(0))
	assert.True(t, outputTypes.IsNull(1), "undeclared output type describes as null")
	assert.True(t, outputTypes.IsNull(2))
}

func TestDescribeEmptyCollection(t *testing.T) {
	c := NewCollection("empty")
	batch, meta := c.Describe(nil)
	defer batch.Release()

	assert.Equal(t, int64(0), batch.NumRows())
	collection, ok := meta.GetValue(MetaCollection)
	require.True(t, ok)
	assert.Equal(t, "empty", collection)
}

func TestSchemaSerializationRoundTrip(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Float64},
		{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	got, err := deserializeSchema(serializeSchema(schema))
	require.NoError(t, err)
	assert.True(t, schema.Equal(got))
}
