// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeStringColumn(t *testing.T, mem memory.Allocator, name string, values []string) Column {
	t.Helper()
	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, v := range values {
		b.Append(v)
	}
	return Column{Name: name, Data: b.NewArray()}
}

func releaseAll(cols []Column) {
	for _, c := range cols {
		c.Release()
	}
}

func TestBindInputsOrdering(t *testing.T) {
	mem := memory.NewGoAllocator()
	text := makeStringColumn(t, mem, "words", []string{"a", "b", "c"})
	defer text.Release()

	cols, err := bindInputs(mem, []ColumnInput{
		Lit(int64(7)),
		Col(text),
		Lit("suffix"),
	})
	require.NoError(t, err)
	defer releaseAll(cols)

	require.Len(t, cols, 3)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, cols[0].DataType()))
	assert.Same(t, text.Data, cols[1].Data)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, cols[2].DataType()))
	for i, c := range cols {
		assert.Equal(t, 3, c.Len(), "column %d", i)
	}

	lit := cols[0].Data.(*array.Int64)
	assert.Equal(t, []int64{7, 7, 7}, lit.Int64Values())
}

func TestBindInputsLiteralKinds(t *testing.T) {
	mem := memory.NewGoAllocator()
	anchor := makeStringColumn(t, mem, "anchor", []string{"x", "y"})
	defer anchor.Release()

	tests := []struct {
		name  string
		value any
		want  arrow.DataType
	}{
		{"float64", 2.5, arrow.PrimitiveTypes.Float64},
		{"float32 coerced", float32(1.5), arrow.PrimitiveTypes.Float64},
		{"int64", int64(9), arrow.PrimitiveTypes.Int64},
		{"int32 coerced", int32(-4), arrow.PrimitiveTypes.Int64},
		{"uint16 coerced", uint16(12), arrow.PrimitiveTypes.Int64},
		{"string", "hi", arrow.BinaryTypes.String},
		{"bool", true, &arrow.BooleanType{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := bindInputs(mem, []ColumnInput{Col(anchor), Lit(tt.value)})
			require.NoError(t, err)
			defer releaseAll(cols)

			assert.True(t, arrow.TypeEqual(tt.want, cols[1].DataType()),
				"want %s, got %s", tt.want, cols[1].DataType())
			assert.Equal(t, 2, cols[1].Len())
		})
	}
}

func TestBindInputsAllLiterals(t *testing.T) {
	mem := memory.NewGoAllocator()

	cols, err := bindInputs(mem, []ColumnInput{Lit(int64(1)), Lit("x")})
	require.NoError(t, err)
	defer releaseAll(cols)

	for i, c := range cols {
		assert.Equal(t, 1, c.Len(), "column %d", i)
	}
}

func TestBindInputsLengthMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()
	three := makeStringColumn(t, mem, "three", []string{"a", "b", "c"})
	defer three.Release()
	two := makeStringColumn(t, mem, "two", []string{"a", "b"})
	defer two.Release()

	_, err := bindInputs(mem, []ColumnInput{Col(three), Col(two)})
	require.Error(t, err)

	var pe *PluginError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, FailureContractViolation, pe.Kind)
	assert.Contains(t, pe.Message, "input column 1 has length 2, want 3")
}

func TestBindInputsExprFn(t *testing.T) {
	mem := memory.NewGoAllocator()
	anchor := makeStringColumn(t, mem, "anchor", []string{"x", "y", "z"})
	defer anchor.Release()

	cols, err := bindInputs(mem, []ColumnInput{
		Col(anchor),
		ExprFn(func(mem memory.Allocator) (Column, error) {
			b := array.NewInt64Builder(mem)
			defer b.Release()
			b.AppendValues([]int64{10, 20, 30}, nil)
			return Column{Name: "derived", Data: b.NewArray()}, nil
		}),
	})
	require.NoError(t, err)
	defer releaseAll(cols)

	assert.Equal(t, "derived", cols[1].Name)
	assert.Equal(t, []int64{10, 20, 30}, cols[1].Data.(*array.Int64).Int64Values())
}

func TestBindInputsExprFnError(t *testing.T) {
	mem := memory.NewGoAllocator()
	boom := errors.New("expression blew up")

	_, err := bindInputs(mem, []ColumnInput{
		ExprFn(func(memory.Allocator) (Column, error) {
			return Column{}, boom
		}),
	})
	require.ErrorIs(t, err, boom)

	// Host-side expression failures are not plugin failures.
	var pe *PluginError
	assert.False(t, errors.As(err, &pe))
}

func TestBindInputsBadLiteral(t *testing.T) {
	mem := memory.NewGoAllocator()

	tests := []struct {
		name    string
		value   any
		message string
	}{
		{"mapping", Config{"k": int64(1)}, "literals must be scalar"},
		{"slice", []int{1, 2}, "unsupported config value"},
		{"nil", nil, "null config value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bindInputs(mem, []ColumnInput{Lit(tt.value)})
			require.Error(t, err)

			var pe *PluginError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, FailureEncoding, pe.Kind)
			assert.Contains(t, pe.Message, tt.message)
		})
	}
}
