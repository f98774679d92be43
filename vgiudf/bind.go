// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ColumnInput is one "column-like" argument to [Dispatcher.Invoke]: an
// existing column, a scalar literal broadcast to the batch length, or a
// deferred expression evaluated against the current batch at bind time.
// The set is closed; construct values with [Col], [Lit] or [ExprFn].
type ColumnInput interface {
	columnInput()
}

type colInput struct {
	col Column
}

func (colInput) columnInput() {}

// Col uses an existing column as a dispatch input. The caller keeps
// ownership of the backing array; binding retains it for the duration of
// the call.
func Col(c Column) ColumnInput {
	return colInput{col: c}
}

type litInput struct {
	value any
}

func (litInput) columnInput() {}

// Lit broadcasts a scalar literal to the batch length. Supported kinds
// mirror Config scalars except nested mappings: float64, int64, string,
// bool, with narrower numerics coerced.
func Lit(v any) ColumnInput {
	return litInput{value: v}
}

type exprInput struct {
	eval func(memory.Allocator) (Column, error)
}

func (exprInput) columnInput() {}

// ExprFn defers a column to bind time: the function is evaluated against
// the current batch during binding and its result column, whose ownership
// passes to the binder, must match the batch length. Evaluation errors
// propagate to the caller unchanged; they are the host's own, not plugin
// failures.
func ExprFn(eval func(memory.Allocator) (Column, error)) ColumnInput {
	return exprInput{eval: eval}
}

// bindInputs resolves the ordered input list to concrete columns of one
// logical length: the first non-literal input fixes the batch length,
// remaining non-literals must match it, and literals broadcast to it. An
// all-literal call binds with length 1. Input ordering is preserved
// exactly; native functions index their arguments positionally.
//
// All returned columns are owned by the caller and must be released.
func bindInputs(mem memory.Allocator, inputs []ColumnInput) ([]Column, error) {
	cols := make([]Column, len(inputs))
	owned := func() {
		for _, c := range cols {
			if c.Data != nil {
				c.Release()
			}
		}
	}

	// Materialize columns and expressions first; they establish the batch
	// length literals broadcast to.
	batchLen := -1
	for i, in := range inputs {
		switch v := in.(type) {
		case colInput:
			v.col.Retain()
			cols[i] = v.col
		case exprInput:
			c, err := v.eval(mem)
			if err != nil {
				owned()
				return nil, err
			}
			cols[i] = c
		case litInput:
			continue
		default:
			owned()
			return nil, &PluginError{
				Kind:    FailureContractViolation,
				Message: fmt.Sprintf("unknown input kind %T at position %d", in, i),
			}
		}
		if batchLen == -1 {
			batchLen = cols[i].Len()
		} else if cols[i].Len() != batchLen {
			n := cols[i].Len()
			owned()
			return nil, &PluginError{
				Kind: FailureContractViolation,
				Message: fmt.Sprintf("input column %d has length %d, want %d: all bound columns must share one logical length",
					i, n, batchLen),
			}
		}
	}
	if batchLen == -1 {
		batchLen = 1
	}

	for i, in := range inputs {
		lit, ok := in.(litInput)
		if !ok {
			continue
		}
		c, err := buildLiteralColumn(mem, lit.value, batchLen)
		if err != nil {
			owned()
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// buildLiteralColumn broadcasts one scalar to a column of the given length.
func buildLiteralColumn(mem memory.Allocator, v any, length int) (Column, error) {
	canon, err := canonicalScalar(v, "literal")
	if err != nil {
		return Column{}, &PluginError{Kind: FailureEncoding, Message: err.Error(), cause: err}
	}

	switch val := canon.(type) {
	case float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(length)
		for range length {
			b.Append(val)
		}
		return Column{Name: "literal", Data: b.NewArray()}, nil
	case int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.Reserve(length)
		for range length {
			b.Append(val)
		}
		return Column{Name: "literal", Data: b.NewArray()}, nil
	case string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for range length {
			b.Append(val)
		}
		return Column{Name: "literal", Data: b.NewArray()}, nil
	case bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Reserve(length)
		for range length {
			b.Append(val)
		}
		return Column{Name: "literal", Data: b.NewArray()}, nil
	default:
		return Column{}, &PluginError{
			Kind:    FailureEncoding,
			Message: fmt.Sprintf("unsupported literal kind %T: literals must be scalar, not mappings or columns", v),
		}
	}
}
