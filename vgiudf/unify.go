// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Supertype computes the minimal common type able to represent every input
// type without precision loss, per a fixed promotion lattice:
//
//   - identical types map to themselves (numeric or not);
//   - booleans promote to any numeric type;
//   - signed integers widen to the widest signed width present;
//   - unsigned integers widen among themselves; mixed with signed they
//     promote to the narrowest signed width holding the full unsigned
//     range, and an unsigned 64-bit mix falls back to float64;
//   - any float presence makes the result a float: float64 wins outright,
//     and float32 absorbs booleans and an integer join of at most 16 bits
//     but widens to float64 for anything wider;
//   - everything else (text, binary, temporal types) has no common
//     supertype with a differing type.
//
// The set resolves as a whole over the widest member of each family, so
// the result is deterministic and independent of input order. Failure is a
// *PluginError with FailureTypeUnification.
func Supertype(types []arrow.DataType) (arrow.DataType, error) {
	if len(types) == 0 {
		return nil, unificationError("no input types")
	}
	identical := true
	for _, dt := range types[1:] {
		if !arrow.TypeEqual(types[0], dt) {
			identical = false
			break
		}
	}
	if identical {
		return types[0], nil
	}

	var widest latticeWidths
	for _, dt := range types {
		r, ok := rankOf(dt)
		if !ok {
			partner := types[0]
			for _, other := range types {
				if !arrow.TypeEqual(dt, other) {
					partner = other
					break
				}
			}
			return nil, unificationError("no common supertype for %s and %s", dt, partner)
		}
		widest.add(r)
	}
	return widest.resolve(), nil
}

func unificationError(format string, args ...any) *PluginError {
	return &PluginError{Kind: FailureTypeUnification, Message: fmt.Sprintf(format, args...)}
}

// numericRank describes a numeric (or boolean) type's place in the lattice.
type numericRank struct {
	bits     int
	signed   bool
	floating bool
	boolean  bool
}

func rankOf(dt arrow.DataType) (numericRank, bool) {
	switch dt.ID() {
	case arrow.BOOL:
		return numericRank{boolean: true}, true
	case arrow.INT8:
		return numericRank{bits: 8, signed: true}, true
	case arrow.INT16:
		return numericRank{bits: 16, signed: true}, true
	case arrow.INT32:
		return numericRank{bits: 32, signed: true}, true
	case arrow.INT64:
		return numericRank{bits: 64, signed: true}, true
	case arrow.UINT8:
		return numericRank{bits: 8}, true
	case arrow.UINT16:
		return numericRank{bits: 16}, true
	case arrow.UINT32:
		return numericRank{bits: 32}, true
	case arrow.UINT64:
		return numericRank{bits: 64}, true
	case arrow.FLOAT32:
		return numericRank{bits: 32, signed: true, floating: true}, true
	case arrow.FLOAT64:
		return numericRank{bits: 64, signed: true, floating: true}, true
	default:
		return numericRank{}, false
	}
}

func signedType(bits int) arrow.DataType {
	switch bits {
	case 8:
		return arrow.PrimitiveTypes.Int8
	case 16:
		return arrow.PrimitiveTypes.Int16
	case 32:
		return arrow.PrimitiveTypes.Int32
	default:
		return arrow.PrimitiveTypes.Int64
	}
}

func unsignedType(bits int) arrow.DataType {
	switch bits {
	case 8:
		return arrow.PrimitiveTypes.Uint8
	case 16:
		return arrow.PrimitiveTypes.Uint16
	case 32:
		return arrow.PrimitiveTypes.Uint32
	default:
		return arrow.PrimitiveTypes.Uint64
	}
}

// latticeWidths holds the widest member of each lattice family seen in an
// input set. The join is resolved once from the aggregate, never pairwise.
type latticeWidths struct {
	signedBits   int
	unsignedBits int
	floatBits    int
}

func (w *latticeWidths) add(r numericRank) {
	switch {
	case r.boolean:
		// Boolean is the weakest numeric: it adopts whatever the rest of
		// the set resolves to.
	case r.floating:
		w.floatBits = max(w.floatBits, r.bits)
	case r.signed:
		w.signedBits = max(w.signedBits, r.bits)
	default:
		w.unsignedBits = max(w.unsignedBits, r.bits)
	}
}

func (w latticeWidths) resolve() arrow.DataType {
	if w.floatBits == 64 {
		return arrow.PrimitiveTypes.Float64
	}
	bits, signed, fits := w.integerJoin()
	switch {
	case !fits:
		return arrow.PrimitiveTypes.Float64
	case w.floatBits == 32:
		if bits <= 16 {
			return arrow.PrimitiveTypes.Float32
		}
		return arrow.PrimitiveTypes.Float64
	case signed:
		return signedType(bits)
	default:
		return unsignedType(bits)
	}
}

// integerJoin reduces the integer widths: a same-sign set keeps its sign at
// the widest width; a mixed set needs the narrowest signed width holding
// the full unsigned range, which exceeds 64 bits when uint64 is involved.
func (w latticeWidths) integerJoin() (bits int, signed, fits bool) {
	switch {
	case w.unsignedBits == 0:
		return w.signedBits, true, true
	case w.signedBits == 0:
		return w.unsignedBits, false, true
	}
	bits = max(w.signedBits, 2*w.unsignedBits)
	return bits, true, bits <= 64
}

// unifyColumns casts every column to the common supertype of the set,
// returning freshly owned columns (pass-through columns are retained).
// Callers own the returned columns and retain ownership of the inputs.
func unifyColumns(mem memory.Allocator, cols []Column) ([]Column, error) {
	types := make([]arrow.DataType, len(cols))
	for i, c := range cols {
		types[i] = c.DataType()
	}
	super, err := Supertype(types)
	if err != nil {
		return nil, err
	}

	out := make([]Column, len(cols))
	for i, c := range cols {
		if arrow.TypeEqual(c.DataType(), super) {
			c.Retain()
			out[i] = c
			continue
		}
		cast, err := castColumn(mem, c, super)
		if err != nil {
			for _, done := range out[:i] {
				done.Release()
			}
			return nil, err
		}
		out[i] = cast
	}
	return out, nil
}

// castColumn converts a column to a wider type from the promotion lattice,
// preserving nulls.
func castColumn(mem memory.Allocator, c Column, dt arrow.DataType) (Column, error) {
	n := c.Len()
	switch dt.ID() {
	case arrow.FLOAT64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(n)
		for i := 0; i < n; i++ {
			if c.Data.IsNull(i) {
				b.AppendNull()
				continue
			}
			v, err := floatValueAt(c.Data, i)
			if err != nil {
				return Column{}, err
			}
			b.Append(v)
		}
		return Column{Name: c.Name, Data: b.NewArray()}, nil
	case arrow.FLOAT32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.Reserve(n)
		for i := 0; i < n; i++ {
			if c.Data.IsNull(i) {
				b.AppendNull()
				continue
			}
			v, err := floatValueAt(c.Data, i)
			if err != nil {
				return Column{}, err
			}
			b.Append(float32(v))
		}
		return Column{Name: c.Name, Data: b.NewArray()}, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return castIntColumn(mem, c, dt)
	default:
		return Column{}, unificationError("cannot cast %s to %s", c.DataType(), dt)
	}
}

func castIntColumn(mem memory.Allocator, c Column, dt arrow.DataType) (Column, error) {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Data.IsNull(i) {
			b.AppendNull()
			continue
		}
		v, err := intValueAt(c.Data, i)
		if err != nil {
			return Column{}, err
		}
		switch ib := b.(type) {
		case *array.Int8Builder:
			ib.Append(int8(v))
		case *array.Int16Builder:
			ib.Append(int16(v))
		case *array.Int32Builder:
			ib.Append(int32(v))
		case *array.Int64Builder:
			ib.Append(v)
		case *array.Uint8Builder:
			ib.Append(uint8(v))
		case *array.Uint16Builder:
			ib.Append(uint16(v))
		case *array.Uint32Builder:
			ib.Append(uint32(v))
		case *array.Uint64Builder:
			ib.Append(uint64(v))
		default:
			return Column{}, unificationError("cannot cast %s to %s", c.DataType(), dt)
		}
	}
	return Column{Name: c.Name, Data: b.NewArray()}, nil
}

// intValueAt reads an integral value from any integer or boolean array. The
// lattice guarantees integer cast targets never have floating sources.
func intValueAt(arr arrow.Array, i int) (int64, error) {
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Boolean:
		if a.Value(i) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, unificationError("cannot read integral value from %s", arr.DataType())
	}
}

// floatValueAt reads a floating value from any numeric or boolean array.
func floatValueAt(arr arrow.Array, i int) (float64, error) {
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Int8:
		return float64(a.Value(i)), nil
	case *array.Int16:
		return float64(a.Value(i)), nil
	case *array.Int32:
		return float64(a.Value(i)), nil
	case *array.Int64:
		return float64(a.Value(i)), nil
	case *array.Uint8:
		return float64(a.Value(i)), nil
	case *array.Uint16:
		return float64(a.Value(i)), nil
	case *array.Uint32:
		return float64(a.Value(i)), nil
	case *array.Uint64:
		return float64(a.Value(i)), nil
	case *array.Boolean:
		if a.Value(i) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, unificationError("cannot read numeric value from %s", arr.DataType())
	}
}
