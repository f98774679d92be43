// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package exprlib

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/Query-farm/vgi-udf/vgiudf"
)

func hammingDistance(cc *vgiudf.CallContext, in []vgiudf.Column) (vgiudf.Column, error) {
	a, okA := in[0].Data.(*array.String)
	other, okB := in[1].Data.(*array.String)
	if !okA || !okB {
		return vgiudf.Column{}, fmt.Errorf("hamming_distance expects string columns, got %s and %s",
			in[0].DataType(), in[1].DataType())
	}

	b := array.NewInt64Builder(cc.Mem)
	defer b.Release()
	b.Reserve(a.Len())

	for i := range a.Len() {
		if a.IsNull(i) || other.IsNull(i) {
			b.AppendNull()
			continue
		}
		ra := []rune(a.Value(i))
		rb := []rune(other.Value(i))
		if len(ra) != len(rb) {
			b.AppendNull()
			continue
		}
		var n int64
		for j := range ra {
			if ra[j] != rb[j] {
				n++
			}
		}
		b.Append(n)
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

func jaccardSimilarity(cc *vgiudf.CallContext, in []vgiudf.Column) (vgiudf.Column, error) {
	la, okA := in[0].Data.(*array.List)
	lb, okB := in[1].Data.(*array.List)
	if !okA || !okB {
		return vgiudf.Column{}, fmt.Errorf("jaccard_similarity expects list columns, got %s and %s",
			in[0].DataType(), in[1].DataType())
	}

	b := array.NewFloat64Builder(cc.Mem)
	defer b.Release()
	b.Reserve(la.Len())

	for i := range la.Len() {
		if la.IsNull(i) || lb.IsNull(i) {
			b.AppendNull()
			continue
		}
		sa, err := listSet(la, i)
		if err != nil {
			return vgiudf.Column{}, err
		}
		sb, err := listSet(lb, i)
		if err != nil {
			return vgiudf.Column{}, err
		}
		inter := 0
		for v := range sa {
			if _, ok := sb[v]; ok {
				inter++
			}
		}
		union := len(sa) + len(sb) - inter
		b.Append(float64(inter) / float64(union))
	}
	return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil
}

// listSet collects row i's list elements, nulls skipped.
func listSet(l *array.List, i int) (map[int64]struct{}, error) {
	start, end := l.ValueOffsets(i)
	values := l.ListValues()
	set := make(map[int64]struct{}, end-start)
	for j := int(start); j < int(end); j++ {
		if values.IsNull(j) {
			continue
		}
		v, err := intAt(values, j)
		if err != nil {
			return nil, err
		}
		set[v] = struct{}{}
	}
	return set, nil
}

func intAt(arr arrow.Array, i int) (int64, error) {
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	default:
		return 0, fmt.Errorf("jaccard_similarity expects integer list elements, got %s", arr.DataType())
	}
}

// haversineOutput keeps float32 inputs in float32, everything else maps to
// float64.
func haversineOutput(inputs []arrow.DataType) (arrow.DataType, error) {
	for _, dt := range inputs {
		if dt.ID() != arrow.FLOAT32 {
			return arrow.PrimitiveTypes.Float64, nil
		}
	}
	return arrow.PrimitiveTypes.Float32, nil
}

func haversineFn(cc *vgiudf.CallContext, in []vgiudf.Column) (vgiudf.Column, error) {
	switch in[0].Data.(type) {
	case *array.Float32:
		cols := make([]*array.Float32, 4)
		for i := range 4 {
			ca, ok := in[i].Data.(*array.Float32)
			if !ok {
				return vgiudf.Column{}, fmt.Errorf("haversine expects uniform float columns, got %s at position %d",
					in[i].DataType(), i)
			}
			cols[i] = ca
		}
		b := array.NewFloat32Builder(cc.Mem)
		defer b.Release()
		b.Reserve(cols[0].Len())
		for i := range cols[0].Len() {
			if cols[0].IsNull(i) || cols[1].IsNull(i) || cols[2].IsNull(i) || cols[3].IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(float32(applyHaversine(
				float64(cols[0].Value(i)), float64(cols[1].Value(i)),
				float64(cols[2].Value(i)), float64(cols[3].Value(i)))))
		}
		return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil

	case *array.Float64:
		cols := make([]*array.Float64, 4)
		for i := range 4 {
			ca, ok := in[i].Data.(*array.Float64)
			if !ok {
				return vgiudf.Column{}, fmt.Errorf("haversine expects uniform float columns, got %s at position %d",
					in[i].DataType(), i)
			}
			cols[i] = ca
		}
		b := array.NewFloat64Builder(cc.Mem)
		defer b.Release()
		b.Reserve(cols[0].Len())
		for i := range cols[0].Len() {
			if cols[0].IsNull(i) || cols[1].IsNull(i) || cols[2].IsNull(i) || cols[3].IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(applyHaversine(
				cols[0].Value(i), cols[1].Value(i),
				cols[2].Value(i), cols[3].Value(i)))
		}
		return vgiudf.NewColumn(in[0].Name, b.NewArray()), nil

	default:
		return vgiudf.Column{}, fmt.Errorf("haversine expects float columns, got %s (register the entry point with supertype unification)",
			in[0].DataType())
	}
}

// applyHaversine computes the great-circle distance in kilometers between
// two points given in degrees.
func applyHaversine(startLat, startLong, endLat, endLong float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := radians(endLat - startLat)
	dLong := radians(endLong - startLong)
	lat1 := radians(startLat)
	lat2 := radians(endLat)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Pow(math.Sin(dLong/2), 2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
