// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds shared fixtures for dispatch benchmarks.
package benchmark

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Query-farm/vgi-udf/vgiudf"
)

var words = []string{"Richard", "Alice", "Bob", "expression", "dispatch", "columnar"}

// MakeTextColumn builds a deterministic string column of n rows.
func MakeTextColumn(mem memory.Allocator, name string, n int) vgiudf.Column {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Reserve(n)
	for i := range n {
		b.Append(words[i%len(words)])
	}
	return vgiudf.NewColumn(name, b.NewArray())
}

// MakeFloatColumns builds the four coordinate columns a haversine dispatch
// takes, n rows each, deterministic values.
func MakeFloatColumns(mem memory.Allocator, n int) []vgiudf.Column {
	names := []string{"start_lat", "start_long", "end_lat", "end_long"}
	cols := make([]vgiudf.Column, len(names))
	for ci, name := range names {
		b := array.NewFloat64Builder(mem)
		b.Reserve(n)
		for i := range n {
			b.Append(float64((i*7+ci*13)%170) - 85.0)
		}
		cols[ci] = vgiudf.NewColumn(name, b.NewArray())
		b.Release()
	}
	return cols
}

// MakeConfig builds a config nested depth levels deep, a few scalar keys
// per level.
func MakeConfig(depth int) vgiudf.Config {
	cfg := vgiudf.Config{
		"threshold": 0.75,
		"limit":     int64(100),
		"label":     "benchmark",
		"enabled":   true,
	}
	if depth > 1 {
		cfg[fmt.Sprintf("level_%d", depth)] = MakeConfig(depth - 1)
	}
	return cfg
}
