// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Column is the unit of columnar data crossing the host/native boundary: a
// named, homogeneously typed, fixed-length sequence of values backed by an
// Arrow array.
//
// Ownership follows Arrow reference counting. The dispatcher retains bound
// input columns for the duration of a call and releases them afterwards;
// native functions receive read-only views and must not release them. The
// output column is newly allocated by the native function and ownership
// passes to the caller of [Dispatcher.Invoke], who must Release it.
type Column struct {
	Name string
	Data arrow.Array
}

// NewColumn wraps an Arrow array as a named column. No reference is taken;
// the caller's ownership of the array is unchanged.
func NewColumn(name string, data arrow.Array) Column {
	return Column{Name: name, Data: data}
}

// Len returns the column's logical length in rows.
func (c Column) Len() int {
	if c.Data == nil {
		return 0
	}
	return c.Data.Len()
}

// DataType returns the column's Arrow type, or nil for a zero Column.
func (c Column) DataType() arrow.DataType {
	if c.Data == nil {
		return nil
	}
	return c.Data.DataType()
}

// Retain increments the reference count of the backing array.
func (c Column) Retain() {
	if c.Data != nil {
		c.Data.Retain()
	}
}

// Release decrements the reference count of the backing array.
func (c Column) Release() {
	if c.Data != nil {
		c.Data.Release()
	}
}

// columnBufferSize returns the total top-level buffer size in bytes of a
// column, for I/O accounting in CallStatistics.
func columnBufferSize(c Column) int64 {
	if c.Data == nil {
		return 0
	}
	var total int64
	for _, buf := range c.Data.Data().Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	return total
}
