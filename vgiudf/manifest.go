// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/klauspost/compress/zstd"
)

// Manifest is the parsed form of a collection's describe artifact: what a
// host knows about a collection without resolving or invoking anything.
type Manifest struct {
	Collection string
	Version    string
	Functions  []FunctionInfo
}

// FunctionInfo describes one function in a manifest.
type FunctionInfo struct {
	Name         string
	Arity        int // -1 when variadic
	HasKwargs    bool
	KwargsSchema *arrow.Schema // nil for functions without kwargs
	OutputType   string        // "" when input-dependent or undeclared
}

// Function returns the named function's info.
func (m *Manifest) Function(name string) (FunctionInfo, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionInfo{}, false
}

// WriteManifest writes the collection's describe batch to w as a
// zstd-compressed Arrow IPC stream.
func WriteManifest(w io.Writer, c *Collection) error {
	batch, meta := c.Describe(nil)
	defer batch.Release()

	withMeta := array.NewRecordBatchWithMetadata(
		describeSchema, batch.Columns(), batch.NumRows(), meta)
	defer withMeta.Release()

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	iw := ipc.NewWriter(zw, ipc.WithSchema(describeSchema))
	if err := iw.Write(withMeta); err != nil {
		iw.Close()
		zw.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := iw.Close(); err != nil {
		zw.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest parses a manifest previously written by WriteManifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	defer zr.Close()

	ir, err := ipc.NewReader(zr)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	defer ir.Release()

	if !ir.Next() {
		if err := ir.Err(); err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		return nil, fmt.Errorf("reading manifest: stream contains no batch")
	}
	batch := ir.RecordBatch()

	m := &Manifest{}
	if rb, ok := batch.(arrow.RecordBatchWithMetadata); ok {
		meta := rb.Metadata()
		if v, ok := meta.GetValue(MetaCollection); ok {
			m.Collection = v
		}
		if v, ok := meta.GetValue(MetaManifestVersion); ok {
			m.Version = v
		}
	}
	if m.Collection == "" {
		return nil, fmt.Errorf("reading manifest: missing %q in batch custom_metadata", MetaCollection)
	}

	names := batch.Column(0).(*array.String)
	arities := batch.Column(1).(*array.Int64)
	hasKwargs := batch.Column(2).(*array.Boolean)
	kwargsSchemas := batch.Column(3).(*array.Binary)
	outputTypes := batch.Column(4).(*array.String)

	m.Functions = make([]FunctionInfo, 0, int(batch.NumRows()))
	for i := range int(batch.NumRows()) {
		fi := FunctionInfo{
			Name:      names.Value(i),
			Arity:     int(arities.Value(i)),
			HasKwargs: hasKwargs.Value(i),
		}
		if !kwargsSchemas.IsNull(i) {
			schema, err := deserializeSchema(kwargsSchemas.Value(i))
			if err != nil {
				return nil, fmt.Errorf("reading manifest: kwargs schema for %q: %w", fi.Name, err)
			}
			fi.KwargsSchema = schema
		}
		if !outputTypes.IsNull(i) {
			fi.OutputType = outputTypes.Value(i)
		}
		m.Functions = append(m.Functions, fi)
	}
	return m, nil
}
