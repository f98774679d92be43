// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"context"
)

// Mode strings for DispatchInfo.Mode.
const (
	DispatchModeElementwise = "elementwise"
	DispatchModeAggregate   = "aggregate"
)

// DispatchHook provides observability callpoints around plugin dispatch.
// Implementations must be safe for concurrent use (hosts dispatch from many
// worker goroutines over independent batches).
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries entry-point metadata passed to hooks.
type DispatchInfo struct {
	Collection      string // collection identifier
	Function        string // native function name
	Mode            string // DispatchModeElementwise or DispatchModeAggregate
	HostID          string // host identifier set via Dispatcher.SetHostID
	InvocationID    string // unique identifier for this dispatch
	UnifySupertypes bool   // whether supertype unification was requested
}

// CallStatistics holds per-dispatch I/O counters.
type CallStatistics struct {
	InputColumns int64
	InputRows    int64 // logical batch length
	InputBytes   int64
	ConfigBytes  int64
	OutputRows   int64
	OutputBytes  int64
}

// RecordInput records one bound input column with the given buffer size.
func (s *CallStatistics) RecordInput(bufferBytes int64) {
	s.InputColumns++
	s.InputBytes += bufferBytes
}

// RecordOutput records the output column with the given row count and buffer size.
func (s *CallStatistics) RecordOutput(numRows, bufferBytes int64) {
	s.OutputRows += numRows
	s.OutputBytes += bufferBytes
}

// modeString maps a Mode to its DispatchInfo string constant.
func modeString(m Mode) string {
	if m == ModeAggregate {
		return DispatchModeAggregate
	}
	return DispatchModeElementwise
}
