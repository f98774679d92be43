// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CallContext provides invocation-scoped information and logging to native
// functions.
type CallContext struct {
	// Ctx is the invocation-scoped context. Dispatch itself is a blocking
	// call with no suspension points; the context is passed through for the
	// native function's own use (it is not consulted mid-dispatch).
	Ctx context.Context
	// InvocationID uniquely identifies this dispatch. It is echoed in error
	// provenance and in all forwarded log messages.
	InvocationID string
	// Collection is the collection identifier the entry point was
	// registered under.
	Collection string
	// Function is the name of the native function being invoked.
	Function string
	// HostID is the host identifier set via [Dispatcher.SetHostID].
	HostID string
	// Mem is the allocator the native function should use for its output
	// column.
	Mem memory.Allocator
	// LogLevel is the minimum severity recorded by [CallContext.Log].
	// Messages below this level are silently discarded.
	LogLevel LogLevel
	logs     []LogMessage
}

// Log records a log message that is forwarded to the host logger after the
// native function returns, tagged with the invocation's provenance. The
// message is only recorded if its level is at or above the configured
// minimum level.
func (ctx *CallContext) Log(level LogLevel, msg string, extras ...KV) {
	if logLevelPriority(level) > logLevelPriority(ctx.LogLevel) {
		return
	}
	logMsg := LogMessage{
		Level:   level,
		Message: msg,
	}
	if len(extras) > 0 {
		logMsg.Extras = make(map[string]string, len(extras))
		for _, kv := range extras {
			logMsg.Extras[kv.Key] = kv.Value
		}
	}
	ctx.logs = append(ctx.logs, logMsg)
}

// drainLogs returns and clears all accumulated log messages.
func (ctx *CallContext) drainLogs() []LogMessage {
	logs := ctx.logs
	ctx.logs = nil
	return logs
}
