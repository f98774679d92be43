// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgiudf implements the registration and dispatch layer for native
// columnar functions: user-defined kernels that receive Apache Arrow arrays
// plus named scalar configuration and return one Arrow array.
//
// Native functions live in a [Collection] and are registered at startup
// with [Func] or [FuncWithKwargs]. Hosts obtain an [EntryPoint] from
// [Dispatcher.Register] and call [Dispatcher.Invoke] with bound inputs.
// Registration never consults the collection: resolution happens lazily at
// the first Invoke, is cached, and a misnamed collection or function
// surfaces as a PluginNotFound failure before any columnar data moves.
//
// # Binding inputs
//
// Invoke takes an ordered slice of [ColumnInput] values, each one of:
//
//   - [Col]: an existing Arrow column, passed through.
//   - [Lit]: a scalar literal, broadcast to a one-element column.
//   - [ExprFn]: a deferred host-side computation producing a column.
//
// All non-literal inputs must share one logical length. Positional order is
// preserved exactly; the native function receives the columns in the order
// they were bound.
//
// # Scalar configuration
//
// A [Config] maps string keys to scalar values (float64, int64, string,
// bool) or nested Configs. It is encoded as a one-row Arrow record batch
// serialized as an IPC stream, so the payload describes its own schema and
// the native side decodes it without prior knowledge of the parameter
// shapes. [FuncWithKwargs] decodes the payload into a Go struct annotated
// with `udf` struct tags:
//
//	`udf:"wire_name[,default=VALUE]"`
//
// Pointer fields are optional and decode to nil when absent; non-pointer
// fields without a default are required. Decoding is strict: an unknown
// key or a value of the wrong kind fails the call on the native side.
//
// # Supertype unification
//
// An entry point registered with [WithSupertypeUnification] has its bound
// columns cast to their common supertype before dispatch, following a
// fixed promotion lattice over the numeric types (wider wins, mixed
// signedness widens to the next signed type, float contaminates). The
// result is order-independent: any permutation of the same input types
// unifies to the same supertype.
//
// # Dispatch
//
// Invoke is synchronous: it binds, encodes, resolves, runs the native
// function and returns. There are no suspension points and no mid-dispatch
// cancellation. An entry point's mode fixes its output contract:
//
//   - Elementwise (the default): the output length must equal the input
//     batch length, with positional row correspondence. A violation is
//     detected by the dispatcher and fails the call.
//   - Aggregate ([WithAggregateMode]): the output length is under the
//     native function's control.
//
// # Failures
//
// Every dispatch failure is a [*PluginError] carrying one of six
// [FailureKind] values: plugin not found, arity mismatch, type
// unification, encoding, native compute, and contract violation. Error
// strings always contain [FailureMarker], so hosts can classify plugin
// failures with a substring match. A panic inside a native function is
// recovered and reported as a native compute failure with a captured
// traceback; it never crosses Invoke as a panic. Out-of-band process
// death (the native side aborting the whole process) is outside this
// taxonomy: no Go error value can describe a process that no longer runs.
//
// # Introspection
//
// [Collection.Describe] builds a one-row-per-function Arrow batch with the
// collection identity in its custom metadata. [WriteManifest] and
// [ReadManifest] persist that batch as a zstd-compressed IPC stream for
// hosts that want collection metadata without loading native code.
//
// # Concurrency
//
// A Collection is immutable once registration completes. A Dispatcher is
// safe for concurrent Invoke calls; configure it with the Set* methods
// before serving. Concurrent first resolutions of one entry point collapse
// into a single locator lookup.
package vgiudf
