// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Mode selects the execution contract of an entry point.
type Mode int

const (
	// ModeElementwise guarantees the output row count equals the input
	// batch length with positional row correspondence. The dispatcher
	// enforces the length half of the contract; correspondence is the
	// native function's responsibility.
	ModeElementwise Mode = iota
	// ModeAggregate places the output length under the native function's
	// control.
	ModeAggregate
)

func (m Mode) String() string {
	return modeString(m)
}

// EntryPoint identifies a (collection, function) pair together with its
// declared execution mode, optional arity hint and supertype-unification
// flag. EntryPoints are immutable. Resolution to the actual native
// function happens lazily at the first dispatch and is cached by the
// Dispatcher, so constructing an entry point for a name that does not
// exist succeeds; the mistake surfaces as PluginNotFound at first Invoke,
// before any columnar data moves.
type EntryPoint struct {
	collection string
	function   string
	mode       Mode
	arityHint  int
	unify      bool
}

// Collection returns the collection identifier.
func (ep *EntryPoint) Collection() string { return ep.collection }

// Function returns the native function name.
func (ep *EntryPoint) Function() string { return ep.function }

// Mode returns the declared execution mode.
func (ep *EntryPoint) Mode() Mode { return ep.mode }

// ArityHint returns the declared argument count, or -1 when not declared.
func (ep *EntryPoint) ArityHint() int { return ep.arityHint }

// UnifySupertypes reports whether bound inputs are cast to their common
// supertype before dispatch.
func (ep *EntryPoint) UnifySupertypes() bool { return ep.unify }

// RegisterOption customizes an EntryPoint at registration time.
type RegisterOption func(*EntryPoint)

// WithArityHint declares the argument count callers will bind. Calls with
// a different input count are rejected with ArityMismatch before binding.
func WithArityHint(n int) RegisterOption {
	return func(ep *EntryPoint) {
		if n < 0 {
			panic(fmt.Sprintf("vgiudf: registering %q: negative arity hint %d", ep.function, n))
		}
		ep.arityHint = n
	}
}

// WithAggregateMode declares the entry point whole-column: output length is
// the native function's responsibility. The default is elementwise.
func WithAggregateMode() RegisterOption {
	return func(ep *EntryPoint) {
		ep.mode = ModeAggregate
	}
}

// WithSupertypeUnification requests that bound inputs be cast to their
// common supertype before dispatch, so the native function may assume
// uniform input types.
func WithSupertypeUnification() RegisterOption {
	return func(ep *EntryPoint) {
		ep.unify = true
	}
}

// invocationState tracks the lifecycle of one dispatch: states advance
// Built -> Bound -> Dispatched and terminate in Succeeded or Failed,
// never revisiting a state.
type invocationState int

const (
	stateBuilt invocationState = iota
	stateBound
	stateDispatched
	stateSucceeded
	stateFailed
)

func (s invocationState) String() string {
	switch s {
	case stateBuilt:
		return "built"
	case stateBound:
		return "bound"
	case stateDispatched:
		return "dispatched"
	case stateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// invocation is the per-call bundle passed through the dispatch pipeline.
// Constructed per call, never reused.
type invocation struct {
	id    string
	ep    *EntryPoint
	state invocationState
}

// Dispatcher routes invocations to native functions obtained from a
// Locator. Invoke is safe for concurrent use over independent requests;
// the Set* mutators are not, so configure the dispatcher before serving
// dispatches.
type Dispatcher struct {
	locator        Locator
	mem            memory.Allocator
	logger         *slog.Logger
	hook           DispatchHook
	hostID         string
	pluginLogLevel LogLevel

	resolved sync.Map // resolveKey -> *Function
	flight   singleflight.Group
}

// NewDispatcher creates a dispatcher resolving collections through loc.
func NewDispatcher(loc Locator) *Dispatcher {
	if loc == nil {
		panic("vgiudf: locator must not be nil")
	}
	return &Dispatcher{
		locator:        loc,
		mem:            memory.NewGoAllocator(),
		logger:         slog.Default(),
		pluginLogLevel: LogTrace,
	}
}

// SetAllocator sets the allocator used for bound literals, casts and call
// contexts. The default is a Go allocator.
func (d *Dispatcher) SetAllocator(mem memory.Allocator) {
	d.mem = mem
}

// SetLogger sets the logger operational messages and forwarded plugin logs
// are written to. The default is slog.Default().
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetDispatchHook registers a hook that is called around each dispatch.
func (d *Dispatcher) SetDispatchHook(hook DispatchHook) {
	d.hook = hook
}

// SetHostID sets a host identifier included in dispatch info, call
// contexts and forwarded logs.
func (d *Dispatcher) SetHostID(id string) {
	d.hostID = id
}

// HostID returns the configured host identifier, if any.
func (d *Dispatcher) HostID() string {
	return d.hostID
}

// SetPluginLogLevel sets the minimum severity recorded by native functions
// through CallContext.Log. The default is LogTrace (record everything; the
// host logger filters).
func (d *Dispatcher) SetPluginLogLevel(level LogLevel) {
	d.pluginLogLevel = level
}

// Register constructs the entry point for a native function. Registration
// is pure descriptor construction and never fails for an unknown name;
// resolution is deferred to the first Invoke. The default mode is
// elementwise without unification.
func (d *Dispatcher) Register(collection, function string, opts ...RegisterOption) *EntryPoint {
	if collection == "" {
		panic("vgiudf: collection identifier must not be empty")
	}
	if function == "" {
		panic("vgiudf: function name must not be empty")
	}
	ep := &EntryPoint{
		collection: collection,
		function:   function,
		mode:       ModeElementwise,
		arityHint:  -1,
	}
	for _, opt := range opts {
		opt(ep)
	}
	return ep
}

// Invoke binds the ordered inputs, encodes the optional scalar config, and
// synchronously dispatches the entry point's native function, blocking
// until it returns. On success the output column's ownership passes to the
// caller, who must Release it; on failure the error is a *PluginError
// carrying the failure kind, except for host-side errors from expression
// inputs and pre-dispatch context cancellation, which propagate unchanged.
//
// There are no suspension points and no mid-dispatch cancellation: once the
// native function is running the call completes or the process aborts.
func (d *Dispatcher) Invoke(ctx context.Context, ep *EntryPoint, inputs []ColumnInput, cfg Config) (Column, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	inv := &invocation{
		id:    uuid.NewString(),
		ep:    ep,
		state: stateBuilt,
	}
	info := DispatchInfo{
		Collection:      ep.collection,
		Function:        ep.function,
		Mode:            modeString(ep.mode),
		HostID:          d.hostID,
		InvocationID:    inv.id,
		UnifySupertypes: ep.unify,
	}
	stats := &CallStatistics{}

	var hookToken HookToken
	var hookActive bool
	if d.hook != nil {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					d.logger.Error("dispatch hook start panic", "err", rv)
				}
			}()
			var hookCtx context.Context
			hookCtx, hookToken = d.hook.OnDispatchStart(ctx, info)
			if hookCtx != nil {
				ctx = hookCtx
			}
			hookActive = true
		}()
	}

	out, err := d.dispatch(ctx, inv, inputs, cfg, stats)

	if hookActive {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					d.logger.Error("dispatch hook end panic", "err", rv)
				}
			}()
			d.hook.OnDispatchEnd(ctx, hookToken, info, stats, err)
		}()
	}
	return out, err
}

// dispatch runs one invocation through the state machine.
func (d *Dispatcher) dispatch(ctx context.Context, inv *invocation, inputs []ColumnInput, cfg Config, stats *CallStatistics) (Column, error) {
	ep := inv.ep

	// Cancellation is honored only before dispatch work begins; there is
	// no mid-dispatch cancellation point.
	if err := ctx.Err(); err != nil {
		return Column{}, d.failDispatch(inv, err)
	}

	if ep.arityHint >= 0 && len(inputs) != ep.arityHint {
		return Column{}, d.failDispatch(inv, &PluginError{
			Kind:    FailureArityMismatch,
			Message: fmt.Sprintf("entry point %q expects %d arguments, got %d", ep.function, ep.arityHint, len(inputs)),
		})
	}

	cols, err := bindInputs(d.mem, inputs)
	if err != nil {
		return Column{}, d.failDispatch(inv, err)
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	batchLen := 0
	if len(cols) > 0 {
		batchLen = cols[0].Len()
	}

	if ep.unify {
		unified, err := unifyColumns(d.mem, cols)
		if err != nil {
			return Column{}, d.failDispatch(inv, err)
		}
		for _, c := range cols {
			c.Release()
		}
		cols = unified
	}

	payload, err := EncodeConfig(cfg)
	if err != nil {
		return Column{}, d.failDispatch(inv, err)
	}

	inv.state = stateBound
	stats.InputRows = int64(batchLen)
	stats.ConfigBytes = int64(len(payload))
	for _, c := range cols {
		stats.RecordInput(columnBufferSize(c))
	}

	// The resolver yields the callable; a missing collection or function
	// surfaces here, before any columnar data crosses the boundary.
	fn, err := d.resolve(ctx, ep)
	if err != nil {
		return Column{}, d.failDispatch(inv, err)
	}
	if fn.arity >= 0 && len(cols) != fn.arity {
		return Column{}, d.failDispatch(inv, &PluginError{
			Kind:    FailureArityMismatch,
			Message: fmt.Sprintf("function %q takes %d arguments, got %d", ep.function, fn.arity, len(cols)),
		})
	}

	callCtx := &CallContext{
		Ctx:          ctx,
		InvocationID: inv.id,
		Collection:   ep.collection,
		Function:     ep.function,
		HostID:       d.hostID,
		Mem:          d.mem,
		LogLevel:     d.pluginLogLevel,
	}

	inv.state = stateDispatched
	out, callErr := d.call(callCtx, fn, cols, payload)
	d.forwardLogs(callCtx)
	if callErr != nil {
		return Column{}, d.failDispatch(inv, callErr)
	}

	if ep.mode == ModeElementwise && out.Len() != batchLen {
		got := out.Len()
		out.Release()
		return Column{}, d.failDispatch(inv, &PluginError{
			Kind:    FailureContractViolation,
			Message: fmt.Sprintf("elementwise function %q returned %d rows for a %d-row batch", ep.function, got, batchLen),
		})
	}
	if fn.outputType != nil {
		if err := validateOutputType(fn, cols, out); err != nil {
			out.Release()
			return Column{}, d.failDispatch(inv, err)
		}
	}

	inv.state = stateSucceeded
	stats.RecordOutput(int64(out.Len()), columnBufferSize(out))
	return out, nil
}

// call invokes the kernel synchronously, normalizing panics and plain
// errors into native compute failures.
func (d *Dispatcher) call(cc *CallContext, fn *Function, cols []Column, payload []byte) (out Column, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			out = Column{}
			err = &PluginError{
				Kind:      FailureNativeCompute,
				Message:   fmt.Sprintf("native function panicked: %v", rv),
				Traceback: captureTraceback(),
			}
		}
	}()

	out, err = fn.kernel(cc, cols, payload)
	if err != nil {
		if out.Data != nil {
			out.Release()
		}
		if errors.Is(err, ErrPlugin) {
			return Column{}, err
		}
		return Column{}, &PluginError{
			Kind:    FailureNativeCompute,
			Message: err.Error(),
			cause:   err,
		}
	}
	return out, nil
}

func validateOutputType(fn *Function, cols []Column, out Column) error {
	types := make([]arrow.DataType, len(cols))
	for i, c := range cols {
		types[i] = c.DataType()
	}
	want, err := fn.outputType(types)
	if err != nil {
		return &PluginError{
			Kind:    FailureContractViolation,
			Message: fmt.Sprintf("output type declaration failed: %v", err),
			cause:   err,
		}
	}
	if want != nil && !arrow.TypeEqual(out.DataType(), want) {
		return &PluginError{
			Kind:    FailureContractViolation,
			Message: fmt.Sprintf("function %q returned %s, declared output type is %s", fn.name, out.DataType(), want),
		}
	}
	return nil
}

// failDispatch marks the invocation failed, stamps provenance onto plugin
// errors, and logs the failure.
func (d *Dispatcher) failDispatch(inv *invocation, err error) error {
	reached := inv.state
	inv.state = stateFailed

	var pe *PluginError
	if errors.As(err, &pe) {
		if pe.Collection == "" {
			pe.Collection = inv.ep.collection
		}
		if pe.Function == "" {
			pe.Function = inv.ep.function
		}
		if pe.InvocationID == "" {
			pe.InvocationID = inv.id
		}
		d.logger.Debug("dispatch failed",
			"collection", inv.ep.collection,
			"function", inv.ep.function,
			"invocation_id", inv.id,
			"state", reached.String(),
			"kind", pe.Kind.String(),
		)
		return err
	}

	d.logger.Debug("dispatch failed",
		"collection", inv.ep.collection,
		"function", inv.ep.function,
		"invocation_id", inv.id,
		"state", reached.String(),
		"err", err,
	)
	return err
}

// forwardLogs drains the call context's plugin logs into the host logger.
func (d *Dispatcher) forwardLogs(cc *CallContext) {
	for _, lm := range cc.drainLogs() {
		args := make([]any, 0, 6+2*len(lm.Extras))
		args = append(args,
			"collection", cc.Collection,
			"function", cc.Function,
			"invocation_id", cc.InvocationID,
		)
		for k, v := range lm.Extras {
			args = append(args, k, v)
		}
		d.logger.Log(cc.Ctx, slogLevel(lm.Level), lm.Message, args...)
	}
}

// resolve maps the entry point to its native function, caching successes.
// Concurrent first resolutions of one key collapse into a single lookup,
// and failures are not cached, so a later fix to the locator's view is
// picked up on retry.
func (d *Dispatcher) resolve(ctx context.Context, ep *EntryPoint) (*Function, error) {
	key := ep.collection + "\x00" + ep.function
	if v, ok := d.resolved.Load(key); ok {
		return v.(*Function), nil
	}

	v, err, _ := d.flight.Do(key, func() (any, error) {
		if v, ok := d.resolved.Load(key); ok {
			return v, nil
		}
		coll, err := d.locator.Locate(ctx, ep.collection)
		if err != nil {
			return nil, &PluginError{
				Kind:    FailurePluginNotFound,
				Message: fmt.Sprintf("cannot locate collection %q: %v", ep.collection, err),
				cause:   err,
			}
		}
		fn, ok := coll.Lookup(ep.function)
		if !ok {
			return nil, &PluginError{
				Kind:    FailurePluginNotFound,
				Message: fmt.Sprintf("collection %q has no function %q", ep.collection, ep.function),
			}
		}
		d.resolved.Store(key, fn)
		d.logger.Debug("resolved plugin function",
			"collection", ep.collection,
			"function", ep.function,
		)
		return fn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Function), nil
}
