// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
)

// kernelFunc is the internal shape every registered native function is
// wrapped into: invocation context, bound input columns, and the encoded
// scalar configuration payload.
type kernelFunc func(*CallContext, []Column, []byte) (Column, error)

// OutputTypeFunc declares a native function's output type as a function of
// its input types. When declared, the dispatcher validates the returned
// column against it after each call.
type OutputTypeFunc func(inputs []arrow.DataType) (arrow.DataType, error)

// Function is one registered native entry point within a Collection.
type Function struct {
	name         string
	arity        int // declared argument count, -1 when variadic
	hasKwargs    bool
	kwargsSchema *arrow.Schema  // nil for functions without kwargs
	outputType   OutputTypeFunc // nil when undeclared
	fixedOutput  arrow.DataType // set by WithOutputType, for introspection
	kernel       kernelFunc
}

// Name returns the function's registered name.
func (f *Function) Name() string {
	return f.name
}

// Arity returns the function's declared argument count, or -1 when the
// function is variadic.
func (f *Function) Arity() int {
	return f.arity
}

// HasKwargs reports whether the function declares scalar configuration.
func (f *Function) HasKwargs() bool {
	return f.hasKwargs
}

// KwargsSchema returns the Arrow schema of the function's kwargs struct,
// or nil for functions without kwargs.
func (f *Function) KwargsSchema() *arrow.Schema {
	return f.kwargsSchema
}

// FuncOption customizes a Function at registration time.
type FuncOption func(*Function)

// WithArity declares the function's argument count. The dispatcher rejects
// calls with a different number of bound columns before invoking the
// kernel.
func WithArity(n int) FuncOption {
	return func(f *Function) {
		if n < 0 {
			panic(fmt.Sprintf("vgiudf: registering %q: negative arity %d", f.name, n))
		}
		f.arity = n
	}
}

// WithOutputType declares a fixed output type, validated after each call.
func WithOutputType(dt arrow.DataType) FuncOption {
	return func(f *Function) {
		f.fixedOutput = dt
		f.outputType = func([]arrow.DataType) (arrow.DataType, error) {
			return dt, nil
		}
	}
}

// WithOutputTypeFunc declares an input-dependent output type, validated
// after each call.
func WithOutputTypeFunc(fn OutputTypeFunc) FuncOption {
	return func(f *Function) {
		f.outputType = fn
	}
}

// Collection is a named set of native functions: the artifact a Locator
// resolves a collection identifier to.
type Collection struct {
	name  string
	funcs map[string]*Function
}

// NewCollection creates an empty collection. Functions are registered with
// [Func] and [FuncWithKwargs] at startup; a Collection is immutable and safe
// for concurrent use once registration is complete.
func NewCollection(name string) *Collection {
	if name == "" {
		panic("vgiudf: collection name must not be empty")
	}
	return &Collection{
		name:  name,
		funcs: make(map[string]*Function),
	}
}

// Name returns the collection's name.
func (c *Collection) Name() string {
	return c.name
}

// Lookup returns the named function.
func (c *Collection) Lookup(name string) (*Function, bool) {
	f, ok := c.funcs[name]
	return f, ok
}

// Functions returns the registered function names, sorted.
func (c *Collection) Functions() []string {
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Collection) add(f *Function) {
	if f.name == "" {
		panic(fmt.Sprintf("vgiudf: collection %q: function name must not be empty", c.name))
	}
	if _, ok := c.funcs[f.name]; ok {
		panic(fmt.Sprintf("vgiudf: function %q already registered in collection %q", f.name, c.name))
	}
	c.funcs[f.name] = f
}

// Func registers a native function that takes no scalar configuration. The
// function receives read-only column views and returns one newly allocated
// output column. A call that carries configuration anyway fails on the
// native side.
func Func(c *Collection, name string, fn func(*CallContext, []Column) (Column, error), opts ...FuncOption) {
	f := &Function{
		name:  name,
		arity: -1,
		kernel: func(cc *CallContext, in []Column, kwargs []byte) (Column, error) {
			if len(kwargs) > 0 {
				return Column{}, fmt.Errorf("function %q accepts no kwargs", name)
			}
			return fn(cc, in)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	c.add(f)
}

// FuncWithKwargs registers a native function whose scalar configuration is
// decoded into K before each call. K must be a struct with `udf` tags;
// pointer fields are optional and `default=` tag values fill absent keys.
// Decoding is strict, so type-confused configuration fails on the native
// side of the boundary.
func FuncWithKwargs[K any](c *Collection, name string, fn func(*CallContext, []Column, K) (Column, error), opts ...FuncOption) {
	var k K
	schema, err := kwargsSchema(reflect.TypeOf(k))
	if err != nil {
		panic(fmt.Sprintf("vgiudf: registering %q: invalid kwargs type %T: %v", name, k, err))
	}

	f := &Function{
		name:         name,
		arity:        -1,
		hasKwargs:    true,
		kwargsSchema: schema,
		kernel: func(cc *CallContext, in []Column, kwargs []byte) (Column, error) {
			var k K
			if err := decodeConfigInto(kwargs, &k); err != nil {
				return Column{}, fmt.Errorf("decoding kwargs: %w", err)
			}
			return fn(cc, in, k)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	c.add(f)
}
