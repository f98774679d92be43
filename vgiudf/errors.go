package vgiudf

import (
	"fmt"
	"runtime"
)

// ErrPlugin is a sentinel for use with errors.Is to check whether any error
// in a chain is a *PluginError.
var ErrPlugin = &PluginError{}

// FailureMarker is the stable substring embedded in every PluginError
// message. Callers match on it to recognize plugin-originated failures
// without depending on the full message text.
const FailureMarker = "the plugin failed"

// FailureKind classifies a dispatch failure.
type FailureKind int

const (
	// FailurePluginNotFound: the collection could not be located or the
	// function name is absent from it. Reported before any columnar data
	// is bound or transferred.
	FailurePluginNotFound FailureKind = iota
	// FailureArityMismatch: the caller supplied the wrong number of
	// columnar arguments for the entry point's declared arity.
	FailureArityMismatch
	// FailureTypeUnification: no common supertype exists across the bound
	// inputs when supertype unification was requested.
	FailureTypeUnification
	// FailureEncoding: a scalar configuration value is not one of the
	// supported kinds.
	FailureEncoding
	// FailureNativeCompute: the native function signaled failure, either
	// by returning an error or by panicking.
	FailureNativeCompute
	// FailureContractViolation: the native function broke the columnar
	// contract, e.g. an elementwise function returned a row count that
	// does not match its input.
	FailureContractViolation
)

func (k FailureKind) String() string {
	switch k {
	case FailurePluginNotFound:
		return "PluginNotFound"
	case FailureArityMismatch:
		return "ArityMismatch"
	case FailureTypeUnification:
		return "TypeUnification"
	case FailureEncoding:
		return "EncodingError"
	case FailureNativeCompute:
		return "NativeComputeFailure"
	case FailureContractViolation:
		return "ContractViolation"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// PluginError represents a failure in the vgi_udf dispatch contract. Every
// failure mode except a process-fatal native trap is normalized into this
// one catchable form; a trap that takes down the process has no error
// representation at all (see the package documentation on process aborts).
type PluginError struct {
	Kind         FailureKind
	Message      string
	Collection   string
	Function     string
	InvocationID string
	Traceback    string // populated when a recovered panic is normalized
	cause        error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("%s: %s with message: %s", e.Kind, FailureMarker, e.Message)
}

// Is supports errors.Is by matching any *PluginError target.
func (e *PluginError) Is(target error) bool {
	_, ok := target.(*PluginError)
	return ok
}

// Unwrap exposes the underlying native error, when one exists.
func (e *PluginError) Unwrap() error {
	return e.cause
}

// captureTraceback records the current goroutine's stack. Used when a
// recovered kernel panic is normalized into a PluginError.
func captureTraceback() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
