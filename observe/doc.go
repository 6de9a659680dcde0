// Package observe provides observability primitives for outbound call
// execution.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The gateway wires the observer's tracer, metrics
// and logger around every call it makes.
package observe
