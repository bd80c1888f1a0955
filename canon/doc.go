// Package canon declares the host intrinsics the async scheduler depends on.
//
// The Host interface is the scheduler's only view of the outside world:
// the instance-local context slot, yielding, backpressure, subtask and
// waitable-set management, and event handles used for stream and future
// readiness. Guest builds (GOOS=wasip1) import the built-ins from the
// "$root" module with go:wasmimport; native builds run against
// loopback.Host, and hostabi exposes the same functions to guests running
// under wazero.
package canon
