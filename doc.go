// Package witasync implements the guest side of the WebAssembly Component
// Model async protocol for Go: a cooperative, single-threaded task scheduler
// driven by host-delivered events.
//
// A component instance has no threads of its own. Async-lifted exports,
// calls to async-lowered imports (subtasks) and stream/future transfers are
// all multiplexed onto the instance by a scheduler that the host drives
// through a callback. This module provides that scheduler together with the
// memory-layout and ownership plumbing around it.
//
// # Architecture Overview
//
//	witasync/        Root package with the Allocator capability
//	├── abi/         Wire vocabulary: event, status and callback codes
//	├── layout/      Described parameter/result layouts built from WIT types
//	├── canon/       Host intrinsics consumed by the scheduler
//	├── future/      Poll-based futures, wakers and combinators
//	├── waitable/    Waitable registry and waitable sets
//	├── task/        Scheduler driver: FirstPoll, Callback, BlockOn, Spawn
//	├── subtask/     State machine for calls to async-lowered imports
//	├── stream/      AbiBuffer, stream primitive, readers and writers
//	├── resource/    Handle tables for host-minted handles and task slots
//	├── loopback/    In-process host used for native execution and tests
//	├── hostabi/     wazero host module exposing the intrinsics to guests
//	└── errors/      Structured error types
//
// # Quick Start
//
// An async export shim hands its future to the scheduler and returns the
// callback code to the host:
//
//	sched := task.NewScheduler(host)
//
//	//go:wasmexport [async-lift]my:pkg/api#run
//	func run() uint32 {
//	    return task.FirstPoll(sched, work(), func(struct{}) {})
//	}
//
//	//go:wasmexport [callback][async-lift]my:pkg/api#run
//	func runCallback(code, waitable, aux uint32) uint32 {
//	    return sched.Callback(code, waitable, aux)
//	}
//
// # Thread Safety
//
// The scheduler is single-threaded: exactly one task polls at a
// time and nothing is preempted. Only the stream primitive uses atomics,
// because its reader and writer are logically concurrent.
//
// # Memory Model
//
// Parameter, result and staging regions are obtained from an Allocator and
// stay pinned until the host has finished with them. A call's memory is
// never released while the host may still read or write it.
package witasync
