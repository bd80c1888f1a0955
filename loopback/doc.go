// Package loopback is an in-process implementation of the component-model
// async built-ins.
//
// A Host hands out waitable sets, events and subtask handles from one
// handle table and delivers triggered events oldest first. RunExport plays
// the role of the embedding runtime: it calls an export's entry point, then
// keeps invoking its callback with events until the export exits. Import
// wraps a Go function as an async-lowered import whose completion can be
// deferred to later host steps with Defer.
//
// The package lets the scheduler, subtasks and streams run natively and in
// tests with the same code paths they take inside a wasm guest.
package loopback
