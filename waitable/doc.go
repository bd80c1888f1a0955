// Package waitable tracks the host-minted handles a task is waiting on.
//
// Every pending operation (a subtask, a stream or future end) is a waitable.
// While it is pending it lives in exactly one task's Map, bound to the
// Callback that consumes its event, and in exactly one host waitable Set.
// The scheduler removes the entry when the host delivers the event; the
// callback re-registers if it expects more.
package waitable
