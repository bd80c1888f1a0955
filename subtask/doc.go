// Package subtask implements calls to async-lowered imports.
//
// Generated code describes each import through the Import interface: the
// call's memory layout and the functions that lower parameters, free their
// list payloads, lift results and make the raw call. Start wraps one call
// as a future:
//
//	r := task.BlockOn(sched, subtask.Start(sched, fetchImport{}, url))
//
// # Memory Ownership
//
// Parameters and results share one allocation. The host reads the
// parameters until it reports STARTED and writes results until it reports
// RETURNED, so list payloads are freed at STARTED (or at RETURNED if the
// host skipped STARTED) and the block itself only after results are lifted.
// The subtask handle is dropped once, right after the lift.
//
// Because the host may still own part of the block, a call cannot be
// abandoned while it is in flight: Close aborts in that case.
package subtask
