// Package task is the scheduler driver for async-lifted exports.
//
// An export shim starts its work with FirstPoll and returns the result word
// to the host. Until that word is EXIT, the host calls Scheduler.Callback
// with each event for the task's waitable set:
//
//	sched := task.New(canon.Guest{})
//
//	func exportStart() uint32 {
//	    return task.FirstPoll(sched, work(), func(v Result) { taskReturn(v) })
//	}
//
//	func exportCallback(e0, e1, e2 uint32) uint32 {
//	    return sched.Callback(e0, e1, e2)
//	}
//
// # Poll Loop
//
// Each pass polls every queued future once and then merges the futures
// spawned during the pass. Passes repeat while they make progress. When the
// collection is empty the task exits; otherwise it yields if a future woke
// it and waits on its waitable set if not. A pending task with neither a
// wake nor a registered waitable can never resume and is reported as a
// deadlock.
//
// # Protocol Errors
//
// A callback with no task in the context slot, an unknown event code, or an
// event for a waitable nobody registered means guest and host disagree
// about state. These panic with an *errors.Error; there is nothing to
// recover.
package task
