// Package resource provides the integer handle tables used on both sides of
// the async ABI.
//
// The guest scheduler keeps its live tasks in a Table and stores only the
// task's handle in the instance-local context slot. The loopback host keeps
// waitables, waitable sets and subtasks in tables of its own, so handles
// look exactly like the ones a real host mints: small, non-zero and reused.
//
// # Handle Table
//
//	tasks := resource.NewTable[*Task]("tasks")
//
//	h := tasks.Insert(t)        // h != 0
//	t, ok := tasks.Get(h)
//	t, ok = tasks.Remove(h)     // h may be reissued
//
// # Exclusive Access
//
// Checkout hides an entry until Checkin puts it back. While checked out,
// Get and Checkout fail, which turns a re-entrant poll of the same task
// into a visible error instead of aliased state:
//
//	t, ok := tasks.Checkout(h)
//	// ... poll t ...
//	tasks.Checkin(h, t)
//
// # Observers
//
// Subscribe receives every lifecycle event; the returned function removes
// the observer:
//
//	stop := tasks.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %d %s", e.Table, e.Handle, e.Type)
//	}))
//	defer stop()
package resource
