// Package future provides the poll-based futures the scheduler drives.
//
// A Future reports readiness from Poll. A pending future must either wake
// the task through the Context's Waker or register a waitable through the
// Context, otherwise the task would wait forever:
//
//	f := future.Func[int](func(cx *future.Context) (int, bool) {
//	    if !done {
//	        cx.Register(handle, func(aux uint32) { done = true; cx.Waker().Wake() })
//	        return 0, false
//	    }
//	    return 42, true
//	})
//
// Combinators (Map, Then, Join, Discard) build larger futures without
// goroutines. YieldNow is the cooperative yield point inside a task.
package future
