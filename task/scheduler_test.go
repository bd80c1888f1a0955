package task

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/resource"
)

// fakeHost records the built-ins the scheduler calls. WaitableSetWait
// returns the queued events in order.
type fakeHost struct {
	sets         map[abi.Handle]bool
	joined       map[abi.Handle]abi.Handle
	events       []abi.Event
	backpressure []bool
	slot         uint32
	next         abi.Handle
	minted       int
	yields       int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		sets:   make(map[abi.Handle]bool),
		joined: make(map[abi.Handle]abi.Handle),
	}
}

func (h *fakeHost) ContextGet() uint32 { return h.slot }
func (h *fakeHost) ContextSet(v uint32) { h.slot = v }
func (h *fakeHost) Yield() { h.yields++ }
func (h *fakeHost) SubtaskDrop(abi.Handle) {}
func (h *fakeHost) EventDrop(abi.Handle) {}
func (h *fakeHost) EventTrigger(abi.Handle, abi.EventCode, uint32) {}

func (h *fakeHost) BackpressureSet(enabled bool) {
	h.backpressure = append(h.backpressure, enabled)
}

func (h *fakeHost) handle() abi.Handle {
	h.next++
	return h.next
}

func (h *fakeHost) EventNew() abi.Handle { return h.handle() }

func (h *fakeHost) WaitableSetNew() abi.Handle {
	s := h.handle()
	h.sets[s] = true
	h.minted++
	return s
}

func (h *fakeHost) WaitableSetDrop(set abi.Handle) {
	for w, s := range h.joined {
		if s == set {
			panic(fmt.Sprintf("fakeHost: dropping set %d with waitable %d joined", set, w))
		}
	}
	delete(h.sets, set)
}

func (h *fakeHost) WaitableJoin(w, set abi.Handle) {
	if set == 0 {
		delete(h.joined, w)
		return
	}
	h.joined[w] = set
}

func (h *fakeHost) WaitableSetWait(set abi.Handle) abi.Event {
	if len(h.events) == 0 {
		panic("fakeHost: no event queued")
	}
	ev := h.events[0]
	h.events = h.events[1:]
	if h.joined[ev.Waitable] != set {
		panic("fakeHost: event for a waitable outside the set")
	}
	return ev
}

// waitOn is a future that registers w and completes with the aux word of
// its event.
func waitOn(w abi.Handle) future.Future[uint32] {
	var (
		registered bool
		fired      bool
		aux        uint32
	)
	return future.Func[uint32](func(cx *future.Context) (uint32, bool) {
		if fired {
			return aux, true
		}
		if !registered {
			registered = true
			cx.Register(w, func(a uint32) {
				aux = a
				fired = true
				cx.Waker().Wake()
			})
		}
		return 0, false
	})
}

func record(order *[]string, name string) future.Future[future.Unit] {
	return future.Func[future.Unit](func(*future.Context) (future.Unit, bool) {
		*order = append(*order, name)
		return future.Unit{}, true
	})
}

func expectPanic(t *testing.T, kind errors.Kind, fn func()) *errors.Error {
	t.Helper()
	var got *errors.Error
	func() {
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !stderrors.As(err, &got) {
				t.Fatalf("expected *errors.Error panic, got %v", r)
			}
		}()
		fn()
	}()
	if got.Kind != kind {
		t.Errorf("Kind = %s, want %s (%v)", got.Kind, kind, got)
	}
	return got
}

func TestFirstPoll_ReadyExits(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	var got int
	word := FirstPoll(s, future.Ready(5), func(v int) { got = v })

	if code, _ := abi.UnpackCallback(word); code != abi.CallbackExit {
		t.Fatalf("code = %s, want EXIT", code)
	}
	if got != 5 {
		t.Errorf("onDone got %d, want 5", got)
	}
	if h.minted != 0 {
		t.Errorf("minted %d waitable sets, want 0", h.minted)
	}
	if h.slot != 0 {
		t.Errorf("context slot = %d after exit, want 0", h.slot)
	}
	if st := s.Stats(); st.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0", st.Tasks)
	}
}

func TestFirstPoll_SpawnsDrainedBeforeExit(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	var order []string
	root := future.Func[int](func(cx *future.Context) (int, bool) {
		order = append(order, "root")
		cx.Spawn(record(&order, "a"))
		s.Spawn(future.Func[future.Unit](func(cx *future.Context) (future.Unit, bool) {
			order = append(order, "b")
			cx.Spawn(record(&order, "c"))
			return future.Unit{}, true
		}))
		return 0, true
	})

	word := FirstPoll[int](s, root, nil)
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackExit {
		t.Fatalf("code = %s, want EXIT", code)
	}
	want := []string{"root", "a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestFirstPoll_SelfWakeYields(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	done := false
	word := FirstPoll(s, future.YieldNow(), func(future.Unit) { done = true })
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackYield {
		t.Fatalf("code = %s, want YIELD", code)
	}
	if h.slot == 0 {
		t.Fatal("context slot not set while the task is alive")
	}
	if s.Stats().Tasks != 1 {
		t.Errorf("Tasks = %d, want 1", s.Stats().Tasks)
	}

	word = s.Callback(uint32(abi.EventNone), 0, 0)
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackExit {
		t.Fatalf("code = %s, want EXIT", code)
	}
	if !done || h.slot != 0 {
		t.Errorf("done = %v, slot = %d", done, h.slot)
	}
}

func TestFirstPoll_WaitThenCallback(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	w := h.EventNew()

	var got uint32
	word := FirstPoll(s, waitOn(w), func(v uint32) { got = v })

	code, set := abi.UnpackCallback(word)
	if code != abi.CallbackWait {
		t.Fatalf("code = %s, want WAIT", code)
	}
	if set == 0 || h.joined[w] != set {
		t.Fatalf("set = %d, joined = %v", set, h.joined)
	}

	word = s.Callback(uint32(abi.EventStreamRead), uint32(w), 7)
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackExit {
		t.Fatalf("code = %s, want EXIT", code)
	}
	if got != 7 {
		t.Errorf("aux = %d, want 7", got)
	}
	if len(h.joined) != 0 || len(h.sets) != 0 {
		t.Errorf("joined = %v, sets = %v", h.joined, h.sets)
	}
	st := s.Stats()
	if st.Callbacks != 1 || st.Waits != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCallback_CallEventsCarryStatus(t *testing.T) {
	tests := []struct {
		name string
		code abi.EventCode
		want abi.CallStatus
	}{
		{"started", abi.EventCallStarted, abi.StatusStarted},
		{"returned", abi.EventCallReturned, abi.StatusReturned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			s := New(h)
			w := h.EventNew()

			var got uint32
			FirstPoll(s, waitOn(w), func(v uint32) { got = v })
			s.Callback(uint32(tt.code), uint32(w), 999)
			if abi.CallStatus(got) != tt.want {
				t.Errorf("status = %d, want %s", got, tt.want)
			}
		})
	}
}

func TestPollLoop_PendingWithoutWaitablePanics(t *testing.T) {
	s := New(newFakeHost())
	stuck := future.Func[int](func(*future.Context) (int, bool) { return 0, false })

	expectPanic(t, errors.KindDeadlock, func() {
		FirstPoll[int](s, stuck, nil)
	})
}

func TestPollLoop_ExitWithWaitablesPanics(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	w := h.EventNew()
	leaky := future.Func[int](func(cx *future.Context) (int, bool) {
		cx.Register(w, func(uint32) {})
		return 1, true
	})

	e := expectPanic(t, errors.KindProtocol, func() {
		FirstPoll[int](s, leaky, nil)
	})
	if e.Phase != errors.PhaseSchedule {
		t.Errorf("Phase = %s", e.Phase)
	}
}

func TestCallback_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		event func(w abi.Handle) (uint32, uint32, uint32)
		start bool
		kind  errors.Kind
	}{
		{
			name:  "no active task",
			event: func(abi.Handle) (uint32, uint32, uint32) { return 0, 0, 0 },
			kind:  errors.KindNotInitialized,
		},
		{
			name:  "unknown event code",
			event: func(w abi.Handle) (uint32, uint32, uint32) { return 4, uint32(w), 0 },
			start: true,
			kind:  errors.KindProtocol,
		},
		{
			name: "unregistered waitable",
			event: func(abi.Handle) (uint32, uint32, uint32) {
				return uint32(abi.EventStreamRead), 99, 0
			},
			start: true,
			kind:  errors.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			s := New(h)
			w := h.EventNew()
			if tt.start {
				FirstPoll(s, waitOn(w), nil)
			}

			e0, e1, e2 := tt.event(w)
			e := expectPanic(t, tt.kind, func() { s.Callback(e0, e1, e2) })
			if e.Phase != errors.PhaseCallback {
				t.Errorf("Phase = %s, want callback", e.Phase)
			}
		})
	}
}

func TestTask_Unregister(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	w := h.EventNew()

	polls := 0
	f := future.Func[int](func(cx *future.Context) (int, bool) {
		polls++
		if polls == 1 {
			cx.Register(w, func(uint32) {})
			cx.Waker().Wake()
			return 0, false
		}
		cx.Unregister(w)
		cx.Unregister(w)
		return 1, true
	})

	word := FirstPoll[int](s, f, nil)
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackYield {
		t.Fatalf("code = %s, want YIELD", code)
	}
	word = s.Callback(0, 0, 0)
	if code, _ := abi.UnpackCallback(word); code != abi.CallbackExit {
		t.Fatalf("code = %s, want EXIT", code)
	}
	if _, joined := h.joined[w]; joined {
		t.Error("waitable still joined after Unregister")
	}
}

func TestBlockOn(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	w := h.EventNew()
	h.events = []abi.Event{{Code: abi.EventStreamWrite, Waitable: w, Aux: 3}}

	got := BlockOn(s, future.Then(future.YieldNow(), func(future.Unit) future.Future[uint32] {
		return waitOn(w)
	}))
	if got != 3 {
		t.Errorf("BlockOn = %d, want 3", got)
	}
	if h.yields != 1 {
		t.Errorf("yields = %d, want 1", h.yields)
	}
	if s.Active() != nil {
		t.Error("active task not restored")
	}
	if s.Stats().Tasks != 0 || len(h.sets) != 0 {
		t.Errorf("tasks = %d, sets = %v", s.Stats().Tasks, h.sets)
	}
}

func TestBlockOn_NestedRestoresActive(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	var outer, after *Task
	var inner int
	root := future.Func[int](func(*future.Context) (int, bool) {
		outer = s.Active()
		inner = BlockOn(s, future.Ready(9))
		after = s.Active()
		return inner, true
	})

	FirstPoll[int](s, root, nil)
	if outer == nil || outer != after {
		t.Errorf("active before = %p, after = %p", outer, after)
	}
	if inner != 9 {
		t.Errorf("inner = %d, want 9", inner)
	}
}

func TestSpawn_NoActiveTask(t *testing.T) {
	s := New(newFakeHost())
	expectPanic(t, errors.KindNotInitialized, func() {
		s.Spawn(future.Discard(future.Ready(1)))
	})
}

func TestScheduler_HostPassThrough(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	s.Yield()
	s.BackpressureSet(true)
	s.BackpressureSet(false)

	if h.yields != 1 {
		t.Errorf("yields = %d, want 1", h.yields)
	}
	if len(h.backpressure) != 2 || !h.backpressure[0] || h.backpressure[1] {
		t.Errorf("backpressure = %v", h.backpressure)
	}
}

func TestScheduler_Observe(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	var types []resource.EventType
	stop := s.Observe(resource.ObserverFunc(func(e resource.Event) {
		types = append(types, e.Type)
	}))
	defer stop()

	FirstPoll(s, future.YieldNow(), nil)
	s.Callback(0, 0, 0)

	want := []resource.EventType{
		resource.EventCreated, resource.EventCheckedOut, resource.EventCheckedIn,
		resource.EventCheckedOut, resource.EventDropped,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}
