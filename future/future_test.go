package future

import (
	"testing"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/waitable"
)

type fakeRegistry struct {
	m *waitable.Map
}

func (r *fakeRegistry) Register(w abi.Handle, cb waitable.Callback) { r.m.Insert(w, cb) }
func (r *fakeRegistry) Unregister(w abi.Handle) { r.m.Remove(w) }

type fakeSpawner struct {
	spawned []Future[Unit]
}

func (s *fakeSpawner) Spawn(f Future[Unit]) { s.spawned = append(s.spawned, f) }

// pendingN completes after n pending polls, waking the task each time.
func pendingN(n int, v int) Future[int] {
	return Func[int](func(cx *Context) (int, bool) {
		if n > 0 {
			n--
			cx.Waker().Wake()
			return 0, false
		}
		return v, true
	})
}

func TestWaker(t *testing.T) {
	var w Waker
	if w.Woken() {
		t.Fatal("fresh waker is woken")
	}
	w.Wake()
	if !w.Reset() {
		t.Error("Reset should report the previous wake")
	}
	if w.Woken() {
		t.Error("Reset should clear the flag")
	}

	var nilWaker *Waker
	nilWaker.Wake()
	if nilWaker.Woken() {
		t.Error("nil waker reports woken")
	}
}

func TestCombinators(t *testing.T) {
	tests := []struct {
		name  string
		f     Future[int]
		polls int
		want  int
	}{
		{"ready", Ready(7), 1, 7},
		{"map", Map(Ready(2), func(v int) int { return v * 10 }), 1, 20},
		{"map pending", Map(pendingN(2, 3), func(v int) int { return v + 1 }), 3, 4},
		{"then", Then(pendingN(1, 5), func(v int) Future[int] { return pendingN(1, v*2) }), 3, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx := NewContext(&Waker{}, nil, nil)
			var got int
			var ok bool
			polls := 0
			for !ok {
				polls++
				if polls > 10 {
					t.Fatal("future never completed")
				}
				got, ok = tt.f.Poll(cx)
				if !ok && !cx.Waker().Reset() {
					t.Fatal("pending future did not wake the task")
				}
			}
			if polls != tt.polls {
				t.Errorf("completed after %d polls, want %d", polls, tt.polls)
			}
			if got != tt.want {
				t.Errorf("value = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJoin_OrderPreserved(t *testing.T) {
	cx := NewContext(&Waker{}, nil, nil)
	j := Join(pendingN(2, 1), Ready(2), pendingN(1, 3))

	for i := 0; i < 2; i++ {
		if _, ok := j.Poll(cx); ok {
			t.Fatalf("join completed early on poll %d", i+1)
		}
	}
	vals, ok := j.Poll(cx)
	if !ok {
		t.Fatal("join not complete after third poll")
	}
	want := []int{1, 2, 3}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("vals = %v, want %v", vals, want)
			break
		}
	}
}

func TestYieldNow(t *testing.T) {
	cx := NewContext(&Waker{}, nil, nil)
	y := YieldNow()

	if _, ok := y.Poll(cx); ok {
		t.Fatal("YieldNow completed on first poll")
	}
	if !cx.Waker().Woken() {
		t.Fatal("YieldNow must wake the task")
	}
	if _, ok := y.Poll(cx); !ok {
		t.Fatal("YieldNow not complete on second poll")
	}
}

func TestPollAfterCompletionPanics(t *testing.T) {
	f := Ready(1)
	cx := NewContext(&Waker{}, nil, nil)
	f.Poll(cx)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	f.Poll(cx)
}

func TestContext_RegisterAndSpawn(t *testing.T) {
	reg := &fakeRegistry{m: waitable.NewMap()}
	sp := &fakeSpawner{}
	cx := NewContext(&Waker{}, reg, sp)

	cx.Register(4, func(uint32) {})
	if !reg.m.Contains(4) {
		t.Fatal("Register did not reach the registry")
	}
	cx.Unregister(4)
	if reg.m.Len() != 0 {
		t.Error("Unregister did not reach the registry")
	}

	cx.Spawn(Discard(Ready(1)))
	if len(sp.spawned) != 1 {
		t.Errorf("spawned = %d, want 1", len(sp.spawned))
	}
}

func TestContext_MissingCapabilities(t *testing.T) {
	cx := NewContext(&Waker{}, nil, nil)

	for name, fn := range map[string]func(){
		"register": func() { cx.Register(1, func(uint32) {}) },
		"spawn":    func() { cx.Spawn(Discard(Ready(0))) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}
