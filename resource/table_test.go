package resource

import (
	"testing"

	"github.com/wippyai/wit-async/abi"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	drops *int
}

func (d dropCounter) Drop() { *d.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable[string]("names")

	h := table.Insert("test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %q, %v", val, ok)
	}

	val, ok = table.Remove(h)
	if !ok || val != "test" {
		t.Fatalf("Remove = %q, %v", val, ok)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, ok := table.Remove(h); ok {
		t.Error("double Remove should fail")
	}
	if _, ok := table.Get(0); ok {
		t.Error("handle 0 must be invalid")
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable[int]("ints")

	h1 := table.Insert(1)
	h2 := table.Insert(2)
	h3 := table.Insert(3)
	if h1 != 1 || h2 != 2 || h3 != 3 {
		t.Fatalf("handles = %d %d %d, want 1 2 3", h1, h2, h3)
	}

	table.Remove(h2)
	table.Remove(h1)

	// Most recently freed first.
	if h := table.Insert(4); h != h1 {
		t.Errorf("reused %d, want %d", h, h1)
	}
	if h := table.Insert(5); h != h2 {
		t.Errorf("reused %d, want %d", h, h2)
	}
	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}
}

func TestTable_Checkout(t *testing.T) {
	table := NewTable[string]("tasks")
	h := table.Insert("task")

	v, ok := table.Checkout(h)
	if !ok || v != "task" {
		t.Fatalf("Checkout = %q, %v", v, ok)
	}
	if _, ok := table.Get(h); ok {
		t.Error("Get must fail while checked out")
	}
	if _, ok := table.Checkout(h); ok {
		t.Error("second Checkout must fail")
	}
	if !table.Contains(h) {
		t.Error("checked-out handle should still be allocated")
	}

	table.Checkin(h, "task2")
	if v, ok := table.Get(h); !ok || v != "task2" {
		t.Errorf("Get after Checkin = %q, %v", v, ok)
	}

	defer func() {
		if recover() == nil {
			t.Error("Checkin of a handle that is not checked out should panic")
		}
	}()
	table.Checkin(h, "again")
}

func TestTable_RemoveCheckedOut(t *testing.T) {
	table := NewTable[string]("tasks")
	h := table.Insert("task")
	table.Checkout(h)

	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove of a checked-out handle failed")
	}
	if table.Contains(h) {
		t.Error("handle still allocated")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable[string]("names")
	obs := &testObserver{}
	stop := table.Subscribe(obs)

	h := table.Insert("test")
	table.Checkout(h)
	table.Checkin(h, "test")
	table.Remove(h)

	want := []EventType{EventCreated, EventCheckedOut, EventCheckedIn, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Errorf("event %d = %s, want %s", i, obs.events[i].Type, typ)
		}
		if obs.events[i].Handle != h || obs.events[i].Table != "names" {
			t.Errorf("event %d = %+v", i, obs.events[i])
		}
	}

	stop()
	table.Insert("other")
	if len(obs.events) != len(want) {
		t.Error("observer notified after stop")
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	table := NewTable[int]("ints")
	var seen []abi.Handle
	table.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventCreated {
			seen = append(seen, e.Handle)
		}
	}))

	table.Insert(1)
	table.Insert(2)
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("seen = %v", seen)
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable[int]("ints")
	for i := 1; i <= 4; i++ {
		table.Insert(i * 10)
	}
	table.Remove(2)
	table.Checkout(3)

	var got []int
	table.Each(func(_ abi.Handle, v int) bool {
		got = append(got, v)
		return true
	})
	if len(got) != 2 || got[0] != 10 || got[1] != 40 {
		t.Errorf("Each = %v, want [10 40]", got)
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable[dropCounter]("droppers")
	drops := 0
	table.Insert(dropCounter{drops: &drops})
	table.Insert(dropCounter{drops: &drops})

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
	if h := table.Insert(dropCounter{drops: &drops}); h != 0 {
		t.Error("Insert after Close should return 0")
	}
	if err := table.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
