package main

import (
	"context"
	"fmt"
	"strings"
	"unsafe"

	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/layout"
	"github.com/wippyai/wit-async/loopback"
	"github.com/wippyai/wit-async/stream"
	"github.com/wippyai/wit-async/subtask"
	"github.com/wippyai/wit-async/task"
	"go.bytecodealliance.org/wit"
)

type scenario struct {
	run  func(ctx context.Context, h *loopback.Host, s *task.Scheduler) (string, error)
	name string
	desc string
}

var scenarios = []scenario{
	{name: "spawn", desc: "root task spawns three children that each yield once", run: runSpawn},
	{name: "subtask", desc: "two async import calls completed out of order by the host", run: runSubtask},
	{name: "stream", desc: "a string streamed through a five-byte reader buffer", run: runStream},
	{name: "future", desc: "one value passed through a future", run: runFuture},
}

func findScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func scenarioNames() string {
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.name
	}
	return strings.Join(names, ", ")
}

// export runs f as an async export on h and returns its value.
func export[T any](ctx context.Context, h *loopback.Host, s *task.Scheduler, f future.Future[T]) (T, error) {
	var out T
	err := h.RunExport(ctx, func() uint32 {
		return task.FirstPoll(s, f, func(v T) { out = v })
	}, s.Callback)
	return out, err
}

func runSpawn(ctx context.Context, h *loopback.Host, s *task.Scheduler) (string, error) {
	var order []string
	child := func(name string) future.Future[future.Unit] {
		return future.Map(future.YieldNow(), func(future.Unit) future.Unit {
			order = append(order, name)
			return future.Unit{}
		})
	}
	root := future.Func[future.Unit](func(cx *future.Context) (future.Unit, bool) {
		for _, name := range []string{"a", "b", "c"} {
			cx.Spawn(child(name))
		}
		order = append(order, "root")
		return future.Unit{}, true
	})
	if _, err := export(ctx, h, s, root); err != nil {
		return "", err
	}
	return strings.Join(order, " "), nil
}

// u32Import doubles a u32 on the host side.
type u32Import struct {
	call func(params, results unsafe.Pointer) uint32
	lay  layout.Layout
}

func (i *u32Import) Layout() layout.Layout { return i.lay }
func (i *u32Import) DeallocLists(unsafe.Pointer) {}
func (i *u32Import) LowerParams(p uint32, ptr unsafe.Pointer) { *(*uint32)(ptr) = p }
func (i *u32Import) LiftResults(ptr unsafe.Pointer) uint32 { return *(*uint32)(ptr) }

func (i *u32Import) Call(params, results unsafe.Pointer) uint32 {
	return i.call(params, results)
}

func runSubtask(ctx context.Context, h *loopback.Host, s *task.Scheduler) (string, error) {
	// A call with input n completes after n host steps.
	imp := &u32Import{
		lay: layout.NewBuilder(layout.Host).
			Param("n", wit.U32{}).
			Result("doubled", wit.U32{}).
			MustBuild(),
		call: h.Import(func(c *loopback.Call) {
			n := *(*uint32)(c.Params())
			var step func(left uint32)
			step = func(left uint32) {
				if left == n-1 {
					c.Start()
				}
				if left == 0 {
					*(*uint32)(c.Results()) = n * 2
					c.Return()
					return
				}
				h.Defer(func() { step(left - 1) })
			}
			step(n)
		}),
	}

	calls := future.Join[uint32](
		subtask.Start[uint32, uint32](s, imp, 3),
		subtask.Start[uint32, uint32](s, imp, 1),
	)
	vals, err := export(ctx, h, s, calls)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(vals), nil
}

func runStream(ctx context.Context, h *loopback.Host, s *task.Scheduler) (string, error) {
	w, r := stream.NewStream[byte](h, nil, s.Allocator())
	r.SetBufferSize(5)
	defer r.Close()

	writer := future.Map(w.Write([]byte("hello, async world")), func([]byte) future.Unit {
		w.Close()
		return future.Unit{}
	})
	var chunks []string
	reader := future.Func[future.Unit](func(cx *future.Context) (future.Unit, bool) {
		for {
			batch, ok := r.PollNext(cx)
			if !ok {
				return future.Unit{}, false
			}
			if batch == nil {
				return future.Unit{}, true
			}
			chunks = append(chunks, string(batch))
		}
	})
	if _, err := export(ctx, h, s, future.Join(writer, reader)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%q", chunks), nil
}

func runFuture(ctx context.Context, h *loopback.Host, s *task.Scheduler) (string, error) {
	fw, fr := stream.NewFuture(h, stream.StringCodec(s.Allocator()), s.Allocator())
	writer := future.Discard(fw.Write("forty-two"))
	var got stream.Option[string]
	reader := future.Map(fr.Read(), func(v stream.Option[string]) future.Unit {
		got = v
		return future.Unit{}
	})
	if _, err := export(ctx, h, s, future.Join(writer, reader)); err != nil {
		return "", err
	}
	if !got.Some {
		return "none", nil
	}
	return got.Value, nil
}
