package hostabi

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/errors"
	"go.uber.org/zap"
)

const i32 = api.ValueTypeI32

// Func is one built-in in the $root module.
type Func struct {
	Fn          api.GoModuleFunc
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// Funcs returns the built-ins backed by host, in link-name order.
func Funcs(host canon.Host) []Func {
	b := &bridge{host: host, log: Logger()}
	return []Func{
		{Name: canon.FuncContextGet, Fn: b.contextGet, ResultTypes: []api.ValueType{i32}},
		{Name: canon.FuncContextSet, Fn: b.contextSet, ParamTypes: []api.ValueType{i32}},
		{Name: canon.FuncYield, Fn: b.yield},
		{Name: canon.FuncBackpressureSet, Fn: b.backpressureSet, ParamTypes: []api.ValueType{i32}},
		{Name: canon.FuncSubtaskDrop, Fn: b.subtaskDrop, ParamTypes: []api.ValueType{i32}},
		{Name: canon.FuncWaitableSetNew, Fn: b.waitableSetNew, ResultTypes: []api.ValueType{i32}},
		{Name: canon.FuncWaitableSetWait, Fn: b.waitableSetWait, ParamTypes: []api.ValueType{i32, i32}, ResultTypes: []api.ValueType{i32}},
		{Name: canon.FuncWaitableSetDrop, Fn: b.waitableSetDrop, ParamTypes: []api.ValueType{i32}},
		{Name: canon.FuncWaitableJoin, Fn: b.waitableJoin, ParamTypes: []api.ValueType{i32, i32}},
		{Name: canon.FuncEventNew, Fn: b.eventNew, ResultTypes: []api.ValueType{i32}},
		{Name: canon.FuncEventTrigger, Fn: b.eventTrigger, ParamTypes: []api.ValueType{i32, i32, i32}},
		{Name: canon.FuncEventDrop, Fn: b.eventDrop, ParamTypes: []api.ValueType{i32}},
	}
}

// NewModuleBuilder returns a wazero host module builder for $root with
// every built-in exported under its link name.
func NewModuleBuilder(rt wazero.Runtime, host canon.Host) wazero.HostModuleBuilder {
	builder := rt.NewHostModuleBuilder(canon.ModuleRoot)
	for _, f := range Funcs(host) {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Fn, f.ParamTypes, f.ResultTypes).
			Export(f.Name)
	}
	return builder
}

// Instantiate registers the $root module in rt. Guests compiled for
// wasip1 resolve their built-in imports against it.
func Instantiate(ctx context.Context, rt wazero.Runtime, host canon.Host) (api.Module, error) {
	mod, err := NewModuleBuilder(rt, host).Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "instantiate "+canon.ModuleRoot)
	}
	return mod, nil
}

// bridge converts wasm stack values to canon.Host calls.
type bridge struct {
	host canon.Host
	log  *zap.Logger
}

func (b *bridge) contextGet(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(b.host.ContextGet())
}

func (b *bridge) contextSet(_ context.Context, _ api.Module, stack []uint64) {
	b.host.ContextSet(uint32(stack[0]))
}

func (b *bridge) yield(context.Context, api.Module, []uint64) {
	b.host.Yield()
}

func (b *bridge) backpressureSet(_ context.Context, _ api.Module, stack []uint64) {
	b.host.BackpressureSet(uint32(stack[0]) != 0)
}

func (b *bridge) subtaskDrop(_ context.Context, _ api.Module, stack []uint64) {
	b.host.SubtaskDrop(abi.Handle(uint32(stack[0])))
}

func (b *bridge) waitableSetNew(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(uint32(b.host.WaitableSetNew()))
}

// waitableSetWait stores (waitable, aux) at the guest pointer and returns
// the event code.
func (b *bridge) waitableSetWait(_ context.Context, mod api.Module, stack []uint64) {
	set := abi.Handle(uint32(stack[0]))
	ptr := uint32(stack[1])

	mem := WrapMemory(mod.Memory())
	if mem == nil {
		panic(errors.New(errors.PhaseHost, errors.KindNotInitialized).
			Op(canon.FuncWaitableSetWait).
			Detail("guest exports no memory").
			Build())
	}
	if ptr%4 != 0 {
		panic(errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Op(canon.FuncWaitableSetWait).
			Value(ptr).
			Detail("event pointer %d is not 4-byte aligned", ptr).
			Build())
	}

	ev := b.host.WaitableSetWait(set)
	if err := mem.WriteU32(ptr, uint32(ev.Waitable)); err != nil {
		panic(err)
	}
	if err := mem.WriteU32(ptr+4, ev.Aux); err != nil {
		panic(err)
	}
	b.log.Debug("waitable-set-wait",
		zap.Uint32("set", uint32(set)),
		zap.Stringer("event", ev))
	stack[0] = uint64(uint32(ev.Code))
}

func (b *bridge) waitableSetDrop(_ context.Context, _ api.Module, stack []uint64) {
	b.host.WaitableSetDrop(abi.Handle(uint32(stack[0])))
}

func (b *bridge) waitableJoin(_ context.Context, _ api.Module, stack []uint64) {
	b.host.WaitableJoin(abi.Handle(uint32(stack[0])), abi.Handle(uint32(stack[1])))
}

func (b *bridge) eventNew(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(uint32(b.host.EventNew()))
}

func (b *bridge) eventTrigger(_ context.Context, _ api.Module, stack []uint64) {
	b.host.EventTrigger(
		abi.Handle(uint32(stack[0])),
		abi.EventCode(uint32(stack[1])),
		uint32(stack[2]))
}

func (b *bridge) eventDrop(_ context.Context, _ api.Module, stack []uint64) {
	b.host.EventDrop(abi.Handle(uint32(stack[0])))
}
