package loopback

import (
	"context"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"go.uber.org/zap"
)

// RunExport drives one async export the way a host would: start is the
// export's entry point and callback its callback. The export runs as a
// fresh host task with its own context slot. Guest panics and host traps
// come back as errors.
func (h *Host) RunExport(ctx context.Context, start func() uint32, callback func(e0, e1, e2 uint32) uint32) (err error) {
	ht := &hostTask{}
	h.mu.Lock()
	prev := h.current
	h.current = ht
	h.stats.Exports++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.current = prev
		h.mu.Unlock()
		if r := recover(); r != nil {
			err = errors.FromPanic(errors.PhaseHost, r)
			h.log.Debug("export trapped", zap.Error(err))
		}
	}()

	h.trace("export", 0, 0, "start")
	word := start()
	for steps := 0; ; steps++ {
		if steps >= h.opts.MaxSteps {
			return errors.New(errors.PhaseHost, errors.KindDeadlock).
				Op("run-export").
				Detail("export did not exit after %d callbacks", steps).
				Build()
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.PhaseHost, errors.KindClosed, err, "export abandoned")
		}

		code, set := abi.UnpackCallback(word)
		var ev abi.Event
		switch code {
		case abi.CallbackExit:
			h.trace("export", 0, 0, "exit")
			return nil
		case abi.CallbackYield:
			h.Yield()
		case abi.CallbackWait:
			ev = h.WaitableSetWait(set)
		default:
			return errors.New(errors.PhaseHost, errors.KindProtocol).
				Op("run-export").
				Value(word).
				Detail("unknown callback code %d", uint32(code)).
				Build()
		}

		h.mu.Lock()
		h.stats.Callbacks++
		h.mu.Unlock()
		word = callback(uint32(ev.Code), uint32(ev.Waitable), ev.Aux)
	}
}
