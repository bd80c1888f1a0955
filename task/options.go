package task

import (
	witasync "github.com/wippyai/wit-async"
	"go.uber.org/zap"
)

// Options configures a Scheduler.
type Options struct {
	Logger    *zap.Logger
	Allocator witasync.Allocator
}

// DefaultOptions returns the package logger and the process-wide heap
// allocator.
func DefaultOptions() Options {
	return Options{
		Logger:    Logger(),
		Allocator: witasync.DefaultAllocator(),
	}
}

// Option modifies Options.
type Option func(*Options)

// WithLogger sets the scheduler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithAllocator sets the allocator used for subtask regions and stream
// staging buffers.
func WithAllocator(a witasync.Allocator) Option {
	return func(o *Options) {
		if a != nil {
			o.Allocator = a
		}
	}
}
