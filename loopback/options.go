package loopback

import "go.uber.org/zap"

// TraceEvent is one host-side step, reported in order as it happens.
type TraceEvent struct {
	Op     string
	Detail string
	Handle uint32
	Aux    uint32
}

// Options configures a Host.
type Options struct {
	Logger *zap.Logger
	Trace  func(TraceEvent)
	// MaxSteps bounds the dispatch iterations of one export and the host
	// jobs run by one wait. Exceeding it is reported as a deadlock.
	MaxSteps int
}

// DefaultOptions returns the package logger and a step limit of 100000.
func DefaultOptions() Options {
	return Options{
		Logger:   Logger(),
		MaxSteps: 100000,
	}
}

// Option modifies Options.
type Option func(*Options)

// WithLogger sets the host's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMaxSteps sets the step limit.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithTrace installs a callback that receives every host step.
func WithTrace(fn func(TraceEvent)) Option {
	return func(o *Options) {
		o.Trace = fn
	}
}
