package spawncap

import "go.uber.org/zap"

// Runtime is the small handle every subsystem receives instead of reading hidden globals.
// It owns the process-wide mutable state: the order-token sequence and the stats, plus
// the logger and the event dispatcher.
//
// Create one Runtime per process (or per test) and pass it to the probe, intercept,
// engine and sites packages.
type Runtime struct {
	orders     *OrderSequence
	stats      *Stats
	logger     *zap.Logger
	dispatcher Dispatcher
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the diagnostic logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) RuntimeOption {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithDispatcher sets the event dispatcher. Without one, events are dropped.
func WithDispatcher(d Dispatcher) RuntimeOption {
	return func(rt *Runtime) {
		rt.dispatcher = d
	}
}

// WithOrderSequence shares an existing order sequence, e.g. one resumed from a save.
func WithOrderSequence(seq *OrderSequence) RuntimeOption {
	return func(rt *Runtime) {
		if seq != nil {
			rt.orders = seq
		}
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		orders: &OrderSequence{},
		stats:  NewStats(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Orders returns the order-token sequence.
func (rt *Runtime) Orders() *OrderSequence {
	return rt.orders
}

// Stats returns the runtime's counters and gauges.
func (rt *Runtime) Stats() *Stats {
	return rt.stats
}

// Logger returns the diagnostic logger.
func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

// Publish delivers an event to the dispatcher, if any.
func (rt *Runtime) Publish(event Event) {
	if rt.dispatcher != nil {
		rt.dispatcher.Dispatch(rt, event)
	}
}
