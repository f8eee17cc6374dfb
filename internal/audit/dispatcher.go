package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSinkTimeout = 5 * time.Second

// Config controls dispatcher buffering and sink delivery.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the emitting request.
	DropIfFull bool
	// SinkTimeout bounds the context handed to Sink.Emit. Zero means 5s.
	SinkTimeout time.Duration
	// Logger reports sink panics. Nil means slog.Default().
	Logger *slog.Logger
}

// Stats counts events by outcome.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Panicked  uint64
}

// Dispatcher relays events to a sink from one goroutine, so the sink sees
// them in emission order and never runs on a request goroutine.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panicked  atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
// Every method accepts a nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SinkTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked",
				slog.String("event", event.EventType),
				slog.Any("panic", r),
			)
		}
	}()

	d.sink.Emit(ctx, event)
	d.delivered.Add(1)
}

// Emit queues event. With DropIfFull a full queue drops it; otherwise Emit
// waits for room until ctx ends. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close delivers what is queued and stops the worker. Safe to call twice.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns how many events never reached the sink, panics included.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load() + d.panicked.Load()
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Panicked:  d.panicked.Load(),
	}
}
