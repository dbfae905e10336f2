// Package notify delivers user-facing status events to external sinks without
// blocking the caller.
package notify

import (
	"sync"

	"github.com/fusionn-batch/pkg/logger"
)

// Kind classifies an event for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Event is one status message.
type Event struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives events. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

// Sink delivers events somewhere; it may block.
type Sink interface {
	Send(ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(Event) {}

// Dispatcher queues events and delivers them to sinks from one goroutine.
type Dispatcher struct {
	sinks  []Sink
	events chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with a buffer of size events.
func NewDispatcher(size int, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = 64
	}

	d := &Dispatcher{
		sinks:  sinks,
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

// Notify queues ev. When the buffer is full the event is dropped with a warning.
func (d *Dispatcher) Notify(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.events <- ev:
	default:
		logger.Warnf("⚠️ Notification dropped (queue full): %s", ev.Title)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for ev := range d.events {
		for _, s := range d.sinks {
			if err := s.Send(ev); err != nil {
				logger.Warnf("⚠️ Failed to send notification: %v", err)
			}
		}
	}
}

// LogSink writes events to the service log.
type LogSink struct{}

func (LogSink) Send(ev Event) error {
	switch ev.Kind {
	case KindError:
		logger.Errorf("🔔 %s: %s", ev.Title, ev.Message)
	case KindSuccess:
		logger.Infof("🔔 ✅ %s: %s", ev.Title, ev.Message)
	default:
		logger.Infof("🔔 %s: %s", ev.Title, ev.Message)
	}
	return nil
}

// Recorder keeps every event in memory. Useful for tests and API inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Send lets a Recorder act as a dispatcher sink.
func (r *Recorder) Send(ev Event) error {
	r.Notify(ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
