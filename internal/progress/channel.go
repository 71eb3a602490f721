package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrRunExists = errors.New("run already open")
	ErrNoEvents  = errors.New("run closed without events")
)

// run is the ordered event buffer shared by one emitter and one consumer.
// The buffer is unbounded so Send never blocks the pipeline.
type run struct {
	id     string
	mu     sync.Mutex
	events []Event
	closed bool
	wake   chan struct{}
}

func (r *run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Hub tracks open runs by id.
type Hub struct {
	mu   sync.Mutex
	runs map[string]*run
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{runs: make(map[string]*run), now: time.Now}
}

// Open registers runID and returns its emitter and consumer.
func (h *Hub) Open(runID string) (*Emitter, *Consumer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.runs[runID]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	r := &run{id: runID, wake: make(chan struct{}, 1)}
	h.runs[runID] = r
	return &Emitter{hub: h, run: r}, &Consumer{run: r}, nil
}

// OpenRuns returns how many runs have not been closed yet.
func (h *Hub) OpenRuns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runs)
}

func (h *Hub) release(runID string) {
	h.mu.Lock()
	delete(h.runs, runID)
	h.mu.Unlock()
}

// Emitter is the producing side of a run.
type Emitter struct {
	hub  *Hub
	run  *run
	once sync.Once
}

// RunID returns the id the emitter was opened with.
func (e *Emitter) RunID() string {
	return e.run.id
}

// Send appends ev to the run. It never blocks and reports false once the run is closed.
func (e *Emitter) Send(ev Event) bool {
	r := e.run
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	ev.RunID = r.id
	ev.Seq = len(r.events) + 1
	if ev.Time.IsZero() {
		ev.Time = e.hub.now()
	}
	r.events = append(r.events, ev)
	r.mu.Unlock()

	r.signal()
	return true
}

// Close ends the run and releases it from the hub. Buffered events stay readable.
func (e *Emitter) Close() {
	e.once.Do(func() {
		r := e.run
		e.hub.release(r.id)
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.signal()
	})
}

// Consumer is the reading side of a run. It is not safe for concurrent use.
type Consumer struct {
	run *run
	pos int
}

// Next returns the next event in emission order. It returns io.EOF after the
// last event of a closed run.
func (c *Consumer) Next(ctx context.Context) (Event, error) {
	r := c.run
	for {
		r.mu.Lock()
		if c.pos < len(r.events) {
			ev := r.events[c.pos]
			c.pos++
			r.mu.Unlock()
			return ev, nil
		}
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return Event{}, io.EOF
		}

		select {
		case <-r.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Events streams every event on a channel that closes after the last one or
// when ctx ends.
func (c *Consumer) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			ev, err := c.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Drain consumes the run to completion and returns only its final event.
func (c *Consumer) Drain(ctx context.Context) (Event, error) {
	var last Event
	seen := false
	for {
		ev, err := c.Next(ctx)
		if errors.Is(err, io.EOF) {
			if !seen {
				return Event{}, ErrNoEvents
			}
			return last, nil
		}
		if err != nil {
			return Event{}, err
		}
		last, seen = ev, true
	}
}
