// Package control carries requests from other goroutines into the control
// loop, which owns the lamp controller.
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/silen72/night-light/internal/logic"
)

// DefaultQueueSize is the number of requests that may wait for the loop.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when the loop is not keeping up.
	ErrQueueFull = errors.New("control queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("control queue closed")
)

// Command runs inside the control loop with exclusive access to the
// controller.
type Command func(c *logic.Controller, now time.Time)

type request struct {
	run     Command
	gesture *logic.GestureEvent
	done    chan struct{}
}

// Queue is a bounded queue of commands and virtual gestures.
type Queue struct {
	requests chan request
	log      zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding up to size requests.
func NewQueue(size int, log zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		requests: make(chan request, size),
		log:      log,
		closing:  make(chan struct{}),
	}
}

// Do queues fn and waits until the loop has run it.
func (q *Queue) Do(ctx context.Context, fn Command) error {
	return q.submit(ctx, request{run: fn, done: make(chan struct{})})
}

// Gesture queues a virtual gesture and waits until the loop has taken it.
// The loop stamps it with its own time.
func (q *Queue) Gesture(ctx context.Context, b logic.Button, g logic.Gesture) error {
	ev := logic.GestureEvent{Button: b, Gesture: g}
	return q.submit(ctx, request{gesture: &ev, done: make(chan struct{})})
}

func (q *Queue) submit(ctx context.Context, r request) error {
	select {
	case <-q.closing:
		return ErrClosed
	default:
	}

	select {
	case q.requests <- r:
	default:
		return ErrQueueFull
	}

	select {
	case <-r.done:
		return nil
	case <-q.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs every queued command and returns the queued gestures.
// It must only be called from the control loop.
func (q *Queue) Drain(c *logic.Controller, now time.Time) []logic.GestureEvent {
	var gestures []logic.GestureEvent
	for {
		select {
		case r := <-q.requests:
			if r.gesture != nil {
				ev := *r.gesture
				ev.Time = now
				gestures = append(gestures, ev)
			} else {
				q.run(r.run, c, now)
			}
			close(r.done)
		default:
			return gestures
		}
	}
}

func (q *Queue) run(fn Command, c *logic.Controller, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("control command panicked")
		}
	}()
	fn(c, now)
}

// Close makes pending and future submissions fail with ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closing) })
}
