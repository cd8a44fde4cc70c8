package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/silen72/night-light/internal/logic"
)

type memPrefs struct{ values map[logic.Setting]int }

func (p *memPrefs) Stored(s logic.Setting) int {
	if v, ok := p.values[s]; ok {
		return v
	}
	return s.Default()
}

func (p *memPrefs) Persist(s logic.Setting, v int) error {
	p.values[s] = v
	return nil
}

func (p *memPrefs) FactoryReset() error {
	clear(p.values)
	return nil
}

type nopDuty struct{}

func (nopDuty) SetDuty(uint8) error { return nil }

func newController(t0 time.Time) (*logic.Controller, *memPrefs) {
	prefs := &memPrefs{values: map[logic.Setting]int{}}
	strip := logic.NewStrip(nopDuty{}, 0, zerolog.Nop())
	return logic.NewController(strip, prefs, nil, t0, zerolog.Nop()), prefs
}

// loop drains q until stop is closed.
func loop(q *Queue, c *logic.Controller, t0 time.Time, stop <-chan struct{}, gestures chan<- logic.GestureEvent) {
	now := t0
	for {
		select {
		case <-stop:
			return
		default:
		}
		now = now.Add(10 * time.Millisecond)
		for _, g := range q.Drain(c, now) {
			gestures <- g
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDoRunsInLoop(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	c, prefs := newController(t0)
	q := NewQueue(4, zerolog.Nop())

	stop := make(chan struct{})
	defer close(stop)
	go loop(q, c, t0, stop, make(chan logic.GestureEvent, 8))

	var got int
	err := q.Do(context.Background(), func(c *logic.Controller, now time.Time) {
		got = c.Save(now, logic.SettingNightLightBrightness, 40)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 40 || prefs.values[logic.SettingNightLightBrightness] != 40 {
		t.Errorf("expected persisted 40, got %d / %v", got, prefs.values)
	}
}

func TestGestureStampedByLoop(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	c, _ := newController(t0)
	q := NewQueue(4, zerolog.Nop())

	stop := make(chan struct{})
	defer close(stop)
	gestures := make(chan logic.GestureEvent, 8)
	go loop(q, c, t0, stop, gestures)

	if err := q.Gesture(context.Background(), logic.ButtonOn, logic.GestureClick); err != nil {
		t.Fatal(err)
	}
	ev := <-gestures
	if ev.Button != logic.ButtonOn || ev.Gesture != logic.GestureClick {
		t.Errorf("unexpected gesture %+v", ev)
	}
	if !ev.Time.After(t0) {
		t.Errorf("expected loop time, got %v", ev.Time)
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- q.Do(ctx, func(*logic.Controller, time.Time) {}) }()

	// Wait for the first request to occupy the only slot.
	for len(q.requests) == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := q.Do(ctx, func(*logic.Controller, time.Time) {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if err := <-errc; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded without a loop, got %v", err)
	}
}

func TestClose(t *testing.T) {
	q := NewQueue(1, zerolog.Nop())
	q.Close()
	q.Close()
	if err := q.Gesture(context.Background(), logic.ButtonOff, logic.GestureClick); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDrainRecoversPanic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	c, _ := newController(t0)
	q := NewQueue(4, zerolog.Nop())

	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(context.Background(), func(*logic.Controller, time.Time) { panic("boom") })
	}()
	for len(q.requests) == 0 {
		time.Sleep(time.Millisecond)
	}
	q.Drain(c, t0)
	if err := <-errc; err != nil {
		t.Errorf("expected the submitter to be released, got %v", err)
	}
}
