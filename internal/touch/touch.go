// Package touch turns debounced button levels into gestures: click, double
// click, triple click, long click (optionally repeating while held) and
// release.
package touch

import (
	"time"

	"github.com/silen72/night-light/internal/logic"
)

// Config holds the timing of the classifier.
type Config struct {
	// Debounce is how long a level must be stable to count as an edge.
	Debounce time.Duration
	// ClickWindow is the longest pause between the clicks of a multi click.
	ClickWindow time.Duration
	// LongClick is the hold time per button before a long click fires.
	LongClick [logic.NumButtons]time.Duration
	// Retrigger repeats the long click every LongClick period while held.
	Retrigger [logic.NumButtons]bool
}

// DefaultConfig returns the timing the lamp buttons are tuned for:
// On and Off need a deliberate 2s hold, Plus and Minus repeat quickly.
func DefaultConfig() Config {
	var c Config
	c.Debounce = 50 * time.Millisecond
	c.ClickWindow = 300 * time.Millisecond
	c.LongClick[logic.ButtonOn] = 2 * time.Second
	c.LongClick[logic.ButtonOff] = 2 * time.Second
	c.LongClick[logic.ButtonPlus] = 200 * time.Millisecond
	c.LongClick[logic.ButtonMinus] = 200 * time.Millisecond
	c.Retrigger[logic.ButtonPlus] = true
	c.Retrigger[logic.ButtonMinus] = true
	return c
}

// buttonState tracks debounce and click counting for one button.
type buttonState struct {
	Stable       bool
	Pending      bool
	HasPending   bool
	PendingSince time.Time

	PressedAt  time.Time
	LongFired  bool
	LastLongAt time.Time

	Clicks     int
	ReleasedAt time.Time
}

// Classifier converts level samples into gestures.
type Classifier struct {
	cfg     Config
	buttons [logic.NumButtons]buttonState
}

// NewClassifier creates a classifier with all buttons released.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Process takes one level sample for all buttons and returns the gestures
// completed at now, in button order.
func (c *Classifier) Process(now time.Time, levels [logic.NumButtons]bool) []logic.GestureEvent {
	var events []logic.GestureEvent
	emit := func(b logic.Button, g logic.Gesture) {
		events = append(events, logic.GestureEvent{Button: b, Gesture: g, Time: now})
	}

	for i := range c.buttons {
		b := logic.Button(i)
		st := &c.buttons[i]

		if edge, pressed := c.debounce(st, levels[i], now); edge {
			if pressed {
				st.PressedAt = now
				st.LongFired = false
			} else {
				emit(b, logic.GestureReleased)
				if st.LongFired {
					st.Clicks = 0
				} else {
					st.Clicks++
					st.ReleasedAt = now
				}
			}
		}

		long := c.cfg.LongClick[i]
		switch {
		case st.Stable && long > 0 && !st.LongFired && now.Sub(st.PressedAt) >= long:
			st.LongFired = true
			st.LastLongAt = now
			st.Clicks = 0
			emit(b, logic.GestureLongClick)
		case st.Stable && st.LongFired && c.cfg.Retrigger[i] && now.Sub(st.LastLongAt) >= long:
			st.LastLongAt = now
			emit(b, logic.GestureLongClick)
		case !st.Stable && st.Clicks > 0 && now.Sub(st.ReleasedAt) >= c.cfg.ClickWindow:
			emit(b, clickGesture(st.Clicks))
			st.Clicks = 0
		}
	}
	return events
}

// debounce applies one sample and reports whether the stable level changed.
func (c *Classifier) debounce(st *buttonState, level bool, now time.Time) (edge, pressed bool) {
	if level == st.Stable {
		st.HasPending = false
		return false, st.Stable
	}

	if !st.HasPending || st.Pending != level {
		st.Pending = level
		st.PendingSince = now
		st.HasPending = true
		if c.cfg.Debounce > 0 {
			return false, st.Stable
		}
	}

	if now.Sub(st.PendingSince) >= c.cfg.Debounce {
		st.Stable = level
		st.HasPending = false
		return true, level
	}
	return false, st.Stable
}

func clickGesture(n int) logic.Gesture {
	switch n {
	case 1:
		return logic.GestureClick
	case 2:
		return logic.GestureDoubleClick
	default:
		return logic.GestureTripleClick
	}
}

// Pressed reports the debounced level of a button.
func (c *Classifier) Pressed(b logic.Button) bool {
	return c.buttons[b].Stable
}
