package logic

import (
	"testing"
	"time"
)

func triples(d *Decoder, start time.Time, gap time.Duration, buttons ...Button) []Action {
	var actions []Action
	at := start
	for _, b := range buttons {
		a, _ := d.Dispatch(GestureEvent{Button: b, Gesture: GestureTripleClick, Time: at})
		actions = append(actions, a)
		at = at.Add(gap)
	}
	return actions
}

func last(actions []Action) Action {
	return actions[len(actions)-1]
}

func TestSecretSequences(t *testing.T) {
	tests := []struct {
		name    string
		gap     time.Duration
		buttons []Button
		want    Action
	}{
		{"factory reset", time.Second, []Button{ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus}, ActionFactoryReset},
		{"factory reset at timeout limit", SequenceTimeout, []Button{ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus}, ActionFactoryReset},
		{"factory reset too slow", SequenceTimeout + time.Millisecond, []Button{ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus}, ActionNone},
		{"access point", time.Second, []Button{ButtonPlus, ButtonMinus, ButtonPlus}, ActionForceAccessPoint},
		{"access point too slow", 3 * time.Second, []Button{ButtonPlus, ButtonMinus, ButtonPlus}, ActionNone},
		{"wrong button in reset", time.Second, []Button{ButtonOff, ButtonPlus, ButtonOff, ButtonMinus, ButtonMinus}, ActionNone},
		{"incomplete reset", time.Second, []Button{ButtonOff, ButtonPlus, ButtonMinus}, ActionNone},
		{"reset prefix then plus", time.Second, []Button{ButtonOff, ButtonPlus, ButtonMinus, ButtonPlus}, ActionNone},
		{"on breaks sequence", time.Second, []Button{ButtonPlus, ButtonOn, ButtonMinus, ButtonPlus}, ActionNone},
		{"restart after break", time.Second, []Button{ButtonOff, ButtonOn, ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus}, ActionFactoryReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			got := last(triples(d, t0, tt.gap, tt.buttons...))
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSecretSequenceFiresOnce(t *testing.T) {
	d := NewDecoder()
	actions := triples(d, t0, time.Second, ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus, ButtonMinus)
	fired := 0
	for _, a := range actions {
		if a == ActionFactoryReset {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("expected one factory reset, got %d", fired)
	}
	fr, ap := d.SequenceProgress()
	if fr != 0 || ap != 0 {
		t.Errorf("expected counters reset, got %d/%d", fr, ap)
	}
}

func TestSequenceNoPartialCredit(t *testing.T) {
	d := NewDecoder()
	triples(d, t0, time.Second, ButtonOff, ButtonPlus, ButtonMinus)
	fr, _ := d.SequenceProgress()
	if fr != 3 {
		t.Fatalf("expected 3 steps matched, got %d", fr)
	}

	// Timeout before the last step.
	triples(d, t0.Add(5*time.Second), 0, ButtonMinus)
	fr, _ = d.SequenceProgress()
	if fr != 0 {
		t.Errorf("expected counter reset after timeout, got %d", fr)
	}
}

func TestDispatchCallsHandler(t *testing.T) {
	d := NewDecoder()
	var calls []time.Time
	d.Handle(ButtonPlus, GestureLongClick, func(now time.Time) {
		calls = append(calls, now)
	})

	_, handled := d.Dispatch(GestureEvent{Button: ButtonPlus, Gesture: GestureLongClick, Time: t0})
	if !handled {
		t.Error("expected registered handler to run")
	}
	if len(calls) != 1 || !calls[0].Equal(t0) {
		t.Errorf("expected one call at %v, got %v", t0, calls)
	}

	_, handled = d.Dispatch(GestureEvent{Button: ButtonPlus, Gesture: GestureDoubleClick, Time: t0})
	if handled {
		t.Error("unregistered gesture should not be handled")
	}
	_, handled = d.Dispatch(GestureEvent{Button: Button(9), Gesture: GestureClick, Time: t0})
	if handled {
		t.Error("unknown button should not be handled")
	}
}

func TestParseButtonAndGesture(t *testing.T) {
	if b, ok := ParseButton("minus"); !ok || b != ButtonMinus {
		t.Errorf("expected MINUS, got %v %v", b, ok)
	}
	if b, ok := ParseButton("OFF"); !ok || b != ButtonOff {
		t.Errorf("expected OFF, got %v %v", b, ok)
	}
	if b, ok := ParseButton("Off"); !ok || b != ButtonOff {
		t.Errorf("expected mixed case OFF, got %v %v", b, ok)
	}
	if g, ok := ParseGesture("Long_Click"); !ok || g != GestureLongClick {
		t.Errorf("expected mixed case LONG_CLICK, got %v %v", g, ok)
	}
	if g, ok := ParseGesture("double_click"); !ok || g != GestureDoubleClick {
		t.Errorf("expected DOUBLE_CLICK, got %v %v", g, ok)
	}
	if _, ok := ParseGesture("hold"); ok {
		t.Error("unknown gesture should not parse")
	}
}
