package logic

import "time"

// SequenceTimeout is the longest gap allowed between two triple clicks of a
// secret sequence.
const SequenceTimeout = 2 * time.Second

// Action is a device level request decoded from a secret gesture sequence.
type Action int

const (
	ActionNone Action = iota
	ActionFactoryReset
	ActionForceAccessPoint
)

func (a Action) String() string {
	switch a {
	case ActionFactoryReset:
		return "FACTORY_RESET"
	case ActionForceAccessPoint:
		return "FORCE_ACCESS_POINT"
	default:
		return "NONE"
	}
}

var (
	factoryResetSequence = []Button{ButtonOff, ButtonPlus, ButtonMinus, ButtonMinus}
	accessPointSequence  = []Button{ButtonPlus, ButtonMinus, ButtonPlus}
)

// HandlerFunc reacts to one gesture on one button.
type HandlerFunc func(now time.Time)

type sequence struct {
	steps []Button
	count int
}

func (s *sequence) expects(b Button) bool {
	return s.steps[s.count] == b
}

// Decoder dispatches gestures to registered handlers and recognises the
// secret triple click sequences.
type Decoder struct {
	handlers     [NumButtons][NumGestures]HandlerFunc
	factoryReset sequence
	accessPoint  sequence
	lastTripleAt time.Time
}

// NewDecoder creates a decoder with no handlers registered.
func NewDecoder() *Decoder {
	return &Decoder{
		factoryReset: sequence{steps: factoryResetSequence},
		accessPoint:  sequence{steps: accessPointSequence},
	}
}

// Handle registers fn for a button and gesture, replacing any previous one.
func (d *Decoder) Handle(b Button, g Gesture, fn HandlerFunc) {
	d.handlers[b][g] = fn
}

// Dispatch runs the handler registered for the event, if any, and reports
// a completed secret sequence. handled is false if nothing was registered.
func (d *Decoder) Dispatch(ev GestureEvent) (action Action, handled bool) {
	if ev.Button < 0 || int(ev.Button) >= NumButtons || ev.Gesture < 0 || int(ev.Gesture) >= NumGestures {
		return ActionNone, false
	}
	if ev.Gesture == GestureTripleClick {
		action = d.observeTriple(ev.Button, ev.Time)
	}
	if fn := d.handlers[ev.Button][ev.Gesture]; fn != nil {
		fn(ev.Time)
		handled = true
	}
	return action, handled
}

func (d *Decoder) observeTriple(b Button, now time.Time) Action {
	if !d.lastTripleAt.IsZero() && now.Sub(d.lastTripleAt) > SequenceTimeout {
		d.resetSequences()
	}

	// A button advances at most one sequence, factory reset first.
	isReset := d.factoryReset.expects(b)
	isAP := !isReset && d.accessPoint.expects(b)

	if isReset {
		d.factoryReset.count++
	} else {
		d.factoryReset.count = 0
	}
	if isAP {
		d.accessPoint.count++
	} else {
		d.accessPoint.count = 0
	}

	switch {
	case d.factoryReset.count == len(d.factoryReset.steps):
		d.resetSequences()
		return ActionFactoryReset
	case d.accessPoint.count == len(d.accessPoint.steps):
		d.resetSequences()
		return ActionForceAccessPoint
	}

	if isReset || isAP {
		d.lastTripleAt = now
	} else {
		d.lastTripleAt = time.Time{}
	}
	return ActionNone
}

func (d *Decoder) resetSequences() {
	d.factoryReset.count = 0
	d.accessPoint.count = 0
	d.lastTripleAt = time.Time{}
}

// SequenceProgress returns how many steps of each secret sequence have been
// matched so far.
func (d *Decoder) SequenceProgress() (factoryReset, accessPoint int) {
	return d.factoryReset.count, d.accessPoint.count
}
