// Package logic contains the pure behaviour of the night light: the lamp state
// machine, the brightness output driver, presence admission, ambient light
// smoothing and gesture decoding.
// This package has NO hardware, storage or network dependencies.
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the lifecycle state of the lamp.
type Mode string

const (
	ModeOff                      Mode = "OFF"
	ModeStartTransitToOn         Mode = "START_TRANSIT_TO_ON"
	ModeTransitToOn              Mode = "TRANSIT_TO_ON"
	ModeOn                       Mode = "ON"
	ModeStartTransitToOff        Mode = "START_TRANSIT_TO_OFF"
	ModeTransitToOff             Mode = "TRANSIT_TO_OFF"
	ModeStartTransitToNightLight Mode = "START_TRANSIT_TO_NIGHT_LIGHT"
	ModeTransitToNightLight      Mode = "TRANSIT_TO_NIGHT_LIGHT"
	ModeNightLightOn             Mode = "NIGHT_LIGHT_ON"
)

// IsNightLight reports whether the mode belongs to the night light family.
func (m Mode) IsNightLight() bool {
	return m == ModeStartTransitToNightLight || m == ModeTransitToNightLight || m == ModeNightLightOn
}

// IsOff reports whether the mode is off or heading there.
func (m Mode) IsOff() bool {
	return m == ModeOff || m == ModeStartTransitToOff || m == ModeTransitToOff
}

// IsOn reports whether the mode is on or heading there.
func (m Mode) IsOn() bool {
	return m == ModeStartTransitToOn || m == ModeTransitToOn || m == ModeOn
}

// Button identifies one of the four touch buttons.
type Button int

const (
	ButtonOn Button = iota
	ButtonPlus
	ButtonMinus
	ButtonOff

	NumButtons = 4
)

var buttonNames = [NumButtons]string{"ON", "PLUS", "MINUS", "OFF"}

func (b Button) String() string {
	if b < 0 || int(b) >= NumButtons {
		return fmt.Sprintf("BUTTON(%d)", int(b))
	}
	return buttonNames[b]
}

// ParseButton maps a case-insensitive name to a Button.
func ParseButton(s string) (Button, bool) {
	for i, name := range buttonNames {
		if strings.EqualFold(s, name) {
			return Button(i), true
		}
	}
	return 0, false
}

// Gesture is a classified button interaction.
type Gesture int

const (
	GestureClick Gesture = iota
	GestureDoubleClick
	GestureTripleClick
	GestureLongClick
	GestureReleased

	NumGestures = 5
)

var gestureNames = [NumGestures]string{"CLICK", "DOUBLE_CLICK", "TRIPLE_CLICK", "LONG_CLICK", "RELEASED"}

func (g Gesture) String() string {
	if g < 0 || int(g) >= NumGestures {
		return fmt.Sprintf("GESTURE(%d)", int(g))
	}
	return gestureNames[g]
}

// ParseGesture maps a case-insensitive name to a Gesture.
func ParseGesture(s string) (Gesture, bool) {
	for i, name := range gestureNames {
		if strings.EqualFold(s, name) {
			return Gesture(i), true
		}
	}
	return 0, false
}

// GestureEvent is one decoded gesture on one button.
type GestureEvent struct {
	Button  Button
	Gesture Gesture
	Time    time.Time
}

// Target is a single radar target reading.
type Target struct {
	Detected   bool
	DistanceCm uint16
	Energy     uint8 // 0..100
}

// PresenceReading is the radar output for one control loop tick.
type PresenceReading struct {
	PresenceDetected bool
	Moving           Target
	Stationary       Target
}

// Event represents a lamp mode change to be published.
type Event struct {
	Timestamp         time.Time
	From              Mode
	To                Mode
	TargetBrightness  uint8
	CurrentBrightness uint8
}

// Counts tracks diagnostic counters since startup.
type Counts struct {
	ModeChanges           int
	IgnoredGestures       int
	Confirmations         int
	RejectedConfirmations int
	Unreachable           int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Mode      Mode
	Counts    Counts
}
