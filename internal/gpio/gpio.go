// Package gpio provides the lamp's hardware lines: touch button inputs and
// the PWM duty-cycle output driving the LED strip.
// The real input implementation uses the Linux GPIO character device and the
// output uses the sysfs PWM interface. Fakes allow testing without hardware.
package gpio

import "github.com/silen72/night-light/internal/logic"

// Levels holds the touch state of every button, indexed by logic.Button.
// true = touched.
type Levels [logic.NumButtons]bool

// Reader reads the touch button lines.
type Reader interface {
	// Read returns the current touch levels.
	Read() (Levels, error)

	// Close releases GPIO resources.
	Close() error
}

// Dimmer is the duty-cycle output of the LED driver.
type Dimmer interface {
	logic.DutyWriter

	// Close releases the output.
	Close() error
}

// Default line offsets (BCM numbering) in logic.Button order: On, Plus, Minus, Off.
var DefaultLines = [logic.NumButtons]int{5, 6, 13, 19}

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"
