package radar

import (
	"sync"

	"github.com/silen72/night-light/internal/logic"
)

// FakeSensor returns whatever reading was last set.
type FakeSensor struct {
	mu      sync.Mutex
	reading logic.PresenceReading
}

// Set replaces the reading.
func (f *FakeSensor) Set(r logic.PresenceReading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reading = r
}

// Reading returns the last set reading.
func (f *FakeSensor) Reading() logic.PresenceReading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reading
}
