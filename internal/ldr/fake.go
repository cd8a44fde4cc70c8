package ldr

import "sync"

// FakeSensor returns a settable value.
type FakeSensor struct {
	mu    sync.Mutex
	value uint16
	err   error
	reads int
}

// NewFakeSensor returns a sensor reading value.
func NewFakeSensor(value uint16) *FakeSensor {
	return &FakeSensor{value: value}
}

// Set replaces the value and clears any error.
func (f *FakeSensor) Set(value uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	f.err = nil
}

// SetError makes subsequent reads fail.
func (f *FakeSensor) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Read returns the value or the configured error.
func (f *FakeSensor) Read() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	return f.value, nil
}

// Reads returns how often Read was called.
func (f *FakeSensor) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
