package gpio

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted touch levels.
type FakeReader struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Levels

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Levels) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (Levels, error) {
	if f.ReadError != nil {
		return Levels{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Levels{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeDimmer records every duty written.
type FakeDimmer struct {
	mu       sync.Mutex
	writes   []uint8
	Closed   bool
	SetError error
}

// SetDuty records duty unless SetError is set.
func (f *FakeDimmer) SetDuty(duty uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.writes = append(f.writes, duty)
	return nil
}

// Writes returns a copy of all recorded duties.
func (f *FakeDimmer) Writes() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint8, len(f.writes))
	copy(out, f.writes)
	return out
}

// Duty returns the last written duty, or 0.
func (f *FakeDimmer) Duty() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return 0
	}
	return f.writes[len(f.writes)-1]
}

// Close marks the dimmer as closed.
func (f *FakeDimmer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
