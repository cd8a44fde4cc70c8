package logic

import (
	"time"

	"github.com/rs/zerolog"
)

// MaxAmbient is the brightest raw light sensor value.
const MaxAmbient = 4095

// DefaultAmbientDelay is the minimum time between light sensor samples.
const DefaultAmbientDelay = 500 * time.Millisecond

// LightSensor yields raw ambient light samples (0..4095, lower = darker).
type LightSensor interface {
	Read() (uint16, error)
}

// AmbientMonitor smooths the light sensor into an averaged brightness.
type AmbientMonitor struct {
	delay       time.Duration
	average     uint16
	initialized bool
	lastSample  time.Time
	failing     bool
	log         zerolog.Logger
}

// NewAmbientMonitor creates a monitor sampling at most once per delay.
// A non-positive delay selects DefaultAmbientDelay.
func NewAmbientMonitor(delay time.Duration, log zerolog.Logger) *AmbientMonitor {
	if delay <= 0 {
		delay = DefaultAmbientDelay
	}
	return &AmbientMonitor{delay: delay, average: MaxAmbient, log: log}
}

// Tick samples the sensor if the delay has elapsed since the last sample.
// Read errors keep the previous average and are logged once per failure
// streak.
func (m *AmbientMonitor) Tick(now time.Time, sensor LightSensor) {
	if m.initialized && now.Sub(m.lastSample) < m.delay {
		return
	}
	m.lastSample = now

	raw, err := sensor.Read()
	if err != nil {
		if !m.failing {
			m.log.Warn().Err(err).Msg("light sensor read failed")
			m.failing = true
		}
		return
	}
	if m.failing {
		m.log.Info().Msg("light sensor recovered")
		m.failing = false
	}
	if raw > MaxAmbient {
		raw = MaxAmbient
	}

	if !m.initialized {
		m.average = raw
		m.initialized = true
		return
	}
	m.average = uint16((uint32(m.average) + uint32(raw)) / 2)
}

// Brightness returns the averaged value. Before the first successful
// sample it reports MaxAmbient so darkness is never assumed.
func (m *AmbientMonitor) Brightness() uint16 {
	return m.average
}

// Initialized reports whether a sample has been taken.
func (m *AmbientMonitor) Initialized() bool {
	return m.initialized
}
