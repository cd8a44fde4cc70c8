package logic

import "time"

// TargetState is a radar target together with its admission result.
type TargetState struct {
	Target
	Qualifies bool
}

// PresenceState is the presence part of a DeviceState.
type PresenceState struct {
	Detected   bool
	Qualified  bool
	Moving     TargetState
	Stationary TargetState
}

// DeviceState is a read-only snapshot of the lamp.
type DeviceState struct {
	Mode              Mode
	TargetBrightness  uint8
	CurrentBrightness uint8
	Duty              uint8
	Confirming        bool

	OnBrightness            uint8
	MaxBrightness           uint8
	NightLightBrightness    uint8
	MaxNightLightBrightness uint8
	BrightnessStep          uint8
	TransitionDuration      time.Duration

	AllowNightLight      bool
	NightLightOnDuration time.Duration
	NightLightThreshold  uint16
	LDR                  uint16

	Presence           PresenceState
	Bounds             AdmissionBounds
	NoPresenceDuration time.Duration

	Counts   Counts
	Settings Settings
}

// Snapshot returns the externally visible lamp state. It has no side effects.
// NoPresenceDuration is only non-zero while the night light is on.
func (c *Controller) Snapshot(now time.Time) DeviceState {
	bounds := c.settings.Admission()
	st := DeviceState{
		Mode:              c.mode,
		TargetBrightness:  c.target,
		CurrentBrightness: c.strip.Current(),
		Duty:              c.strip.Duty(),
		Confirming:        c.strip.Confirming(),

		OnBrightness:            c.settings.OnBrightness(),
		MaxBrightness:           c.settings.MaxBrightness(),
		NightLightBrightness:    c.settings.NightLightBrightness(),
		MaxNightLightBrightness: c.settings.MaxNightLightBrightness(),
		BrightnessStep:          c.settings.BrightnessStep(),
		TransitionDuration:      c.settings.TransitionDuration(),

		AllowNightLight:      c.settings.AllowNightLight(),
		NightLightOnDuration: c.settings.NightLightOnDuration(),
		NightLightThreshold:  c.settings.NightLightThreshold(),
		LDR:                  c.ldr,

		Presence: PresenceState{
			Detected:   c.reading.PresenceDetected,
			Qualified:  Qualifies(c.reading, bounds),
			Moving:     TargetState{Target: c.reading.Moving, Qualifies: bounds.Moving.Admits(c.reading.Moving)},
			Stationary: TargetState{Target: c.reading.Stationary, Qualifies: bounds.Stationary.Admits(c.reading.Stationary)},
		},
		Bounds:   bounds,
		Counts:   c.counts,
		Settings: c.settings,
	}
	if c.mode == ModeNightLightOn && now.After(c.lastPresenceAt) {
		st.NoPresenceDuration = now.Sub(c.lastPresenceAt)
	}
	return st
}
