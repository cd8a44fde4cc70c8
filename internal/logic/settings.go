package logic

import (
	"fmt"
	"time"
)

// Setting identifies one persisted lamp preference.
type Setting int

const (
	SettingBrightnessStep Setting = iota
	SettingTransitionDurationMs
	SettingMaxBrightness
	SettingOnBrightness
	SettingNightLightOnDurationS
	SettingNightLightBrightness
	SettingMaxNightLightBrightness
	SettingAllowNightLight
	SettingNightLightThreshold
	SettingMinMovingDistance
	SettingMaxMovingDistance
	SettingMinMovingEnergy
	SettingMaxMovingEnergy
	SettingMinStationaryDistance
	SettingMaxStationaryDistance
	SettingMinStationaryEnergy
	SettingMaxStationaryEnergy

	numSettings
)

type settingDef struct {
	key      string
	name     string
	min, max int
	def      int
}

// The keys are stored on disk and must never change.
var settingDefs = [numSettings]settingDef{
	SettingBrightnessStep:          {"stbr", "brightness_step", 1, 255, 8},
	SettingTransitionDurationMs:    {"ptdm", "transition_duration_ms", 0, 65535, 1000},
	SettingMaxBrightness:           {"mbr", "max_brightness", 0, 255, 210},
	SettingOnBrightness:            {"obr", "on_brightness", 0, 255, 210},
	SettingNightLightOnDurationS:   {"odu", "night_light_on_duration_s", 0, 65535, 30},
	SettingNightLightBrightness:    {"nlbr", "night_light_brightness", 0, 255, 16},
	SettingMaxNightLightBrightness: {"mnlb", "max_night_light_brightness", 0, 255, 128},
	SettingAllowNightLight:         {"alnl", "allow_night_light", 0, 1, 1},
	SettingNightLightThreshold:     {"nllt", "night_light_threshold", 0, MaxAmbient, 30},
	SettingMinMovingDistance:       {"mimd", "min_moving_distance", 0, 65535, 0},
	SettingMaxMovingDistance:       {"mamd", "max_moving_distance", 0, 65535, 300},
	SettingMinMovingEnergy:         {"mime", "min_moving_energy", 0, 255, 0},
	SettingMaxMovingEnergy:         {"mame", "max_moving_energy", 0, 255, 255},
	SettingMinStationaryDistance:   {"misd", "min_stationary_distance", 0, 65535, 0},
	SettingMaxStationaryDistance:   {"masd", "max_stationary_distance", 0, 65535, 300},
	SettingMinStationaryEnergy:     {"mise", "min_stationary_energy", 0, 255, 0},
	SettingMaxStationaryEnergy:     {"mase", "max_stationary_energy", 0, 255, 255},
}

// AllSettings lists every setting in declaration order.
func AllSettings() []Setting {
	out := make([]Setting, numSettings)
	for i := range out {
		out[i] = Setting(i)
	}
	return out
}

func (s Setting) valid() bool { return s >= 0 && s < numSettings }

// Key returns the short persistent storage key.
func (s Setting) Key() string {
	if !s.valid() {
		return ""
	}
	return settingDefs[s].key
}

// String returns the descriptive name used by the HTTP surface and logs.
func (s Setting) String() string {
	if !s.valid() {
		return fmt.Sprintf("SETTING(%d)", int(s))
	}
	return settingDefs[s].name
}

// Default returns the value used when nothing is stored.
func (s Setting) Default() int {
	if !s.valid() {
		return 0
	}
	return settingDefs[s].def
}

// Range returns the inclusive bounds of the setting.
func (s Setting) Range() (min, max int) {
	if !s.valid() {
		return 0, 0
	}
	return settingDefs[s].min, settingDefs[s].max
}

// Clamp coerces v into the declared range.
func (s Setting) Clamp(v int) int {
	lo, hi := s.Range()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SettingByKey looks a setting up by storage key or descriptive name.
func SettingByKey(key string) (Setting, bool) {
	for i, d := range settingDefs {
		if d.key == key || d.name == key {
			return Setting(i), true
		}
	}
	return 0, false
}

// Settings is the in-memory lamp configuration.
type Settings struct {
	values [numSettings]int
}

// DefaultSettings returns a configuration holding every default.
func DefaultSettings() Settings {
	var s Settings
	for i := range s.values {
		s.values[i] = settingDefs[i].def
	}
	return s
}

// Get returns the value of a setting.
func (c Settings) Get(s Setting) int {
	if !s.valid() {
		return 0
	}
	return c.values[s]
}

// Set clamps v and stores it, returning the stored value.
func (c *Settings) Set(s Setting, v int) int {
	if !s.valid() {
		return 0
	}
	v = s.Clamp(v)
	c.values[s] = v
	return v
}

func (c Settings) u8(s Setting) uint8   { return uint8(c.Get(s)) }
func (c Settings) u16(s Setting) uint16 { return uint16(c.Get(s)) }

func (c Settings) BrightnessStep() uint8          { return c.u8(SettingBrightnessStep) }
func (c Settings) MaxBrightness() uint8           { return c.u8(SettingMaxBrightness) }
func (c Settings) OnBrightness() uint8            { return c.u8(SettingOnBrightness) }
func (c Settings) NightLightBrightness() uint8    { return c.u8(SettingNightLightBrightness) }
func (c Settings) MaxNightLightBrightness() uint8 { return c.u8(SettingMaxNightLightBrightness) }
func (c Settings) AllowNightLight() bool          { return c.Get(SettingAllowNightLight) != 0 }
func (c Settings) NightLightThreshold() uint16    { return c.u16(SettingNightLightThreshold) }

func (c Settings) TransitionDuration() time.Duration {
	return time.Duration(c.Get(SettingTransitionDurationMs)) * time.Millisecond
}

func (c Settings) NightLightOnDuration() time.Duration {
	return time.Duration(c.Get(SettingNightLightOnDurationS)) * time.Second
}

// Admission returns the configured presence admission bands.
func (c Settings) Admission() AdmissionBounds {
	return AdmissionBounds{
		Moving: TargetBounds{
			MinDistanceCm: c.u16(SettingMinMovingDistance),
			MaxDistanceCm: c.u16(SettingMaxMovingDistance),
			MinEnergy:     c.u8(SettingMinMovingEnergy),
			MaxEnergy:     c.u8(SettingMaxMovingEnergy),
		},
		Stationary: TargetBounds{
			MinDistanceCm: c.u16(SettingMinStationaryDistance),
			MaxDistanceCm: c.u16(SettingMaxStationaryDistance),
			MinEnergy:     c.u8(SettingMinStationaryEnergy),
			MaxEnergy:     c.u8(SettingMaxStationaryEnergy),
		},
	}
}
