// Package ldr samples the light dependent resistor through a Linux IIO ADC
// channel.
package ldr

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the first channel of the first IIO device.
const DefaultPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// IIOSensor reads raw ADC values from a sysfs attribute.
type IIOSensor struct {
	path      string
	invert    bool
	fullScale uint16
}

// NewIIOSensor checks that path is readable. With invert set, the raw value
// is mirrored around fullScale, for dividers where more light lowers the voltage.
func NewIIOSensor(path string, invert bool, fullScale uint16) (*IIOSensor, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &IIOSensor{path: path, invert: invert, fullScale: fullScale}
	if _, err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read returns the current raw value.
func (s *IIOSensor) Read() (uint16, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read light sensor: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse light sensor value %q: %w", strings.TrimSpace(string(data)), err)
	}
	raw := uint16(v)
	if s.invert {
		raw = s.fullScale - min(raw, s.fullScale)
	}
	return raw, nil
}
