package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultPWMPeriod is 1 kHz, above visible flicker for LED strips.
const DefaultPWMPeriod = time.Millisecond

// SysfsDimmer drives a PWM channel through /sys/class/pwm.
type SysfsDimmer struct {
	dir    string
	period time.Duration
}

// NewSysfsDimmer exports channel on the PWM chip at chipPath (for example
// /sys/class/pwm/pwmchip0), sets the period and enables the output at 0.
func NewSysfsDimmer(chipPath string, channel int, period time.Duration) (*SysfsDimmer, error) {
	if period <= 0 {
		period = DefaultPWMPeriod
	}
	dir := filepath.Join(chipPath, "pwm"+strconv.Itoa(channel))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(filepath.Join(chipPath, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm channel %d: %w", channel, err)
		}
	}

	d := &SysfsDimmer{dir: dir, period: period}
	// duty_cycle must not exceed period, so clear it first.
	if err := d.write("duty_cycle", "0"); err != nil {
		return nil, err
	}
	if err := d.write("period", strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return nil, err
	}
	if err := d.write("enable", "1"); err != nil {
		return nil, err
	}
	return d, nil
}

// SetDuty sets the duty cycle, 0 = off, 255 = fully on.
func (d *SysfsDimmer) SetDuty(duty uint8) error {
	ns := d.period.Nanoseconds() * int64(duty) / 255
	return d.write("duty_cycle", strconv.FormatInt(ns, 10))
}

// Close switches the output off and disables the channel.
func (d *SysfsDimmer) Close() error {
	var errs []error
	if err := d.write("duty_cycle", "0"); err != nil {
		errs = append(errs, err)
	}
	if err := d.write("enable", "0"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *SysfsDimmer) write(attr, value string) error {
	if err := writeFile(filepath.Join(d.dir, attr), value); err != nil {
		return fmt.Errorf("write pwm %s: %w", attr, err)
	}
	return nil
}

func writeFile(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
