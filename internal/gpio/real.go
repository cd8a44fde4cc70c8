//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/silen72/night-light/internal/logic"
)

// RealReader reads the touch sensor outputs from the GPIO character device.
// The sensor modules drive their output high while touched.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	buf   []int
}

// NewRealReader requests the four button lines, in logic.Button order.
func NewRealReader(chipName string, offsets [logic.NumButtons]int) (*RealReader, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	// Pull-down keeps an unplugged sensor reading "not touched".
	lines, err := chip.RequestLines(offsets[:], gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button lines %v: %w", offsets, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		buf:   make([]int, len(offsets)),
	}, nil
}

// Read returns the touch levels of all buttons.
func (r *RealReader) Read() (Levels, error) {
	var levels Levels
	if err := r.lines.Values(r.buf); err != nil {
		return levels, fmt.Errorf("read button lines: %w", err)
	}
	for i, v := range r.buf {
		levels[i] = v == 1
	}
	return levels, nil
}

// Close releases GPIO resources.
// Lines are left as inputs with pull-down before closing.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button lines: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
