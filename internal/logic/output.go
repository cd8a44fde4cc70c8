package logic

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// ConfirmPhase is the length of one blink phase.
	ConfirmPhase = 200 * time.Millisecond
	// ShowStatePhase is how long a boolean state is shown after the blink.
	ShowStatePhase = 1000 * time.Millisecond

	fullDuty = 255
)

// DutyWriter is the hardware duty-cycle output (0..255).
type DutyWriter interface {
	SetDuty(duty uint8) error
}

type ramp struct {
	start     uint8
	target    uint8
	current   uint8
	startedAt time.Time
}

func (r *ramp) advance(now time.Time, duration time.Duration) {
	if r.current == r.target {
		return
	}
	elapsed := now.Sub(r.startedAt)
	if duration <= 0 || elapsed >= duration {
		r.current = r.target
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	gap := int64(r.target) - int64(r.start)
	r.current = uint8(int64(r.start) + gap*int64(elapsed)/int64(duration))
}

// confirmation owns the output while it blinks. The ramp is frozen at
// frozenAt and resumes with its remaining time once the blink is over.
type confirmation struct {
	levels       []uint8
	phase        int
	phaseStarted time.Time
	frozenAt     time.Time
}

func (c *confirmation) phaseLength(i int) time.Duration {
	if i >= 4 {
		return ShowStatePhase
	}
	return ConfirmPhase
}

type confirmRequest struct {
	show  bool
	value bool
}

// Strip drives the LED duty cycle: a linear ramp toward the target
// brightness, interrupted by confirmation blinks.
type Strip struct {
	out      DutyWriter
	duration time.Duration
	log      zerolog.Logger

	ramp       ramp
	confirming *confirmation
	request    *confirmRequest

	duty    uint8
	written bool
}

// NewStrip creates a strip that starts dark.
func NewStrip(out DutyWriter, duration time.Duration, log zerolog.Logger) *Strip {
	return &Strip{out: out, duration: duration, log: log}
}

// SetDuration changes the ramp duration used from now on.
func (s *Strip) SetDuration(d time.Duration) {
	s.duration = d
}

// Duration returns the configured ramp duration.
func (s *Strip) Duration() time.Duration {
	return s.duration
}

// SetTarget starts a new ramp from the current brightness toward target.
// Setting the current target again is a no-op.
func (s *Strip) SetTarget(target uint8, now time.Time) {
	if target == s.ramp.target {
		return
	}
	if s.confirming != nil {
		// The ramp is frozen; it starts when the blink is over.
		s.ramp.start = s.ramp.current
		s.ramp.target = target
		s.ramp.startedAt = s.confirming.frozenAt
		return
	}
	s.ramp.advance(now, s.duration)
	s.ramp.start = s.ramp.current
	s.ramp.target = target
	s.ramp.startedAt = now
}

// Confirm requests a confirmation blink, optionally followed by showing a
// boolean state. It returns false if a confirmation is already requested
// or running.
func (s *Strip) Confirm(show, value bool) bool {
	if s.confirming != nil || s.request != nil {
		s.log.Debug().Bool("show", show).Bool("value", value).Msg("confirmation already in progress, ignored")
		return false
	}
	s.request = &confirmRequest{show: show, value: value}
	return true
}

// Tick advances the ramp or the confirmation blink and writes the output.
func (s *Strip) Tick(now time.Time) {
	if s.request != nil && s.confirming == nil {
		s.startConfirmation(now)
	}
	if s.confirming != nil {
		s.tickConfirmation(now)
		return
	}
	s.ramp.advance(now, s.duration)
	s.write(s.ramp.current)
}

func (s *Strip) startConfirmation(now time.Time) {
	req := s.request
	s.request = nil

	s.ramp.advance(now, s.duration)
	levels := []uint8{0, fullDuty, 0, fullDuty}
	if req.show {
		if req.value {
			levels = append(levels, fullDuty)
		} else {
			levels = append(levels, 0)
		}
	}
	s.confirming = &confirmation{
		levels:       levels,
		phaseStarted: now,
		frozenAt:     now,
	}
	s.log.Debug().Bool("show", req.show).Bool("value", req.value).Msg("confirmation started")
}

func (s *Strip) tickConfirmation(now time.Time) {
	c := s.confirming
	for now.Sub(c.phaseStarted) >= c.phaseLength(c.phase) {
		c.phaseStarted = c.phaseStarted.Add(c.phaseLength(c.phase))
		c.phase++
		if c.phase >= len(c.levels) {
			s.restore(now)
			return
		}
	}
	s.write(c.levels[c.phase])
}

func (s *Strip) restore(now time.Time) {
	frozen := now.Sub(s.confirming.frozenAt)
	s.confirming = nil
	s.ramp.startedAt = s.ramp.startedAt.Add(frozen)
	s.ramp.advance(now, s.duration)
	s.write(s.ramp.current)
	s.log.Debug().Dur("frozen", frozen).Msg("confirmation finished")
}

func (s *Strip) write(duty uint8) {
	if s.written && duty == s.duty {
		return
	}
	if err := s.out.SetDuty(duty); err != nil {
		s.log.Warn().Err(err).Uint8("duty", duty).Msg("failed to write duty cycle")
		return
	}
	s.duty = duty
	s.written = true
}

// Current returns the ramp brightness. During a confirmation this is the
// frozen value that will be restored.
func (s *Strip) Current() uint8 { return s.ramp.current }

// Target returns the brightness the ramp is heading to.
func (s *Strip) Target() uint8 { return s.ramp.target }

// Duty returns the value last written to the hardware.
func (s *Strip) Duty() uint8 { return s.duty }

// Confirming reports whether a confirmation is requested or running.
func (s *Strip) Confirming() bool { return s.confirming != nil || s.request != nil }
