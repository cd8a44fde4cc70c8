package logic

import (
	"time"

	"github.com/rs/zerolog"
)

// Preferences is the persisted side of the lamp configuration.
type Preferences interface {
	// Stored returns the persisted value, or the default if nothing is stored.
	Stored(s Setting) int
	// Persist writes v unless it equals the stored value.
	Persist(s Setting, v int) error
	// FactoryReset wipes every stored preference.
	FactoryReset() error
}

// AccessPointRequester switches the network into access point mode.
type AccessPointRequester interface {
	RequestAccessPointMode()
}

// Controller is the lamp state machine. It owns the mode, the target
// brightness and the night light hold timer, and drives the Strip.
// All methods must be called from the control loop goroutine.
type Controller struct {
	strip   *Strip
	prefs   Preferences
	network AccessPointRequester
	decoder *Decoder
	log     zerolog.Logger

	settings Settings
	mode     Mode
	target   uint8

	reading        PresenceReading
	ldr            uint16
	lastPresenceAt time.Time

	ignoreMinusLongClick bool
	restartRequested     bool

	current GestureEvent
	events  []Event
	counts  Counts

	startTime     time.Time
	lastHeartbeat time.Time
}

// NewController loads the preferences and returns a controller in ModeOff.
// network may be nil.
func NewController(strip *Strip, prefs Preferences, network AccessPointRequester, startTime time.Time, log zerolog.Logger) *Controller {
	c := &Controller{
		strip:         strip,
		prefs:         prefs,
		network:       network,
		decoder:       NewDecoder(),
		log:           log,
		settings:      LoadSettings(prefs),
		mode:          ModeOff,
		ldr:           MaxAmbient,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	strip.SetDuration(c.settings.TransitionDuration())

	c.decoder.Handle(ButtonOn, GestureClick, c.onClick)
	c.decoder.Handle(ButtonOn, GestureDoubleClick, c.onDoubleClick)
	c.decoder.Handle(ButtonOn, GestureLongClick, c.onLongClick)

	c.decoder.Handle(ButtonPlus, GestureClick, c.plus)
	c.decoder.Handle(ButtonPlus, GestureLongClick, c.plus)

	c.decoder.Handle(ButtonMinus, GestureClick, c.minus)
	c.decoder.Handle(ButtonMinus, GestureLongClick, c.minus)
	c.decoder.Handle(ButtonMinus, GestureReleased, c.minusReleased)

	c.decoder.Handle(ButtonOff, GestureClick, c.offClick)
	c.decoder.Handle(ButtonOff, GestureDoubleClick, c.offDoubleClick)
	c.decoder.Handle(ButtonOff, GestureLongClick, c.offLongClick)
	return c
}

// LoadSettings reads every setting from the preferences.
func LoadSettings(prefs Preferences) Settings {
	s := DefaultSettings()
	for _, setting := range AllSettings() {
		s.Set(setting, prefs.Stored(setting))
	}
	return s
}

// Tick runs one control loop iteration: gestures are dispatched first, then
// the current mode is evaluated and finally the strip output is advanced.
// It returns the mode changes that happened since the previous Tick.
func (c *Controller) Tick(now time.Time, gestures []GestureEvent, reading PresenceReading, ldr uint16) []Event {
	c.reading = reading
	c.ldr = ldr

	for _, ev := range gestures {
		c.dispatch(ev)
	}
	c.handleState(now)
	c.strip.Tick(now)

	events := c.events
	c.events = nil
	return events
}

func (c *Controller) dispatch(ev GestureEvent) {
	c.current = ev
	c.log.Debug().
		Stringer("button", ev.Button).
		Stringer("gesture", ev.Gesture).
		Str("mode", string(c.mode)).
		Msg("gesture")

	action, handled := c.decoder.Dispatch(ev)
	switch action {
	case ActionFactoryReset:
		c.factoryReset()
		return
	case ActionForceAccessPoint:
		c.forceAccessPoint()
		return
	}
	if !handled && ev.Gesture != GestureTripleClick && ev.Gesture != GestureReleased {
		c.ignore("no handler")
	}
}

func (c *Controller) handleState(now time.Time) {
	switch c.mode {
	case ModeOff:
		if c.nightLightAdmitted() {
			c.setMode(now, ModeStartTransitToNightLight)
		}
	case ModeStartTransitToOn:
		c.strip.SetTarget(c.target, now)
		c.setMode(now, ModeTransitToOn)
	case ModeTransitToOn:
		if c.strip.Current() == c.strip.Target() {
			c.setMode(now, ModeOn)
		}
	case ModeOn:
		// Only gestures leave ON.
	case ModeStartTransitToOff:
		c.target = 0
		c.strip.SetTarget(0, now)
		c.setMode(now, ModeTransitToOff)
	case ModeTransitToOff:
		if c.strip.Current() == 0 {
			c.setMode(now, ModeOff)
		}
	case ModeStartTransitToNightLight:
		c.target = c.settings.NightLightBrightness()
		c.strip.SetTarget(c.target, now)
		c.setMode(now, ModeTransitToNightLight)
	case ModeTransitToNightLight:
		if c.strip.Current() == c.target {
			c.lastPresenceAt = now
			c.setMode(now, ModeNightLightOn)
		}
	case ModeNightLightOn:
		if c.presenceQualifies() {
			c.lastPresenceAt = now
		}
		if !c.settings.AllowNightLight() || now.Sub(c.lastPresenceAt) > c.settings.NightLightOnDuration() {
			c.setMode(now, ModeStartTransitToOff)
		}
	default:
		c.counts.Unreachable++
		c.log.Error().Str("mode", string(c.mode)).Msg("unknown lamp mode, state left unchanged")
	}
}

func (c *Controller) setMode(now time.Time, to Mode) {
	if to == c.mode {
		return
	}
	from := c.mode
	c.mode = to
	c.counts.ModeChanges++
	c.events = append(c.events, Event{
		Timestamp:         now,
		From:              from,
		To:                to,
		TargetBrightness:  c.target,
		CurrentBrightness: c.strip.Current(),
	})
	c.log.Debug().Str("from", string(from)).Str("to", string(to)).Uint8("target", c.target).Msg("mode change")
}

func (c *Controller) presenceQualifies() bool {
	return Qualifies(c.reading, c.settings.Admission())
}

func (c *Controller) nightLightAdmitted() bool {
	return c.settings.AllowNightLight() &&
		c.ldr <= c.settings.NightLightThreshold() &&
		c.presenceQualifies()
}

func (c *Controller) ignore(reason string) {
	c.counts.IgnoredGestures++
	c.log.Debug().
		Stringer("button", c.current.Button).
		Stringer("gesture", c.current.Gesture).
		Str("mode", string(c.mode)).
		Str("reason", reason).
		Msg("gesture ignored")
}

func (c *Controller) confirm(show, value bool) {
	if c.strip.Confirm(show, value) {
		c.counts.Confirmations++
		return
	}
	c.counts.RejectedConfirmations++
}

func (c *Controller) persist(s Setting, v int) {
	if err := c.prefs.Persist(s, v); err != nil {
		c.log.Warn().Err(err).Str("setting", s.String()).Int("value", v).Msg("failed to persist preference")
	}
}

func (c *Controller) toggleOnTarget() uint8 {
	if c.target < c.settings.MaxBrightness() {
		return c.settings.MaxBrightness()
	}
	return c.settings.OnBrightness()
}

func (c *Controller) onClick(now time.Time) {
	switch c.mode {
	case ModeStartTransitToOn, ModeTransitToOn:
		c.ignore("already switching on")
		return
	case ModeOn:
		c.target = c.toggleOnTarget()
	default:
		c.target = c.settings.OnBrightness()
	}
	c.setMode(now, ModeStartTransitToOn)
}

func (c *Controller) onDoubleClick(now time.Time) {
	c.target = c.toggleOnTarget()
	c.setMode(now, ModeStartTransitToOn)
}

func (c *Controller) onLongClick(now time.Time) {
	if c.target == 0 {
		c.ignore("off cannot be stored as default brightness")
		return
	}
	switch c.mode {
	case ModeNightLightOn:
		if int(c.target) != c.prefs.Stored(SettingNightLightBrightness) {
			c.settings.Set(SettingNightLightBrightness, int(c.target))
			c.persist(SettingNightLightBrightness, int(c.target))
		}
	case ModeOn:
		if int(c.target) != c.prefs.Stored(SettingOnBrightness) {
			c.settings.Set(SettingOnBrightness, int(c.target))
			c.persist(SettingOnBrightness, int(c.target))
		}
	default:
		c.ignore("brightness not settled")
		return
	}
	c.confirm(false, false)
}

func (c *Controller) plus(now time.Time) {
	step := int(c.settings.BrightnessStep())
	switch {
	case c.mode.IsNightLight():
		cur := int(c.settings.NightLightBrightness())
		next := min(cur+step, int(c.settings.MaxNightLightBrightness()))
		if next <= cur {
			c.ignore("night light brightness already at maximum")
			return
		}
		c.settings.Set(SettingNightLightBrightness, next)
		c.setMode(now, ModeStartTransitToNightLight)
	case c.mode.IsOff():
		next := min(step, int(c.settings.MaxBrightness()))
		if next == 0 {
			c.ignore("maximum brightness is zero")
			return
		}
		c.setOnTarget(now, uint8(next))
	default:
		cur := int(c.target)
		next := min(cur+step, int(c.settings.MaxBrightness()))
		if next <= cur {
			c.ignore("brightness already at maximum")
			return
		}
		c.setOnTarget(now, uint8(next))
	}
}

func (c *Controller) setOnTarget(now time.Time, target uint8) {
	c.target = target
	c.settings.Set(SettingOnBrightness, int(target))
	c.setMode(now, ModeStartTransitToOn)
}

func (c *Controller) minus(now time.Time) {
	step := int(c.settings.BrightnessStep())
	switch {
	case c.mode.IsNightLight():
		if c.ignoreMinusLongClick {
			c.ignore("minus still held after switching off")
			return
		}
		cur := int(c.settings.NightLightBrightness())
		next := max(cur-step, step)
		if next >= cur {
			c.ignore("night light brightness already at minimum")
			return
		}
		c.settings.Set(SettingNightLightBrightness, next)
		c.setMode(now, ModeStartTransitToNightLight)
	case c.mode.IsOff():
		c.ignore("light is already off")
	default:
		next := int(c.target) - step
		if next < step {
			c.ignoreMinusLongClick = true
			c.setMode(now, ModeStartTransitToOff)
			return
		}
		c.setOnTarget(now, uint8(next))
	}
}

func (c *Controller) minusReleased(time.Time) {
	c.ignoreMinusLongClick = false
}

func (c *Controller) setAllowNightLight(allow bool) bool {
	if allow == c.settings.AllowNightLight() {
		return false
	}
	c.settings.Set(SettingAllowNightLight, boolToInt(allow))
	c.log.Info().Bool("allow", allow).Msg("night light mode changed")
	return true
}

func (c *Controller) offClick(now time.Time) {
	switch c.mode {
	case ModeNightLightOn:
		c.setAllowNightLight(false)
	case ModeOff:
		if c.setAllowNightLight(true) {
			c.confirm(true, true)
		}
	case ModeOn:
		if c.nightLightAdmitted() {
			c.setMode(now, ModeStartTransitToNightLight)
		} else {
			c.setMode(now, ModeStartTransitToOff)
		}
	default:
		c.ignore("lamp is changing brightness")
	}
}

func (c *Controller) offDoubleClick(time.Time) {
	allow := !c.settings.AllowNightLight()
	c.setAllowNightLight(allow)
	c.confirm(true, allow)
}

func (c *Controller) offLongClick(time.Time) {
	live := c.settings.Get(SettingAllowNightLight)
	if live != c.prefs.Stored(SettingAllowNightLight) {
		c.persist(SettingAllowNightLight, live)
	}
	c.confirm(false, false)
}

func (c *Controller) factoryReset() {
	c.log.Warn().Msg("factory reset requested, wiping preferences")
	if err := c.prefs.FactoryReset(); err != nil {
		c.log.Error().Err(err).Msg("factory reset failed")
	}
	c.restartRequested = true
}

func (c *Controller) forceAccessPoint() {
	c.log.Info().Msg("access point mode requested")
	c.confirm(false, false)
	if c.network != nil {
		c.network.RequestAccessPointMode()
	}
}

// Set applies a setting value, clamped to its range, to the running lamp
// and optionally persists it. It returns the value applied.
func (c *Controller) Set(now time.Time, s Setting, v int, persist bool) int {
	old := c.settings.Get(s)
	v = c.settings.Set(s, v)

	switch s {
	case SettingTransitionDurationMs:
		c.strip.SetDuration(c.settings.TransitionDuration())
	case SettingNightLightBrightness:
		if v != old && c.mode.IsNightLight() {
			c.setMode(now, ModeStartTransitToNightLight)
		}
	}

	if persist {
		c.persist(s, v)
	}
	return v
}

// Modify applies a value to the running lamp only.
func (c *Controller) Modify(now time.Time, s Setting, v int) int {
	return c.Set(now, s, v, false)
}

// Save applies a value and persists it.
func (c *Controller) Save(now time.Time, s Setting, v int) int {
	return c.Set(now, s, v, true)
}

// Mode returns the current lamp mode.
func (c *Controller) Mode() Mode { return c.mode }

// Target returns the target brightness of the lamp.
func (c *Controller) Target() uint8 { return c.target }

// Settings returns a copy of the live settings.
func (c *Controller) Settings() Settings { return c.settings }

// Counts returns the diagnostic counters.
func (c *Controller) Counts() Counts { return c.counts }

// RestartRequested reports whether a factory reset asked for a restart.
func (c *Controller) RestartRequested() bool { return c.restartRequested }

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}
	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Mode:      c.mode,
		Counts:    c.counts,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
