package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/status"
)

var allModes = []logic.Mode{
	logic.ModeOff,
	logic.ModeStartTransitToOn,
	logic.ModeTransitToOn,
	logic.ModeOn,
	logic.ModeStartTransitToOff,
	logic.ModeTransitToOff,
	logic.ModeStartTransitToNightLight,
	logic.ModeTransitToNightLight,
	logic.ModeNightLightOn,
}

// Metrics exposes lamp state and light session durations in the Prometheus
// text format.
type Metrics struct {
	set      *metrics.Set
	requests *metrics.Counter
	lampOn   *metrics.Summary
	nightOn  *metrics.Summary

	mu         sync.Mutex
	lampSince  time.Time
	nightSince time.Time
}

// NewMetrics registers the lamp metrics. Gauges are read from the tracker at
// scrape time.
func NewMetrics(tracker *status.Tracker) *Metrics {
	set := metrics.NewSet()
	m := &Metrics{
		set:      set,
		requests: set.NewCounter("night_light_http_requests_total"),
		lampOn:   set.NewSummary("night_light_lamp_on_seconds"),
		nightOn:  set.NewSummary("night_light_night_light_on_seconds"),
	}

	lamp := func() logic.DeviceState { return tracker.Snapshot().Lamp }
	set.NewGauge("night_light_brightness_current", func() float64 { return float64(lamp().CurrentBrightness) })
	set.NewGauge("night_light_brightness_target", func() float64 { return float64(lamp().TargetBrightness) })
	set.NewGauge("night_light_duty", func() float64 { return float64(lamp().Duty) })
	set.NewGauge("night_light_ambient_light", func() float64 { return float64(lamp().LDR) })
	set.NewGauge("night_light_presence_qualified", func() float64 {
		if lamp().Presence.Qualified {
			return 1
		}
		return 0
	})
	set.NewGauge("night_light_mqtt_connected", func() float64 {
		if tracker.Snapshot().MQTTConnected {
			return 1
		}
		return 0
	})
	for _, mode := range allModes {
		set.NewGauge(fmt.Sprintf(`night_light_mode{mode=%q}`, mode), func() float64 {
			if lamp().Mode == mode {
				return 1
			}
			return 0
		})
	}
	return m
}

// ObserveEvents records mode changes and closes light sessions. A session
// starts when the lamp enters an on or night light mode and ends when it
// leaves that family of modes.
func (m *Metrics) ObserveEvents(events []logic.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.set.GetOrCreateCounter(fmt.Sprintf(`night_light_mode_changes_total{to=%q}`, ev.To)).Inc()

		switch {
		case ev.To.IsOn() && m.lampSince.IsZero():
			m.lampSince = ev.Timestamp
		case !ev.To.IsOn() && !m.lampSince.IsZero():
			m.lampOn.Update(ev.Timestamp.Sub(m.lampSince).Seconds())
			m.lampSince = time.Time{}
		}
		switch {
		case ev.To.IsNightLight() && m.nightSince.IsZero():
			m.nightSince = ev.Timestamp
		case !ev.To.IsNightLight() && !m.nightSince.IsZero():
			m.nightOn.Update(ev.Timestamp.Sub(m.nightSince).Seconds())
			m.nightSince = time.Time{}
		}
	}
}

// ServeHTTP writes every metric in the Prometheus text format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m.set.WritePrometheus(w)
}

func (m *Metrics) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Inc()
		next.ServeHTTP(w, r)
	})
}
