package web

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/status"
)

func TestMetricsEndpoint(t *testing.T) {
	var m *Metrics
	f := newFixture(t, func(o *Options) {
		m = NewMetrics(o.Tracker)
		o.Metrics = m
	})
	lamp := f.lamp.c.Snapshot(f.lamp.now)
	lamp.CurrentBrightness = 42
	lamp.LDR = 17
	f.tracker.Update(lamp, true)

	resp, err := http.Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	text := string(body)
	for _, want := range []string{
		"night_light_brightness_current 42",
		"night_light_ambient_light 17",
		`night_light_mode{mode="OFF"} 1`,
		`night_light_mode{mode="ON"} 0`,
		"night_light_http_requests_total 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
}

func TestObserveEventsSessions(t *testing.T) {
	m := NewMetrics(status.NewTracker(time.Time{}, "", status.Config{}))
	t0 := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }

	m.ObserveEvents([]logic.Event{
		{Timestamp: at(0), From: logic.ModeOff, To: logic.ModeStartTransitToOn},
		{Timestamp: at(1), From: logic.ModeStartTransitToOn, To: logic.ModeTransitToOn},
		{Timestamp: at(2), From: logic.ModeTransitToOn, To: logic.ModeOn},
	})
	m.ObserveEvents([]logic.Event{
		{Timestamp: at(60), From: logic.ModeOn, To: logic.ModeStartTransitToOff},
		{Timestamp: at(61), From: logic.ModeStartTransitToOff, To: logic.ModeTransitToOff},
		{Timestamp: at(62), From: logic.ModeTransitToOff, To: logic.ModeOff},
		{Timestamp: at(100), From: logic.ModeOff, To: logic.ModeStartTransitToNightLight},
		{Timestamp: at(130), From: logic.ModeNightLightOn, To: logic.ModeStartTransitToOff},
	})

	var buf bytes.Buffer
	m.set.WritePrometheus(&buf)
	text := buf.String()
	for _, want := range []string{
		"night_light_lamp_on_seconds_sum 60",
		"night_light_lamp_on_seconds_count 1",
		"night_light_night_light_on_seconds_sum 30",
		`night_light_mode_changes_total{to="OFF"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
}
