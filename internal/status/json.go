package status

import (
	"encoding/json"
	"time"

	"github.com/silen72/night-light/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Ready         bool         `json:"ready"`
	BootID        string       `json:"boot_id,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Brightness    Brightness   `json:"brightness"`
	NightLight    NightLight   `json:"night_light"`
	Presence      PresenceJSON `json:"presence"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// Brightness reports the output and the brightness settings.
type Brightness struct {
	Target       uint8 `json:"target"`
	Current      uint8 `json:"current"`
	Duty         uint8 `json:"duty"`
	Confirming   bool  `json:"confirming"`
	On           uint8 `json:"on"`
	Max          uint8 `json:"max"`
	Step         uint8 `json:"step"`
	TransitionMs int64 `json:"transition_ms"`
}

// NightLight reports the night light settings and hold timer.
type NightLight struct {
	Allowed           bool   `json:"allowed"`
	Brightness        uint8  `json:"brightness"`
	MaxBrightness     uint8  `json:"max_brightness"`
	Threshold         uint16 `json:"threshold"`
	LDR               uint16 `json:"ldr"`
	OnDurationSeconds int64  `json:"on_duration_s"`
	NoPresenceSeconds int64  `json:"no_presence_s"`
}

// PresenceJSON reports the last radar reading.
type PresenceJSON struct {
	Detected   bool       `json:"detected"`
	Qualified  bool       `json:"qualified"`
	Moving     TargetJSON `json:"moving"`
	Stationary TargetJSON `json:"stationary"`
}

// TargetJSON is one radar target with its admission band.
type TargetJSON struct {
	Detected      bool   `json:"detected"`
	Qualifies     bool   `json:"qualifies"`
	DistanceCm    uint16 `json:"distance_cm"`
	Energy        uint8  `json:"energy"`
	MinDistanceCm uint16 `json:"min_distance_cm"`
	MaxDistanceCm uint16 `json:"max_distance_cm"`
	MinEnergy     uint8  `json:"min_energy"`
	MaxEnergy     uint8  `json:"max_energy"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the diagnostic counters.
type CountsJSON struct {
	ModeChanges           int `json:"mode_changes"`
	IgnoredGestures       int `json:"ignored_gestures"`
	Confirmations         int `json:"confirmations"`
	RejectedConfirmations int `json:"rejected_confirmations"`
	Unreachable           int `json:"unreachable"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Mode       string `json:"mode"`
	SubState   string `json:"sub_state"`
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	RadarDevice string `json:"radar_device"`
	Hostname    string `json:"hostname,omitempty"`
}

func target(ts logic.TargetState, b logic.TargetBounds) TargetJSON {
	return TargetJSON{
		Detected:      ts.Detected,
		Qualifies:     ts.Qualifies,
		DistanceCm:    ts.DistanceCm,
		Energy:        ts.Energy,
		MinDistanceCm: b.MinDistanceCm,
		MaxDistanceCm: b.MaxDistanceCm,
		MinEnergy:     b.MinEnergy,
		MaxEnergy:     b.MaxEnergy,
	}
}

func buildInner(snap Snapshot) StatusInner {
	lamp := snap.Lamp
	mode := string(lamp.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	return StatusInner{
		Mode:          mode,
		Ready:         snap.Ready,
		BootID:        snap.BootID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Brightness: Brightness{
			Target:       lamp.TargetBrightness,
			Current:      lamp.CurrentBrightness,
			Duty:         lamp.Duty,
			Confirming:   lamp.Confirming,
			On:           lamp.OnBrightness,
			Max:          lamp.MaxBrightness,
			Step:         lamp.BrightnessStep,
			TransitionMs: lamp.TransitionDuration.Milliseconds(),
		},
		NightLight: NightLight{
			Allowed:           lamp.AllowNightLight,
			Brightness:        lamp.NightLightBrightness,
			MaxBrightness:     lamp.MaxNightLightBrightness,
			Threshold:         lamp.NightLightThreshold,
			LDR:               lamp.LDR,
			OnDurationSeconds: int64(lamp.NightLightOnDuration.Seconds()),
			NoPresenceSeconds: int64(lamp.NoPresenceDuration.Seconds()),
		},
		Presence: PresenceJSON{
			Detected:   lamp.Presence.Detected,
			Qualified:  lamp.Presence.Qualified,
			Moving:     target(lamp.Presence.Moving, lamp.Bounds.Moving),
			Stationary: target(lamp.Presence.Stationary, lamp.Bounds.Stationary),
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ModeChanges:           lamp.Counts.ModeChanges,
			IgnoredGestures:       lamp.Counts.IgnoredGestures,
			Confirmations:         lamp.Counts.Confirmations,
			RejectedConfirmations: lamp.Counts.RejectedConfirmations,
			Unreachable:           lamp.Counts.Unreachable,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			RadarDevice: snap.Config.RadarDevice,
			Hostname:    snap.Config.Hostname,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Mode:       snap.Network.Mode,
			SubState:   snap.Network.SubState,
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
