// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/silen72/night-light/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "night-light"

// Topics holds the topics a lamp publishes to.
type Topics struct {
	// Events carries lamp mode changes.
	Events string
	// System carries lifecycle events and the last will.
	System string
}

// NewTopics derives the topics from a prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a lamp mode change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "FACTORY_RESET"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lamp LampPayload `json:"lamp"`
}

// LampPayload contains the mode change details.
type LampPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	Target    uint8  `json:"target"`
	Current   uint8  `json:"current"`
}

// EventModeChange is the event name of lamp mode changes.
const EventModeChange = "MODE_CHANGE"

// FormatPayload creates the JSON payload for a lamp event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Lamp: LampPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     EventModeChange,
			From:      string(event.From),
			To:        string(event.To),
			Target:    event.TargetBrightness,
			Current:   event.CurrentBrightness,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
