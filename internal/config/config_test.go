package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/silen72/night-light/internal/logic"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Loop.Tick.Duration() != 20*time.Millisecond {
		t.Errorf("expected 20ms tick, got %v", cfg.Loop.Tick.Duration())
	}
	if cfg.Loop.Heartbeat.Duration() != 15*time.Minute {
		t.Errorf("expected 15m heartbeat, got %v", cfg.Loop.Heartbeat.Duration())
	}
	if cfg.GPIO.Buttons.Lines() != [logic.NumButtons]int{5, 6, 13, 19} {
		t.Errorf("unexpected lines %v", cfg.GPIO.Buttons.Lines())
	}
	if cfg.Radar.Baud != 256000 {
		t.Errorf("expected 256000 baud, got %d", cfg.Radar.Baud)
	}
	if !cfg.HTTP.Auth || !cfg.Log.Colors {
		t.Error("expected auth and colors enabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info level, got %q", cfg.Log.Level)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("expected MQTT disabled by default, got %q", cfg.MQTT.Broker)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
loop:
  tick: 10ms
  heartbeat: 1m
gpio:
  chip: gpiochip4
  buttons:
    on: 17
    plus: 27
    minus: 22
    off: 23
touch:
  long_click: 1500ms
  adjust_long_click: 250ms
ldr:
  invert: true
mqtt:
  broker: tcp://10.0.0.5:1883
http:
  addr: ":8080"
  auth: false
log:
  level: debug
  json: true
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Loop.Tick.Duration() != 10*time.Millisecond || cfg.Loop.Heartbeat.Duration() != time.Minute {
		t.Errorf("unexpected loop config %+v", cfg.Loop)
	}
	if cfg.GPIO.Chip != "gpiochip4" || cfg.GPIO.Buttons.Lines() != [logic.NumButtons]int{17, 27, 22, 23} {
		t.Errorf("unexpected gpio config %+v", cfg.GPIO)
	}

	tc := cfg.Touch.Classifier()
	if tc.LongClick[logic.ButtonOn] != 1500*time.Millisecond || tc.LongClick[logic.ButtonOff] != 1500*time.Millisecond {
		t.Errorf("unexpected long click %v", tc.LongClick)
	}
	if tc.LongClick[logic.ButtonMinus] != 250*time.Millisecond || !tc.Retrigger[logic.ButtonMinus] {
		t.Errorf("unexpected adjust long click %v %v", tc.LongClick, tc.Retrigger)
	}
	if tc.Debounce != 50*time.Millisecond {
		t.Errorf("expected default debounce, got %v", tc.Debounce)
	}

	if !cfg.LDR.Invert || cfg.HTTP.Auth || cfg.HTTP.Addr != ":8080" {
		t.Errorf("unexpected settings ldr=%+v http=%+v", cfg.LDR, cfg.HTTP)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if got := cfg.MQTT.WSBrokerURL(); got != "ws://10.0.0.5:9001" {
		t.Errorf("unexpected ws broker %q", got)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("LAMP_BROKER", "tcp://broker.lan:1883")
	cfg, err := Parse([]byte(`
mqtt:
  broker: ${LAMP_BROKER}
database:
  path: ${LAMP_DB:/var/lib/night-light/prefs.sqlite}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Broker != "tcp://broker.lan:1883" {
		t.Errorf("unexpected broker %q", cfg.MQTT.Broker)
	}
	if cfg.Database.Path != "/var/lib/night-light/prefs.sqlite" {
		t.Errorf("expected default from expression, got %q", cfg.Database.Path)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad duration", "loop:\n  tick: fast\n"},
		{"duplicate line", "gpio:\n  buttons:\n    on: 5\n    plus: 5\n    minus: 6\n    off: 7\n"},
		{"negative line", "gpio:\n  buttons:\n    on: -1\n    plus: 5\n    minus: 6\n    off: 7\n"},
		{"not yaml", "loop: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("radar:\n  device: /dev/ttyAMA1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Radar.Device != "/dev/ttyAMA1" {
		t.Errorf("unexpected device %q", cfg.Radar.Device)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWSBrokerURL(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "", ""},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"wss://mqtt.example.com/ws", "tcp://192.168.1.200:1883", "wss://mqtt.example.com/ws"},
	}
	for _, tt := range tests {
		c := MQTTConfig{Broker: tt.broker, WSBroker: tt.ws}
		if got := c.WSBrokerURL(); got != tt.want {
			t.Errorf("WSBrokerURL(%q, %q) = %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}
