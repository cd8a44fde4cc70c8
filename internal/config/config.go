// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/touch"
)

// Config represents the daemon configuration
type Config struct {
	Loop     LoopConfig     `yaml:"loop"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	PWM      PWMConfig      `yaml:"pwm"`
	Touch    TouchConfig    `yaml:"touch"`
	LDR      LDRConfig      `yaml:"ldr"`
	Radar    RadarConfig    `yaml:"radar"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Network  NetworkConfig  `yaml:"network"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// LoopConfig controls the control loop
type LoopConfig struct {
	Tick      Duration `yaml:"tick"`      // Control loop period (default: 20ms)
	Heartbeat Duration `yaml:"heartbeat"` // Heartbeat interval, 0 disables (default: 15m)
}

// GPIOConfig selects the touch button lines
type GPIOConfig struct {
	Chip    string        `yaml:"chip"`
	Buttons ButtonsConfig `yaml:"buttons"`
}

// ButtonsConfig holds one line offset per button
type ButtonsConfig struct {
	On    int `yaml:"on"`
	Plus  int `yaml:"plus"`
	Minus int `yaml:"minus"`
	Off   int `yaml:"off"`
}

// Lines returns the offsets in logic.Button order.
func (b ButtonsConfig) Lines() [logic.NumButtons]int {
	var lines [logic.NumButtons]int
	lines[logic.ButtonOn] = b.On
	lines[logic.ButtonPlus] = b.Plus
	lines[logic.ButtonMinus] = b.Minus
	lines[logic.ButtonOff] = b.Off
	return lines
}

// PWMConfig selects the LED strip output
type PWMConfig struct {
	Chip    string   `yaml:"chip"` // sysfs PWM chip directory
	Channel int      `yaml:"channel"`
	Period  Duration `yaml:"period"`
}

// TouchConfig contains the gesture timing
type TouchConfig struct {
	Debounce        Duration `yaml:"debounce"`
	ClickWindow     Duration `yaml:"click_window"`
	LongClick       Duration `yaml:"long_click"`        // On and Off
	AdjustLongClick Duration `yaml:"adjust_long_click"` // Plus and Minus, repeats while held
}

// Classifier returns the classifier configuration.
func (t TouchConfig) Classifier() touch.Config {
	c := touch.DefaultConfig()
	c.Debounce = t.Debounce.Duration()
	c.ClickWindow = t.ClickWindow.Duration()
	c.LongClick[logic.ButtonOn] = t.LongClick.Duration()
	c.LongClick[logic.ButtonOff] = t.LongClick.Duration()
	c.LongClick[logic.ButtonPlus] = t.AdjustLongClick.Duration()
	c.LongClick[logic.ButtonMinus] = t.AdjustLongClick.Duration()
	return c
}

// LDRConfig selects the light sensor
type LDRConfig struct {
	Path   string   `yaml:"path"`   // IIO raw attribute
	Invert bool     `yaml:"invert"` // More light gives a lower reading
	Delay  Duration `yaml:"delay"`  // Time between samples (default: 500ms)
}

// RadarConfig selects the presence radar
type RadarConfig struct {
	Device     string   `yaml:"device"`
	Baud       int      `yaml:"baud"`
	StaleAfter Duration `yaml:"stale_after"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig contains broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`    // Empty disables MQTT
	WSBroker string `yaml:"ws_broker"` // "=broker" derives from Broker, "off" disables
	Topic    string `yaml:"topic"`     // Topic prefix
}

// NetworkConfig contains the access point hook
type NetworkConfig struct {
	StateFile       string   `yaml:"state_file"`        // env file written by the network helper
	AccessPointHook string   `yaml:"access_point_hook"` // Command run to force access point mode
	HookTimeout     Duration `yaml:"hook_timeout"`
}

// HTTPConfig contains the web server settings
type HTTPConfig struct {
	Addr         string  `yaml:"addr"` // Empty disables the server
	Auth         bool    `yaml:"auth"` // Require the stored web credentials
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. A missing path yields the
// defaults.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	return Parse(data)
}

// Parse parses YAML, expanding ${VAR} and ${VAR:default}, and applies the
// defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Config{
		HTTP: HTTPConfig{Auth: true},
		Log:  LogConfig{Colors: true},
		MQTT: MQTTConfig{WSBroker: "=broker"},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Loop.Tick == 0 {
		cfg.Loop.Tick = Duration(20 * time.Millisecond)
	}
	if cfg.Loop.Heartbeat == 0 {
		cfg.Loop.Heartbeat = Duration(15 * time.Minute)
	}

	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
	if cfg.GPIO.Buttons == (ButtonsConfig{}) {
		cfg.GPIO.Buttons = ButtonsConfig{On: 5, Plus: 6, Minus: 13, Off: 19}
	}

	if cfg.PWM.Chip == "" {
		cfg.PWM.Chip = "/sys/class/pwm/pwmchip0"
	}
	if cfg.PWM.Period == 0 {
		cfg.PWM.Period = Duration(time.Millisecond)
	}

	def := touch.DefaultConfig()
	if cfg.Touch.Debounce == 0 {
		cfg.Touch.Debounce = Duration(def.Debounce)
	}
	if cfg.Touch.ClickWindow == 0 {
		cfg.Touch.ClickWindow = Duration(def.ClickWindow)
	}
	if cfg.Touch.LongClick == 0 {
		cfg.Touch.LongClick = Duration(def.LongClick[logic.ButtonOn])
	}
	if cfg.Touch.AdjustLongClick == 0 {
		cfg.Touch.AdjustLongClick = Duration(def.LongClick[logic.ButtonPlus])
	}

	if cfg.LDR.Path == "" {
		cfg.LDR.Path = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	}
	if cfg.LDR.Delay == 0 {
		cfg.LDR.Delay = Duration(logic.DefaultAmbientDelay)
	}

	if cfg.Radar.Device == "" {
		cfg.Radar.Device = "/dev/serial0"
	}
	if cfg.Radar.Baud == 0 {
		cfg.Radar.Baud = 256000
	}
	if cfg.Radar.StaleAfter == 0 {
		cfg.Radar.StaleAfter = Duration(2 * time.Second)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./night-light.sqlite"
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "night-light"
	}

	if cfg.Network.StateFile == "" {
		cfg.Network.StateFile = "/run/pi-helper.env"
	}
	if cfg.Network.HookTimeout == 0 {
		cfg.Network.HookTimeout = Duration(30 * time.Second)
	}

	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 5
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (cfg *Config) validate() error {
	if cfg.Loop.Tick < 0 {
		return fmt.Errorf("loop.tick must be positive, got %v", cfg.Loop.Tick.Duration())
	}
	lines := cfg.GPIO.Buttons.Lines()
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if l < 0 {
			return fmt.Errorf("gpio line %d is negative", l)
		}
		if seen[l] {
			return fmt.Errorf("gpio line %d is used by more than one button", l)
		}
		seen[l] = true
	}
	if cfg.PWM.Channel < 0 {
		return fmt.Errorf("pwm.channel must not be negative")
	}
	return nil
}

// WSBrokerURL converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or an
// unparseable broker disables it.
func (c MQTTConfig) WSBrokerURL() string {
	if c.WSBroker == "off" || c.Broker == "" && c.WSBroker == "=broker" {
		return ""
	}
	if c.WSBroker != "=broker" {
		return c.WSBroker
	}
	u, err := url.Parse(c.Broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
