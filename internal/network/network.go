// Package network reports the network mode of the lamp and asks the system
// to switch to access point mode.
package network

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode is the Wi-Fi mode.
type Mode string

const (
	ModeOff         Mode = "OFF"
	ModeAccessPoint Mode = "AP"
	ModeStation     Mode = "STA"
)

// Info is the network state written by the network helper.
type Info struct {
	Mode       Mode
	SubState   string
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// Runner runs a command. It is exec based in production.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Provider reads the network state and runs the access point hook.
type Provider struct {
	stateFile string
	hook      []string
	timeout   time.Duration
	run       Runner
	log       zerolog.Logger

	mu       sync.Mutex
	running  bool
	requests int
	wg       sync.WaitGroup
}

// NewProvider creates a provider. An empty hook disables access point
// requests.
func NewProvider(stateFile, hook string, timeout time.Duration, log zerolog.Logger) *Provider {
	return &Provider{
		stateFile: stateFile,
		hook:      strings.Fields(hook),
		timeout:   timeout,
		run:       execRunner,
		log:       log,
	}
}

// SetRunner replaces the command runner.
func (p *Provider) SetRunner(r Runner) { p.run = r }

// Current returns the network state. Values come from the state file, or
// from the process environment when the file is missing.
func (p *Provider) Current() Info {
	lookup := os.Getenv
	if data, err := os.ReadFile(p.stateFile); err == nil {
		vars := parseEnv(data)
		lookup = func(k string) string { return vars[k] }
	}
	return infoFrom(lookup)
}

func infoFrom(lookup func(string) string) Info {
	info := Info{
		Type:       lookup(envNetworkType),
		IP:         lookup(envNetworkIP),
		Status:     lookup(envNetworkStatus),
		Gateway:    lookup(envNetworkGateway),
		WifiStatus: lookup(envNetworkWifiStatus),
		SSID:       lookup(envNetworkWifiSSID),
	}
	info.Mode = modeOf(info)
	info.SubState = info.WifiStatus
	if info.SubState == "" {
		info.SubState = info.Status
	}
	return info
}

func modeOf(info Info) Mode {
	t := strings.ToLower(info.Type)
	if t == "ap" || strings.Contains(t, "hotspot") || strings.HasSuffix(t, "-ap") {
		return ModeAccessPoint
	}
	switch strings.ToLower(info.Status) {
	case "", "down", "disconnected", "offline":
		return ModeOff
	}
	return ModeStation
}

// parseEnv reads KEY=VALUE lines, ignoring blanks, comments and quotes.
func parseEnv(data []byte) map[string]string {
	vars := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars
}

// RequestAccessPointMode runs the hook in the background. Requests while
// the hook is still running are dropped.
func (p *Provider) RequestAccessPointMode() {
	if len(p.hook) == 0 {
		p.log.Warn().Msg("access point requested but no hook is configured")
		return
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Debug().Msg("access point hook already running")
		return
	}
	p.running = true
	p.requests++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		p.log.Info().Strs("command", p.hook).Msg("switching to access point mode")
		if err := p.run(ctx, p.hook[0], p.hook[1:]...); err != nil {
			p.log.Error().Err(err).Msg("access point hook failed")
		}

		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()
}

// Requests returns how many hook runs were started.
func (p *Provider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// Wait blocks until running hooks have finished.
func (p *Provider) Wait() { p.wg.Wait() }
