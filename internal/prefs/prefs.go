package prefs

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/silen72/night-light/internal/logic"
)

// String preference keys.
const (
	KeyWifiHostname      = "whon"
	KeyWifiApSsid        = "wass"
	KeyWifiApPassphrase  = "wapa"
	KeyWifiApIPAddress   = "waip"
	KeyWifiApNetmask     = "wanm"
	KeyWifiStaSsid       = "wsss"
	KeyWifiStaPassphrase = "wspa"
	KeyWebAuthUsername   = "waun"
	KeyWebAuthPassword   = "wapw"
)

// Defaults for the string preferences.
const (
	DefaultWifiHostname    = "lamp"
	DefaultWifiApSsid      = "esp32LEDStrip"
	DefaultWifiApIPAddress = "192.168.72.1"
	DefaultWifiApNetmask   = "255.255.255.0"
	DefaultWebAuthUsername = "admin"
	DefaultWebAuthPassword = "lamp"

	MaxHostnameLen   = 32
	MinPassphraseLen = 8
	MaxPassphraseLen = 63
)

var stringDefaults = map[string]string{
	KeyWifiHostname:    DefaultWifiHostname,
	KeyWifiApSsid:      DefaultWifiApSsid,
	KeyWifiApIPAddress: DefaultWifiApIPAddress,
	KeyWifiApNetmask:   DefaultWifiApNetmask,
	KeyWebAuthUsername: DefaultWebAuthUsername,
	KeyWebAuthPassword: DefaultWebAuthPassword,
}

// Preferences provides typed access to a Store. Writes are skipped when the
// value equals the stored one.
type Preferences struct {
	store Store
	log   zerolog.Logger
}

// New wraps store.
func New(store Store, log zerolog.Logger) *Preferences {
	return &Preferences{store: store, log: log}
}

// Stored returns the persisted value of s clamped to its range, or the
// default if nothing valid is stored.
func (p *Preferences) Stored(s logic.Setting) int {
	raw, ok, err := p.store.Get(s.Key())
	if err != nil {
		p.log.Warn().Err(err).Str("key", s.Key()).Msg("Failed to read preference, using default")
		return s.Default()
	}
	if !ok {
		return s.Default()
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.log.Warn().Str("key", s.Key()).Str("value", raw).Msg("Ignoring malformed preference")
		return s.Default()
	}
	return s.Clamp(v)
}

// Persist clamps v and stores it unless it equals the stored value.
func (p *Preferences) Persist(s logic.Setting, v int) error {
	v = s.Clamp(v)
	if p.Stored(s) == v {
		return nil
	}
	if err := p.store.Set(s.Key(), strconv.Itoa(v)); err != nil {
		return err
	}
	p.log.Debug().Str("key", s.Key()).Int("value", v).Msg("Preference stored")
	return nil
}

// FactoryReset removes every stored preference.
func (p *Preferences) FactoryReset() error {
	if err := p.store.Clear(); err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}
	p.log.Warn().Msg("All preferences cleared")
	return nil
}

func (p *Preferences) getString(key string) string {
	v, ok, err := p.store.Get(key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("Failed to read preference, using default")
	}
	if err != nil || !ok {
		return stringDefaults[key]
	}
	return v
}

func (p *Preferences) setString(key, value string) error {
	if p.getString(key) == value {
		return nil
	}
	return p.store.Set(key, value)
}

// WifiHostname returns the host name announced on the network.
func (p *Preferences) WifiHostname() string { return p.getString(KeyWifiHostname) }

// SetWifiHostname stores name, truncated to MaxHostnameLen. Empty names are
// rejected.
func (p *Preferences) SetWifiHostname(name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	if len(name) > MaxHostnameLen {
		name = name[:MaxHostnameLen]
	}
	return true, p.setString(KeyWifiHostname, name)
}

// WifiApSsid returns the access point SSID.
func (p *Preferences) WifiApSsid() string { return p.getString(KeyWifiApSsid) }

// SetWifiApSsid stores the access point SSID. Empty SSIDs are rejected.
func (p *Preferences) SetWifiApSsid(ssid string) (bool, error) {
	if ssid == "" {
		return false, nil
	}
	return true, p.setString(KeyWifiApSsid, ssid)
}

// WifiApPassphrase returns the access point passphrase. Empty means open.
func (p *Preferences) WifiApPassphrase() string { return p.getString(KeyWifiApPassphrase) }

// SetWifiApPassphrase stores the passphrase if it is empty or a valid WPA2
// passphrase. It reports whether the value was accepted.
func (p *Preferences) SetWifiApPassphrase(passphrase string) (bool, error) {
	if !validPassphrase(passphrase) {
		return false, nil
	}
	return true, p.setString(KeyWifiApPassphrase, passphrase)
}

// WifiApIPAddress returns the address of the lamp in access point mode.
func (p *Preferences) WifiApIPAddress() netip.Addr {
	return p.getAddr(KeyWifiApIPAddress)
}

// SetWifiApIPAddress stores an IPv4 address.
func (p *Preferences) SetWifiApIPAddress(addr string) (bool, error) {
	return p.setAddr(KeyWifiApIPAddress, addr)
}

// WifiApNetmask returns the access point netmask.
func (p *Preferences) WifiApNetmask() netip.Addr {
	return p.getAddr(KeyWifiApNetmask)
}

// SetWifiApNetmask stores an IPv4 netmask.
func (p *Preferences) SetWifiApNetmask(mask string) (bool, error) {
	return p.setAddr(KeyWifiApNetmask, mask)
}

func (p *Preferences) getAddr(key string) netip.Addr {
	if a, err := netip.ParseAddr(p.getString(key)); err == nil {
		return a
	}
	return netip.MustParseAddr(stringDefaults[key])
}

func (p *Preferences) setAddr(key, value string) (bool, error) {
	a, err := netip.ParseAddr(value)
	if err != nil || !a.Is4() {
		return false, nil
	}
	return true, p.setString(key, a.String())
}

// WifiStaSsid returns the SSID of the network to join.
func (p *Preferences) WifiStaSsid() string { return p.getString(KeyWifiStaSsid) }

// SetWifiStaSsid stores the station SSID. Empty disables station mode.
func (p *Preferences) SetWifiStaSsid(ssid string) (bool, error) {
	return true, p.setString(KeyWifiStaSsid, ssid)
}

// WifiStaPassphrase returns the station passphrase.
func (p *Preferences) WifiStaPassphrase() string { return p.getString(KeyWifiStaPassphrase) }

// SetWifiStaPassphrase stores the station passphrase.
func (p *Preferences) SetWifiStaPassphrase(passphrase string) (bool, error) {
	if !validPassphrase(passphrase) {
		return false, nil
	}
	return true, p.setString(KeyWifiStaPassphrase, passphrase)
}

// WebAuth returns the credentials for the web interface.
func (p *Preferences) WebAuth() (user, password string) {
	return p.getString(KeyWebAuthUsername), p.getString(KeyWebAuthPassword)
}

// SetWebAuth stores the web interface credentials. Empty values are rejected.
func (p *Preferences) SetWebAuth(user, password string) (bool, error) {
	if user == "" || password == "" {
		return false, nil
	}
	if err := p.setString(KeyWebAuthUsername, user); err != nil {
		return false, err
	}
	return true, p.setString(KeyWebAuthPassword, password)
}

func validPassphrase(s string) bool {
	return s == "" || (len(s) >= MinPassphraseLen && len(s) <= MaxPassphraseLen)
}
