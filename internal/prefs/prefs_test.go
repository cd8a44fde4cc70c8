package prefs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/silen72/night-light/internal/logic"
)

var _ logic.Preferences = (*Preferences)(nil)

func TestStoredDefaults(t *testing.T) {
	p := New(NewMemoryStore(), zerolog.Nop())
	for _, s := range logic.AllSettings() {
		if got := p.Stored(s); got != s.Default() {
			t.Errorf("%s: expected default %d, got %d", s, s.Default(), got)
		}
	}
}

func TestPersistDeduplicates(t *testing.T) {
	store := NewMemoryStore()
	p := New(store, zerolog.Nop())

	if err := p.Persist(logic.SettingOnBrightness, 120); err != nil {
		t.Fatal(err)
	}
	if err := p.Persist(logic.SettingOnBrightness, 120); err != nil {
		t.Fatal(err)
	}
	if store.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", store.Writes())
	}

	// Writing the default while nothing is stored is a no-op too.
	if err := p.Persist(logic.SettingMaxBrightness, logic.SettingMaxBrightness.Default()); err != nil {
		t.Fatal(err)
	}
	if store.Writes() != 1 {
		t.Errorf("expected default write to be skipped, got %d writes", store.Writes())
	}

	if got := p.Stored(logic.SettingOnBrightness); got != 120 {
		t.Errorf("expected 120, got %d", got)
	}
}

func TestPersistClamps(t *testing.T) {
	store := NewMemoryStore()
	p := New(store, zerolog.Nop())

	if err := p.Persist(logic.SettingBrightnessStep, 0); err != nil {
		t.Fatal(err)
	}
	if got := p.Stored(logic.SettingBrightnessStep); got != 1 {
		t.Errorf("expected step 0 to be coerced to 1, got %d", got)
	}
}

func TestStoredIgnoresMalformed(t *testing.T) {
	store := NewMemoryStore()
	store.Set(logic.SettingNightLightThreshold.Key(), "dark")
	store.Set(logic.SettingMaxBrightness.Key(), "999")
	p := New(store, zerolog.Nop())

	if got := p.Stored(logic.SettingNightLightThreshold); got != logic.SettingNightLightThreshold.Default() {
		t.Errorf("expected default for malformed value, got %d", got)
	}
	if got := p.Stored(logic.SettingMaxBrightness); got != 255 {
		t.Errorf("expected out of range value to be clamped, got %d", got)
	}
}

func TestFactoryReset(t *testing.T) {
	store := NewMemoryStore()
	p := New(store, zerolog.Nop())
	p.Persist(logic.SettingOnBrightness, 99)
	p.SetWifiApSsid("hallway")

	if err := p.FactoryReset(); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d keys", store.Len())
	}
	if p.Stored(logic.SettingOnBrightness) != logic.SettingOnBrightness.Default() {
		t.Error("expected default after reset")
	}
	if p.WifiApSsid() != DefaultWifiApSsid {
		t.Errorf("expected default SSID, got %q", p.WifiApSsid())
	}
}

func TestStringDefaults(t *testing.T) {
	p := New(NewMemoryStore(), zerolog.Nop())
	if p.WifiHostname() != "lamp" {
		t.Errorf("unexpected hostname %q", p.WifiHostname())
	}
	if p.WifiApSsid() != "esp32LEDStrip" {
		t.Errorf("unexpected SSID %q", p.WifiApSsid())
	}
	if p.WifiApPassphrase() != "" {
		t.Errorf("expected open access point, got %q", p.WifiApPassphrase())
	}
	if p.WifiApIPAddress().String() != "192.168.72.1" || p.WifiApNetmask().String() != "255.255.255.0" {
		t.Errorf("unexpected access point address %s/%s", p.WifiApIPAddress(), p.WifiApNetmask())
	}
	if user, pw := p.WebAuth(); user != "admin" || pw != "lamp" {
		t.Errorf("unexpected credentials %q/%q", user, pw)
	}
}

func TestSetWifiApPassphrase(t *testing.T) {
	tests := []struct {
		passphrase string
		ok         bool
	}{
		{"", true},
		{"short", false},
		{"1234567", false},
		{"12345678", true},
		{string(make([]byte, 64)), false},
	}
	for _, tt := range tests {
		store := NewMemoryStore()
		p := New(store, zerolog.Nop())
		store.Set(KeyWifiApPassphrase, "previous1")

		ok, err := p.SetWifiApPassphrase(tt.passphrase)
		if err != nil {
			t.Fatal(err)
		}
		if ok != tt.ok {
			t.Errorf("%q: expected %v, got %v", tt.passphrase, tt.ok, ok)
		}
		want := "previous1"
		if tt.ok {
			want = tt.passphrase
		}
		if got := p.WifiApPassphrase(); got != want {
			t.Errorf("%q: expected stored %q, got %q", tt.passphrase, want, got)
		}
	}
}

func TestStringWritesDeduplicated(t *testing.T) {
	store := NewMemoryStore()
	p := New(store, zerolog.Nop())

	p.SetWifiApSsid(DefaultWifiApSsid)
	p.SetWebAuth("admin", "lamp")
	if store.Writes() != 0 {
		t.Errorf("expected defaults not to be written, got %d writes", store.Writes())
	}
	p.SetWifiHostname("bedroom-lamp-with-a-name-that-is-far-too-long")
	if got := p.WifiHostname(); len(got) != MaxHostnameLen {
		t.Errorf("expected hostname truncated to %d, got %q", MaxHostnameLen, got)
	}
}

func TestSetAddresses(t *testing.T) {
	p := New(NewMemoryStore(), zerolog.Nop())
	if ok, _ := p.SetWifiApIPAddress("10.0.0.1"); !ok {
		t.Error("expected address to be accepted")
	}
	if ok, _ := p.SetWifiApIPAddress("fe80::1"); ok {
		t.Error("expected IPv6 address to be rejected")
	}
	if ok, _ := p.SetWifiApNetmask("not-a-mask"); ok {
		t.Error("expected malformed netmask to be rejected")
	}
	if p.WifiApIPAddress().String() != "10.0.0.1" {
		t.Errorf("unexpected address %s", p.WifiApIPAddress())
	}
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (f *failingStore) Set(string, string) error          { return errors.New("disk gone") }

func TestStoreErrors(t *testing.T) {
	p := New(&failingStore{}, zerolog.Nop())
	if got := p.Stored(logic.SettingOnBrightness); got != logic.SettingOnBrightness.Default() {
		t.Errorf("expected default on read error, got %d", got)
	}
	if err := p.Persist(logic.SettingOnBrightness, 1); err == nil {
		t.Error("expected write error")
	}
	if p.WifiHostname() != DefaultWifiHostname {
		t.Error("expected default hostname on read error")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.sqlite")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	p := New(store, zerolog.Nop())
	if err := p.Persist(logic.SettingNightLightBrightness, 42); err != nil {
		t.Fatal(err)
	}
	if err := p.Persist(logic.SettingNightLightBrightness, 43); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SetWifiApPassphrase("supersecret"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	p = New(store, zerolog.Nop())

	if got := p.Stored(logic.SettingNightLightBrightness); got != 43 {
		t.Errorf("expected 43 after reopen, got %d", got)
	}
	if p.WifiApPassphrase() != "supersecret" {
		t.Errorf("unexpected passphrase %q", p.WifiApPassphrase())
	}

	if err := p.FactoryReset(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(logic.SettingNightLightBrightness.Key()); ok {
		t.Error("expected key to be gone after reset")
	}
}
