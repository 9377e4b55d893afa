package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"role", func(c *Config) { c.General.Role = "host" }},
		{"pad address", func(c *Config) { c.Pad.Address = "nowhere" }},
		{"announce port", func(c *Config) { c.Pad.AnnouncePort = 70000 }},
		{"server", func(c *Config) { c.Subscriber.Server = "1.2.3.4" }},
		{"family mismatch", func(c *Config) {
			c.Subscriber.Server = "10.0.0.1:47600"
			c.Subscriber.Client = "[fe80::1]:0"
		}},
		{"discovery", func(c *Config) { c.Subscriber.Discovery = "carrier-pigeon" }},
		{"negative timeout", func(c *Config) { c.Subscriber.Timeout = -1 }},
	}

	for _, tt := range tests {
		c := DefaultConfig()
		tt.mutate(c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: err = %v, want ErrInvalidConfig", tt.name, err)
		}
	}

	c := DefaultConfig()
	c.Subscriber.Server = "10.0.0.1:47600"
	c.Subscriber.Client = "[::]:0"
	if err := c.Validate(); err != nil {
		t.Errorf("wildcard client of other family rejected: %v", err)
	}
}

func TestManagerSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path)

	// missing file keeps defaults
	if err := m.Load(); err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if m.Get().Subscriber.RateLimit != 100 {
		t.Errorf("defaults not kept")
	}

	cfg := DefaultConfig()
	cfg.General.Role = RolePad
	cfg.Pad.Width = 1920
	m.Set(cfg)
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2 := NewManagerAt(path)
	changed := false
	m2.RegisterChangeCallback(func() { changed = true })
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !changed {
		t.Error("change callback not called")
	}
	if got := m2.Get(); got.General.Role != RolePad || got.Pad.Width != 1920 {
		t.Errorf("loaded %+v", got)
	}
}

func TestManagerLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"subscriber":{"timeout":500}}`), 0644)

	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if c := m.Get(); c.Subscriber.Timeout != 500 || c.Subscriber.RateLimit != 100 || c.Pad.CancelKey != "Pause" {
		t.Errorf("loaded %+v", c.Subscriber)
	}

	os.WriteFile(path, []byte(`{"subscriber":`), 0644)
	if err := m.Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("broken file: err = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MMP_ROLE":        "pad",
		"MMP_TIMEOUT":     "250",
		"MMP_FLAGS":       "clip|hide_remote",
		"MMP_MDNS":        "true",
		"MMP_API_TOKEN":   "secret",
		"MMP_PAD_ADDRESS": "[::]:5000",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := DefaultConfig()
	if err := applyEnv(c, lookup); err != nil {
		t.Fatal(err)
	}
	if c.General.Role != "pad" || c.Subscriber.Timeout != 250 || !c.Pad.MDNS ||
		c.Pad.APIToken != "secret" || c.Subscriber.Flags != "clip|hide_remote" || c.Pad.Address != "[::]:5000" {
		t.Errorf("env not applied: %+v", c)
	}

	env["MMP_RATE_LIMIT"] = "fast"
	if err := applyEnv(c, lookup); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad number: err = %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("MMP_TEST_ONLY_KEY=42\n"), 0644)
	t.Setenv("MMP_TEST_ONLY_KEY", "")
	os.Unsetenv("MMP_TEST_ONLY_KEY")
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("MMP_TEST_ONLY_KEY") != "42" {
		t.Errorf("MMP_TEST_ONLY_KEY = %q", os.Getenv("MMP_TEST_ONLY_KEY"))
	}
}

func TestImportLegacyPad(t *testing.T) {
	c := DefaultConfig()
	err := ImportLegacy(c, []byte(`{"address":{"family":6,"port":5001},"width":2560,"height":1440}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Pad.Address != "[::]:5001" || c.Pad.Width != 2560 || c.Pad.Height != 1440 {
		t.Errorf("pad = %+v", c.Pad)
	}
}

func TestImportLegacySubscriber(t *testing.T) {
	c := DefaultConfig()
	err := ImportLegacy(c, []byte(`{
		"Server": "192.168.1.5",
		"Flags": 5,
		"Timeout": 3000,
		"RateLimit": 250,
		"OffsetX": -1920,
		"OffsetY": 0,
		"Width": 1920,
		"Height": 1200
	}`))
	if err != nil {
		t.Fatal(err)
	}
	s := c.Subscriber
	if s.Server != "192.168.1.5:47600" || s.Flags != "clip|hide_remote" || s.Timeout != 3000 ||
		s.RateLimit != 250 || s.OffsetX != -1920 || s.Width != 1920 || s.Height != 1200 {
		t.Errorf("subscriber = %+v", s)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("imported config invalid: %v", err)
	}

	if err := ImportLegacy(c, []byte(`{"Server":"not an address"}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad server: err = %v", err)
	}
	if err := ImportLegacy(c, []byte(`{`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad json: err = %v", err)
	}
}
