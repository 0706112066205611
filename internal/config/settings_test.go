package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	settings, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	defaults := Defaults()
	if settings.Prefix != defaults.Prefix {
		t.Errorf("Prefix = %q, want %q", settings.Prefix, defaults.Prefix)
	}
	if settings.FactoryDeviceAddr != defaults.FactoryDeviceAddr {
		t.Errorf("FactoryDeviceAddr = %q", settings.FactoryDeviceAddr)
	}
	if settings.DebounceCount != defaults.DebounceCount {
		t.Errorf("DebounceCount = %d", settings.DebounceCount)
	}
}

func TestSaveToLoadFromRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	settings := Defaults()
	settings.Prefix = "shellyplus"
	settings.ClaimAttempts = 4
	settings.WaitTime = 30 * time.Second

	if err := settings.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Prefix != "shellyplus" {
		t.Errorf("Prefix = %q", loaded.Prefix)
	}
	if loaded.ClaimAttempts != 4 {
		t.Errorf("ClaimAttempts = %d", loaded.ClaimAttempts)
	}
	if loaded.WaitTime != 30*time.Second {
		t.Errorf("WaitTime = %v", loaded.WaitTime)
	}
}

func TestLoadFromPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\nprefix: shellypro\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if settings.Prefix != "shellypro" {
		t.Errorf("Prefix = %q", settings.Prefix)
	}
	if settings.DebounceCount != Defaults().DebounceCount {
		t.Errorf("DebounceCount = %d, want default", settings.DebounceCount)
	}
}

func TestLoadFromRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 99\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error = %v", err)
	}
}
