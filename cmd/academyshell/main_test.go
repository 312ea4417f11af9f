package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"KODIQ_SUPABASE_URL", "KODIQ_SUPABASE_ANON_KEY", "KODIQ_ACADEMY_URL",
		"KODIQ_NAV_CONFIG_URL", "KODIQ_VERSION_URL", "KODIQ_PUSH_ENDPOINT",
		"KODIQ_PUSH_TOKEN", "KODIQ_PROBE_URL", "KODIQ_PLATFORM",
		"KODIQ_APP_VERSION", "KODIQ_STATE_DIR", "API_ADDR",
	} {
		t.Setenv(key, "")
	}

	config := loadEnvironmentConfig()
	if config.StateDir != DefaultStateDir {
		t.Errorf("state dir = %q", config.StateDir)
	}
	if config.AcademyURL != DefaultAcademyURL {
		t.Errorf("academy URL = %q", config.AcademyURL)
	}
	if config.Platform != "android" {
		t.Errorf("platform = %q", config.Platform)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	t.Setenv("KODIQ_STATE_DIR", "/tmp/shell-state")
	t.Setenv("KODIQ_PLATFORM", "ios")

	config := loadEnvironmentConfig()
	if config.StateDir != "/tmp/shell-state" {
		t.Errorf("state dir = %q", config.StateDir)
	}
	if config.Platform != "ios" {
		t.Errorf("platform = %q", config.Platform)
	}
}

func TestPrintPairingCodeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qr.txt")
	printPairingCode("127.0.0.1:9000", path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("QR file not written: %v", err)
	}
	if !strings.Contains(string(data), "ws://127.0.0.1:9000/bridge") {
		t.Error("QR output missing bridge endpoint")
	}
}
