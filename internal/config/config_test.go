package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sdrRecordStoreFolder: custom-records\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SdrRecordStoreFolder != "custom-records" {
		t.Fatalf("got %q, want override preserved", cfg.SdrRecordStoreFolder)
	}
	if cfg.DeviceTimeoutMs != 10_000 {
		t.Fatalf("got DeviceTimeoutMs %d, want default 10000", cfg.DeviceTimeoutMs)
	}
	if cfg.RecordSendDelayMs != 30 {
		t.Fatalf("got RecordSendDelayMs %d, want default 30", cfg.RecordSendDelayMs)
	}
	if cfg.CalibrationFolder != "calibration" {
		t.Fatalf("got %q, want default calibration", cfg.CalibrationFolder)
	}
}

func TestLoadUnknownKeysAreIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "somethingUnknown: 42\ndeviceTimeoutMs: 2000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceTimeoutMs != 2000 {
		t.Fatalf("got %d, want 2000", cfg.DeviceTimeoutMs)
	}
}

func TestEnabledAnalyzerPicksTheEnabledImpl(t *testing.T) {
	cfg := Default()
	cfg.Analyzers = map[string]map[string]AnalyzerImpl{
		"LLZ": {
			"basic":    {Enabled: true},
			"advanced": {Enabled: false},
		},
	}

	name, ok := cfg.EnabledAnalyzer("LLZ")
	if !ok || name != "basic" {
		t.Fatalf("got (%q, %v), want (basic, true)", name, ok)
	}

	if _, ok := cfg.EnabledAnalyzer("GP"); ok {
		t.Fatal("expected no enabled implementation for GP")
	}
}
