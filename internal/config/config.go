// Package config loads the payload controller's YAML configuration file
// and applies documented defaults to whatever the file leaves unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skyward-avionics/sdr-payload/internal/mavlink"
)

// AnalyzerImpl is one candidate implementation for a mode, keyed by name in
// the YAML map, carrying whether it is the enabled one.
type AnalyzerImpl struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the payload controller's top-level configuration, matching the
// documented key table. Unknown YAML keys are ignored by yaml.v3's default
// unmarshaling; missing keys keep their zero value until Defaults applies
// the documented default.
type Config struct {
	Mavlink mavlink.Config `yaml:"mavlink"`

	DeviceTimeoutMs   int `yaml:"deviceTimeoutMs"`
	GnssSystemID      int `yaml:"gnssSystemId"`
	GnssComponentID   int `yaml:"gnssComponentId"`
	ReqMessageRate    int `yaml:"reqMessageRate"`
	RecordSendDelayMs int `yaml:"recordSendDelayMs"`

	SdrRecordStoreFolder string `yaml:"sdrRecordStoreFolder"`
	FileCacheTimeMs      int    `yaml:"fileCacheTimeMs"`
	CalibrationFolder    string `yaml:"calibrationFolder"`

	// Analyzers maps Mode name -> impl name -> { enabled }. Exactly one impl
	// per mode is expected to have enabled: true.
	Analyzers map[string]map[string]AnalyzerImpl `yaml:"analyzers"`
}

// Default returns a Config with every documented default applied and no
// MAVLink endpoints configured.
func Default() Config {
	return Config{
		DeviceTimeoutMs:      10_000,
		GnssSystemID:         1,
		GnssComponentID:      1,
		ReqMessageRate:       5,
		RecordSendDelayMs:    30,
		SdrRecordStoreFolder: "records",
		FileCacheTimeMs:      5_000,
		CalibrationFolder:    "calibration",
	}
}

// Load reads and parses the YAML file at path, then fills any field the
// file left at its zero value with the documented default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.DeviceTimeoutMs == 0 {
		cfg.DeviceTimeoutMs = def.DeviceTimeoutMs
	}
	if cfg.GnssSystemID == 0 {
		cfg.GnssSystemID = def.GnssSystemID
	}
	if cfg.GnssComponentID == 0 {
		cfg.GnssComponentID = def.GnssComponentID
	}
	if cfg.ReqMessageRate == 0 {
		cfg.ReqMessageRate = def.ReqMessageRate
	}
	if cfg.RecordSendDelayMs == 0 {
		cfg.RecordSendDelayMs = def.RecordSendDelayMs
	}
	if cfg.SdrRecordStoreFolder == "" {
		cfg.SdrRecordStoreFolder = def.SdrRecordStoreFolder
	}
	if cfg.FileCacheTimeMs == 0 {
		cfg.FileCacheTimeMs = def.FileCacheTimeMs
	}
	if cfg.CalibrationFolder == "" {
		cfg.CalibrationFolder = def.CalibrationFolder
	}
}

// EnabledAnalyzer returns the implementation name enabled for mode, and
// false if none is marked enabled.
func (c Config) EnabledAnalyzer(mode string) (string, bool) {
	for name, impl := range c.Analyzers[mode] {
		if impl.Enabled {
			return name, true
		}
	}
	return "", false
}
