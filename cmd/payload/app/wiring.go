package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
	"github.com/skyward-avionics/sdr-payload/internal/config"
	"github.com/skyward-avionics/sdr-payload/internal/mavlink"
	"github.com/skyward-avionics/sdr-payload/internal/mission"
	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher"
	"github.com/skyward-avionics/sdr-payload/internal/telemetry"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// components bundles every constructed collaborator Run needs to drive its
// event loop and shut down in order.
type components struct {
	node            *mavlink.Node
	st              *store.Store
	calib           *calibration.Engine
	tel             *telemetry.Source
	sw              *switcher.Switcher
	mission         *mission.Executor
	dispatcher      *Dispatcher
	deviceTimeoutMs int
}

// defaultCalibrationTables seeds one factory-empty calibration table per
// named work mode, keyed by index in the order LLZ, GP, VOR: the
// configuration format carries no per-table metadata of its own, so this
// wiring layer is the one place table identity is decided.
func defaultCalibrationTables() []calibration.TableMeta {
	return []calibration.TableMeta{
		{Name: "LLZ"},
		{Name: "GP"},
		{Name: "VOR"},
	}
}

// buildRegistry registers every built-in analyzer implementation and enables
// the one the configuration marks enabled for each mode, falling back to
// "basic" when the configuration is silent for that mode.
func buildRegistry(cfg config.Config, logger *slog.Logger) *workmode.Registry {
	reg := workmode.DefaultRegistry()

	for _, mode := range []workmode.Mode{workmode.ModeLLZ, workmode.ModeGP, workmode.ModeVOR} {
		impl, ok := cfg.EnabledAnalyzer(mode.String())
		if !ok {
			impl = "basic"
		}
		if err := reg.Enable(mode, impl); err != nil {
			logger.Warn("wiring: falling back to basic analyzer", "mode", mode, "requested", impl, "error", err)
			if err := reg.Enable(mode, "basic"); err != nil {
				logger.Error("wiring: mode has no usable analyzer implementation", "mode", mode, "error", err)
			}
		}
	}
	return reg
}

func build(cfg config.Config, logger *slog.Logger) (*components, error) {
	node, err := mavlink.Open(cfg.Mavlink)
	if err != nil {
		return nil, fmt.Errorf("opening mavlink transport: %w", err)
	}

	st, err := store.New(cfg.SdrRecordStoreFolder,
		store.WithLogger(logger),
		store.WithFileCacheTTL(time.Duration(cfg.FileCacheTimeMs)*time.Millisecond))
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	calib, err := calibration.New(cfg.CalibrationFolder, defaultCalibrationTables())
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("opening calibration engine: %w", err)
	}

	tel := telemetry.New(node, telemetry.Config{
		SystemID:        byte(cfg.GnssSystemID),
		ComponentID:     byte(cfg.GnssComponentID),
		DeviceTimeoutMs: cfg.DeviceTimeoutMs,
		ReqMessageRate:  cfg.ReqMessageRate,
	}, telemetry.WithLogger(logger))

	registry := buildRegistry(cfg, logger)

	sw := switcher.New(st, calib, registry, tel, switcher.WithSender(node), switcher.WithLogger(logger))
	mis := mission.New(sw, tel, mission.WithLogger(logger))

	sendWait := time.Duration(cfg.RecordSendDelayMs) * time.Millisecond
	dispatcher := NewDispatcher(sw, mis, calib, node, sendWait, logger)

	return &components{
		node:            node,
		st:              st,
		calib:           calib,
		tel:             tel,
		sw:              sw,
		mission:         mis,
		dispatcher:      dispatcher,
		deviceTimeoutMs: cfg.DeviceTimeoutMs,
	}, nil
}

func (c *components) Close() {
	c.mission.StopMission()
	_ = c.sw.StopRecord()
	_ = c.st.Close()
	c.node.Close()
}
