package workmode

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

func TestParseModeUnknownIsUnsupported(t *testing.T) {
	if _, err := ParseMode("XYZ"); err == nil {
		t.Fatal("expected error for unknown mode name")
	}
}

func TestRegistryUnsupportedWhenNotEnabled(t *testing.T) {
	r := NewRegistry()
	if _, err := r.New(ModeLLZ); err == nil {
		t.Fatal("expected ErrUnsupported for unregistered mode")
	}
}

func TestRegistryEnableUnknownImplFails(t *testing.T) {
	r := NewRegistry()
	r.Register(ModeLLZ, "basic", newLLZAnalyzer)
	if err := r.Enable(ModeLLZ, "fancy"); err == nil {
		t.Fatal("expected error enabling unregistered implementation")
	}
}

func TestDefaultRegistrySupportedModesBitmask(t *testing.T) {
	r := DefaultRegistry()
	bits := r.SupportedModes()
	if bits&ModeLLZ.Bit() == 0 || bits&ModeGP.Bit() == 0 || bits&ModeVOR.Bit() == 0 {
		t.Fatalf("got bitmask %b, want all three modes set", bits)
	}
}

func TestAnalyzerReadDataZeroFillsAbsentTelemetry(t *testing.T) {
	r := DefaultRegistry()
	a, err := r.New(ModeLLZ)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Init(context.Background(), 109_500_000, -40, nil, func() {}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	payload := make([]byte, 256)
	id := uuid.New()
	if err := a.ReadData(id, 0, TelemetrySnapshot{}, payload); err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if payload[20] != FixTypeNoGPS {
		t.Fatalf("got fix type %d, want NoGPS zero-fill", payload[20])
	}
}

func TestAnalyzerReadDataRejectsUndersizedPayload(t *testing.T) {
	r := DefaultRegistry()
	a, err := r.New(ModeGP)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Init(context.Background(), 1, 0, nil, func() {}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := a.ReadData(uuid.New(), 0, TelemetrySnapshot{}, make([]byte, 4)); !errors.Is(err, errkind.ErrFailed) {
		t.Fatalf("got %v, want ErrFailed", err)
	}
}
