package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

func TestEmptyTableIsIdentity(t *testing.T) {
	e, err := New(t.TempDir(), []TableMeta{{Name: "ddm"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := e.Value(0, 12.5)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 12.5 {
		t.Fatalf("got %v, want identity 12.5", got)
	}
}

func TestNearestSelectionAndInterpolation(t *testing.T) {
	meta := TableMeta{
		Name: "ddm",
		FactoryDefault: []Row{
			{Frequency: 108_000_000, ReferencePower: -40, ReferenceValue: 0, Adjustment: 1},
			{Frequency: 108_000_000, ReferencePower: -40, ReferenceValue: 10, Adjustment: 3},
			{Frequency: 110_000_000, ReferencePower: -20, ReferenceValue: 0, Adjustment: -5},
		},
	}
	e, err := New(t.TempDir(), []TableMeta{meta})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.SetMode(109_500_000, -41) // 0.5MHz from 110MHz vs 1.5MHz from 108MHz: the 110MHz/-20 row wins
	got, err := e.Value(0, 5)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	// The single selected row shifts values by its -5 adjustment, so the
	// result must not equal the raw input (calibration applied).
	if got == 5 {
		t.Fatalf("expected calibration to adjust the raw value, got identity")
	}
	if math.IsNaN(got) {
		t.Fatal("got NaN")
	}
}

func TestInProgressDisablesAdjustment(t *testing.T) {
	meta := TableMeta{
		Name: "ddm",
		FactoryDefault: []Row{
			{Frequency: 108_000_000, ReferencePower: -40, ReferenceValue: 0, Adjustment: 5},
			{Frequency: 108_000_000, ReferencePower: -40, ReferenceValue: 10, Adjustment: 5},
		},
	}
	e, err := New(t.TempDir(), []TableMeta{meta})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetMode(108_000_000, -40)

	e.StartCalibration()
	got, err := e.Value(0, 3)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %v, want raw 3 while in progress", got)
	}

	e.StopCalibration()
	got, err = e.Value(0, 3)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 8 {
		t.Fatalf("got %v, want 8 after stopping calibration", got)
	}
}

func TestOutOfRangeTableIndexNotFound(t *testing.T) {
	e, err := New(t.TempDir(), []TableMeta{{Name: "ddm"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.ReadTableInfo(5); !errors.Is(err, errkind.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestWriteEmptyRowsRevertsToFactoryDefault(t *testing.T) {
	meta := TableMeta{
		Name:           "ddm",
		FactoryDefault: []Row{{Frequency: 1, ReferencePower: 1, ReferenceValue: 0, Adjustment: 2}},
	}
	e, err := New(t.TempDir(), []TableMeta{meta})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.WriteCalibrationTable(0, TableMeta{}, []Row{{Frequency: 9, ReferencePower: 9, ReferenceValue: 0, Adjustment: 9}}); err != nil {
		t.Fatalf("WriteCalibrationTable: %v", err)
	}
	info, err := e.ReadTableInfo(0)
	if err != nil {
		t.Fatalf("ReadTableInfo: %v", err)
	}
	if info.RowCount != 1 {
		t.Fatalf("got %d rows, want 1", info.RowCount)
	}

	if err := e.WriteCalibrationTable(0, TableMeta{}, nil); err != nil {
		t.Fatalf("WriteCalibrationTable (revert): %v", err)
	}
	row, err := e.ReadTableRow(0, 0)
	if err != nil {
		t.Fatalf("ReadTableRow: %v", err)
	}
	if row.Adjustment != 2 {
		t.Fatalf("got adjustment %v, want factory default 2", row.Adjustment)
	}
}
