package mission

import (
	"errors"
	"testing"
	"time"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
	"github.com/skyward-avionics/sdr-payload/internal/signal"
	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

type fakeWaypointWatcher struct {
	cell *signal.Cell[uint16]
}

func newFakeWaypointWatcher() *fakeWaypointWatcher {
	return &fakeWaypointWatcher{cell: signal.New[uint16]()}
}

func (f *fakeWaypointWatcher) WatchReachedWaypoint() (<-chan uint16, func()) {
	return f.cell.Watch()
}

func newTestExecutor(t *testing.T) (*Executor, *fakeWaypointWatcher) {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	calib, err := calibration.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("calibration.New: %v", err)
	}

	sw := switcher.New(st, calib, workmode.DefaultRegistry(), nil)
	tel := newFakeWaypointWatcher()
	return New(sw, tel), tel
}

func TestStartMissionUnknownIndexFails(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{{Seq: 0, Command: CmdDelay, DelayMs: 1}})

	if err := e.StartMission(5); !errors.Is(err, errkind.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStartMissionIsIdempotentWhileInProgress(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{
		{Seq: 0, Command: CmdDelay, DelayMs: 200},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if err := e.StartMission(0); err != nil {
		t.Fatalf("second StartMission while in progress: %v", err)
	}
	e.StopMission()
}

func TestStopMissionIdempotentWhileIdle(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.StopMission()
	e.StopMission()
	if e.State() != switcher.MissionIdle {
		t.Fatalf("got %s, want Idle", e.State())
	}
}

func TestMissionRunsSetModeStartRecordDelayStopRecord(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{
		{Seq: 0, Command: CmdSetMode, Mode: workmode.ModeGP, Frequency: 329_150_000, RecordRate: 5, Ratio: 1, RefPower: -30},
		{Seq: 1, Command: CmdStartRecord, Name: "m0"},
		{Seq: 2, Command: CmdDelay, DelayMs: 50},
		{Seq: 3, Command: CmdStopRecord},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for e.State() == switcher.MissionInProgress {
		select {
		case <-deadline:
			t.Fatal("mission did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if e.State() != switcher.MissionIdle {
		t.Fatalf("got %s, want Idle after completion", e.State())
	}

	reached, ok := e.ReachedItem()
	if !ok || reached != 3 {
		t.Fatalf("got reached=%d ok=%v, want 3/true", reached, ok)
	}
}

func TestMissionUnknownCommandIsSkippedNotFatal(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{
		{Seq: 0, Command: Command(99)},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	deadline := time.After(1 * time.Second)
	for e.State() == switcher.MissionInProgress {
		select {
		case <-deadline:
			t.Fatal("mission did not finish in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if e.State() != switcher.MissionIdle {
		t.Fatalf("got %s, want Idle", e.State())
	}
}

func TestMissionStartRecordDeniedTransitionsToError(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{
		// StartRecord before any SetMode is denied since the switcher is Idle.
		{Seq: 0, Command: CmdStartRecord, Name: "no-mode-yet"},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	deadline := time.After(1 * time.Second)
	for e.State() == switcher.MissionInProgress {
		select {
		case <-deadline:
			t.Fatal("mission did not finish in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if e.State() != switcher.MissionError {
		t.Fatalf("got %s, want Error", e.State())
	}
}

func TestWaitVehicleWaypointCompletesOnMatch(t *testing.T) {
	e, tel := newTestExecutor(t)
	e.SetMission([]Item{
		{Seq: 0, Command: CmdWaitVehicleWaypoint, WaypointIndex: 3},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	tel.cell.Set(3)

	deadline := time.After(1 * time.Second)
	for e.State() == switcher.MissionInProgress {
		select {
		case <-deadline:
			t.Fatal("mission did not finish in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if e.State() != switcher.MissionIdle {
		t.Fatalf("got %s, want Idle", e.State())
	}
}

func TestStopMissionCancelsDelay(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.SetMission([]Item{
		{Seq: 0, Command: CmdDelay, DelayMs: 10_000},
	})

	if err := e.StartMission(0); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.StopMission()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("StopMission did not return promptly")
	}
	if e.State() != switcher.MissionIdle {
		t.Fatalf("got %s, want Idle", e.State())
	}
}
