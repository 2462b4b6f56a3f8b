package switcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
	"github.com/skyward-avionics/sdr-payload/internal/mavlink"
	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
	"github.com/skyward-avionics/sdr-payload/internal/telemetry"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// minTickPeriod is the sample-tick clamp floor.
const minTickPeriod = 30 * time.Millisecond

// Option configures a Switcher at construction.
type Option func(*Switcher)

// WithLogger overrides the default logger, slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(sw *Switcher) { sw.logger = l }
}

// WithSender attaches the MAVLink collaborator the tick uses to broadcast
// thinned samples.
func WithSender(sender mavlink.Sender) Option {
	return func(sw *Switcher) { sw.sender = sender }
}

// Switcher is the Mode Switcher: the core state machine over work modes,
// the sample tick, and the current-record lifecycle.
type Switcher struct {
	store      *store.Store
	calib      *calibration.Engine
	registry   *workmode.Registry
	telemetry  *telemetry.Source
	sender     mavlink.Sender
	logger     *slog.Logger

	mu sync.Mutex // guards every field below except the atomics

	state       State
	mode        workmode.Mode
	analyzer    workmode.Analyzer
	frequency   uint64
	refPower    float64
	ratio       uint32
	signalOver  float64

	currentRecordID   uuid.UUID
	currentRecordName string
	currentWriter     *store.Writer
	currentRecordSeq  time.Time

	timerCancel context.CancelFunc
	timerDone   <-chan struct{}

	ringMu sync.Mutex
	ring   durationRing

	sampleIndex atomic.Uint64
	skipped     atomic.Uint64
	errored     atomic.Uint64
	completed   atomic.Uint64

	tickBusy atomic.Bool
	draining atomic.Bool
}

// New constructs an idle Switcher.
func New(st *store.Store, calib *calibration.Engine, registry *workmode.Registry, tel *telemetry.Source, opts ...Option) *Switcher {
	sw := &Switcher{
		store:     st,
		calib:     calib,
		registry:  registry,
		telemetry: tel,
		logger:    slog.Default(),
		signalOver: math.NaN(),
		refPower:   math.NaN(),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// State reports the current coarse-grained state.
func (sw *Switcher) State() State {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state
}

// SetMode transitions the switcher to mode, arming a fresh sample timer.
// SetMode(Idle) is a no-op from Idle and otherwise tears the analyzer and
// timer down; SetMode from Active/Recording implicitly stops the current
// record before switching.
func (sw *Switcher) SetMode(mode workmode.Mode, freq uint64, recordRate float64, ratio uint32, refPower float64) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if mode == workmode.ModeIdle {
		if sw.state == StateIdle {
			return nil
		}
		sw.stopRecordLocked()
		sw.disposeTimerLocked()
		sw.analyzer = nil
		sw.mode = workmode.ModeIdle
		sw.state = StateIdle
		return nil
	}

	analyzer, err := sw.registry.New(mode)
	if err != nil {
		sw.toErrorLocked()
		return err
	}

	sw.stopRecordLocked()
	sw.disposeTimerLocked()

	if ratio == 0 {
		ratio = 1
	}
	period := minTickPeriod
	if recordRate > 0 {
		if p := time.Duration(1000.0 / recordRate * float64(time.Millisecond)); p > period {
			period = p
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := analyzer.Init(ctx, freq, refPower, sw.calib, cancel); err != nil {
		cancel()
		sw.toErrorLocked()
		return fmt.Errorf("%w: initializing analyzer for mode %s", err, mode)
	}
	sw.calib.SetMode(freq, refPower)

	sw.analyzer = analyzer
	sw.mode = mode
	sw.frequency = freq
	sw.refPower = refPower
	sw.ratio = ratio
	sw.state = StateActive
	sw.signalOver = math.NaN()

	sw.armTimerLocked(ctx, cancel, period)
	return nil
}

func (sw *Switcher) toErrorLocked() {
	sw.stopRecordLocked()
	sw.disposeTimerLocked()
	sw.analyzer = nil
	sw.mode = workmode.ModeIdle
	sw.state = StateErroring
	sw.refPower = math.NaN()
	sw.signalOver = math.NaN()
}

// disposeTimerLocked cancels and awaits the current tick goroutine before
// returning, so the caller can safely arm a new one without two timers
// racing on the busy flag.
func (sw *Switcher) disposeTimerLocked() {
	if sw.timerCancel == nil {
		return
	}
	cancel := sw.timerCancel
	done := sw.timerDone
	sw.timerCancel = nil
	sw.timerDone = nil

	sw.mu.Unlock()
	cancel()
	<-done
	sw.mu.Lock()
}

func (sw *Switcher) armTimerLocked(ctx context.Context, cancel context.CancelFunc, period time.Duration) {
	done := make(chan struct{})
	sw.timerCancel = cancel
	sw.timerDone = done
	go sw.tickLoop(ctx, period, done)
}

// tickLoop is the cooperative "skip, never queue" periodic scheduler.
func (sw *Switcher) tickLoop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.tick()
		}
	}
}

// StartRecord allocates a new record and opens its writer, moving the
// switcher from Active to Recording. Denied when the switcher is Idle or
// already recording.
func (sw *Switcher) StartRecord(name string) (uuid.UUID, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.state != StateActive {
		return uuid.Nil, fmt.Errorf("%w: StartRecord requires an active mode", errkind.ErrDenied)
	}

	id := uuid.New()
	w, err := sw.store.CreateFile(id, name, sw.mode.String(), sw.frequency)
	if err != nil {
		return uuid.Nil, err
	}

	sw.currentRecordID = id
	sw.currentRecordName = name
	sw.currentWriter = w
	sw.currentRecordSeq = time.Now()
	sw.state = StateRecording
	return id, nil
}

// StopRecord closes the current record, if any. It is idempotent when no
// record is open. It serializes against the in-flight tick by draining
// before closing the writer, rather than racing a captured writer
// reference against the tick's own read of it.
func (sw *Switcher) StopRecord() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stopRecordLocked()
}

func (sw *Switcher) stopRecordLocked() error {
	if sw.currentWriter == nil {
		return nil
	}

	sw.draining.Store(true)
	sw.mu.Unlock()
	for sw.tickBusy.Load() {
		time.Sleep(time.Millisecond)
	}
	sw.mu.Lock()
	sw.draining.Store(false)

	w := sw.currentWriter
	sw.currentWriter = nil
	sw.currentRecordID = uuid.Nil
	sw.currentRecordName = ""
	if sw.state == StateRecording {
		sw.state = StateActive
	}
	return w.Close()
}

// CurrentRecordSetTag tags the currently open record. Denied when no
// record is open.
func (sw *Switcher) CurrentRecordSetTag(kind store.TagKind, name string, value []byte) (uuid.UUID, error) {
	sw.mu.Lock()
	w := sw.currentWriter
	sw.mu.Unlock()

	if w == nil {
		return uuid.Nil, fmt.Errorf("%w: no record is currently open", errkind.ErrDenied)
	}
	return w.WriteTag(kind, name, value)
}

// TickCounters reports the accounting identity Skipped+Errored+Completed.
func (sw *Switcher) TickCounters() (skipped, errored, completed uint64) {
	return sw.skipped.Load(), sw.errored.Load(), sw.completed.Load()
}

// TickDurations returns a snapshot of the last (up to 100) tick durations.
func (sw *Switcher) TickDurations() []time.Duration {
	sw.ringMu.Lock()
	defer sw.ringMu.Unlock()
	return sw.ring.snapshot()
}

// Heartbeat composes the published state for the SDR extended heartbeat.
// missionState is supplied by the caller since the mission executor is a
// separate component layered on top of the switcher.
func (sw *Switcher) Heartbeat(missionState MissionState) Heartbeat {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	hb := Heartbeat{
		SupportedModes:    sw.registry.SupportedModes(),
		CurrentMode:       sw.mode,
		RecordCount:       sw.store.Count(),
		Size:              sw.store.Size(),
		CurrentRecordGUID: sw.currentRecordID,
		CurrentRecordName: sw.currentRecordName,
		RefPower:          sw.refPower,
		SignalOverflow:    sw.signalOver,
		CalibTableCount:   sw.calib.TableCount(),
		MissionState:      missionState,
	}
	switch {
	case sw.calib.TableCount() == 0:
		hb.CalibState = CalibNotSupported
	case sw.calib.InProgress():
		hb.CalibState = CalibProgress
	default:
		hb.CalibState = CalibOk
	}
	return hb
}
