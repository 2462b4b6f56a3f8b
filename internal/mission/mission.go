// Package mission implements the mission executor: a single long-running
// task that walks a snapshot of mission items, delegating each to the mode
// switcher and awaiting external events (delays, vehicle waypoints).
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skyward-avionics/sdr-payload/internal/signal"
	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// WaypointWatcher is the slice of telemetry.Source the mission executor
// depends on, kept as a local interface so WaitVehicleWaypoint can be
// exercised without a live MAVLink telemetry subscription.
type WaypointWatcher interface {
	WatchReachedWaypoint() (<-chan uint16, func())
}

// Command identifies a mission item's dispatch target.
type Command int

const (
	CmdSetMode Command = iota
	CmdStartRecord
	CmdStopRecord
	CmdSetRecordTag
	CmdDelay
	CmdWaitVehicleWaypoint
)

// Item is one step of a mission, keyed by Seq rather than array position:
// "the next item" means the item whose Seq is one greater, not the next
// slice element, so items may be supplied in any order. A gap in Seq ends
// the run at the gap.
type Item struct {
	Seq     int
	Command Command

	// SetMode
	Mode       workmode.Mode
	Frequency  uint64
	RecordRate float64
	Ratio      uint32
	RefPower   float64

	// StartRecord
	Name string

	// SetRecordTag
	TagKind  store.TagKind
	TagName  string
	TagValue []byte

	// Delay
	DelayMs int

	// WaitVehicleWaypoint
	WaypointIndex uint16
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithLogger overrides the default logger, slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor is component F: the mission executor.
type Executor struct {
	sw     *switcher.Switcher
	tel    WaypointWatcher
	logger *slog.Logger

	mu     sync.Mutex
	items  map[int]Item
	state  switcher.MissionState
	cancel context.CancelFunc
	done   chan struct{}

	current *signal.Cell[int]
	reached *signal.Cell[int]
}

// New constructs an idle Executor with no mission loaded.
func New(sw *switcher.Switcher, tel WaypointWatcher, opts ...Option) *Executor {
	e := &Executor{
		sw:      sw,
		tel:     tel,
		logger:  slog.Default(),
		items:   make(map[int]Item),
		current: signal.New[int](),
		reached: signal.New[int](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetMission replaces the snapshot mission, keyed by each item's Seq. The
// item already executing is not interrupted, but a run reads e.items fresh
// on every item lookup, so a mission edited mid-flight takes effect from
// the next item onward.
func (e *Executor) SetMission(items []Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = make(map[int]Item, len(items))
	for _, it := range items {
		e.items[it.Seq] = it
	}
}

// State reports the executor's current published state.
func (e *Executor) State() switcher.MissionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentItem returns the last item sequence number execution entered.
func (e *Executor) CurrentItem() (int, bool) { return e.current.Get() }

// ReachedItem returns the last item sequence number to finish successfully.
func (e *Executor) ReachedItem() (int, bool) { return e.reached.Get() }

// WatchCurrentItem subscribes to "current item" notifications.
func (e *Executor) WatchCurrentItem() (<-chan int, func()) { return e.current.Watch() }

// WatchReachedItem subscribes to "reached item" notifications.
func (e *Executor) WatchReachedItem() (<-chan int, func()) { return e.reached.Watch() }

// StartMission begins execution at the item whose Seq equals index. It
// fails with errkind.ErrNotFound if no such item exists, and is idempotent
// (returns nil) if a mission is already in progress.
func (e *Executor) StartMission(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == switcher.MissionInProgress {
		return nil
	}
	if _, ok := e.items[index]; !ok {
		return fmt.Errorf("%w: mission item %d", errkind.ErrNotFound, index)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.state = switcher.MissionInProgress

	go e.run(ctx, index, done)
	return nil
}

// StopMission cancels a run in progress and awaits its exit. Idempotent
// when idle.
func (e *Executor) StopMission() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	e.mu.Lock()
	if e.state == switcher.MissionInProgress {
		e.state = switcher.MissionIdle
	}
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()
}

func (e *Executor) run(ctx context.Context, startSeq int, done chan struct{}) {
	defer close(done)

	seq := startSeq
	for {
		e.mu.Lock()
		item, ok := e.items[seq]
		e.mu.Unlock()
		if !ok {
			e.finish(switcher.MissionIdle)
			return
		}

		e.current.Set(seq)
		if err := e.dispatch(ctx, item); err != nil {
			if ctx.Err() != nil {
				e.finish(switcher.MissionIdle)
				return
			}
			e.logger.Error("mission: item failed, halting", "seq", seq, "error", err)
			e.finish(switcher.MissionError)
			return
		}
		e.reached.Set(seq)
		seq++
	}
}

func (e *Executor) finish(state switcher.MissionState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func (e *Executor) dispatch(ctx context.Context, item Item) error {
	switch item.Command {
	case CmdSetMode:
		return e.sw.SetMode(item.Mode, item.Frequency, item.RecordRate, item.Ratio, item.RefPower)
	case CmdStartRecord:
		_, err := e.sw.StartRecord(item.Name)
		return err
	case CmdStopRecord:
		return e.sw.StopRecord()
	case CmdSetRecordTag:
		_, err := e.sw.CurrentRecordSetTag(item.TagKind, item.TagName, item.TagValue)
		return err
	case CmdDelay:
		return e.delay(ctx, time.Duration(item.DelayMs)*time.Millisecond)
	case CmdWaitVehicleWaypoint:
		return e.waitVehicleWaypoint(ctx, item.WaypointIndex)
	default:
		e.logger.Warn("mission: unknown item command, skipped", "seq", item.Seq, "command", item.Command)
		return nil
	}
}

func (e *Executor) delay(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) waitVehicleWaypoint(ctx context.Context, requested uint16) error {
	if e.tel == nil {
		return fmt.Errorf("%w: no telemetry source configured", errkind.ErrUnsupported)
	}

	ch, cancel := e.tel.WatchReachedWaypoint()
	defer cancel()

	for {
		select {
		case v := <-ch:
			if v == requested {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
