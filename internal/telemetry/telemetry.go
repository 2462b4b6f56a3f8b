// Package telemetry subscribes to the autopilot's MAVLink stream and
// publishes the latest GNSS, attitude and position snapshots as observable
// cells, tracking link health off heartbeat timing.
package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/skyward-avionics/sdr-payload/internal/mavlink"
	"github.com/skyward-avionics/sdr-payload/internal/signal"
)

// LinkState is the telemetry link's three-state health indicator.
type LinkState int32

const (
	LinkDisconnected LinkState = iota
	LinkDegraded
	LinkConnected
)

func (s LinkState) String() string {
	switch s {
	case LinkConnected:
		return "Connected"
	case LinkDegraded:
		return "Degraded"
	default:
		return "Disconnected"
	}
}

// GNSS is a snapshot derived from MAVLink's GPS_RAW_INT message.
type GNSS struct {
	Latitude   float64
	Longitude  float64
	Altitude   float64
	FixType    uint8
	Satellites uint8
}

// Attitude is a snapshot derived from MAVLink's ATTITUDE message.
type Attitude struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// GlobalPosition is a snapshot derived from MAVLink's GLOBAL_POSITION_INT
// message.
type GlobalPosition struct {
	Latitude    float64
	Longitude   float64
	RelativeAlt float64
	Heading     float64
}

// Config configures a Source, keyed the same as the configuration table.
type Config struct {
	SystemID        byte
	ComponentID     byte
	DeviceTimeoutMs int
	ReqMessageRate  int
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{SystemID: 1, ComponentID: 1, DeviceTimeoutMs: 10_000, ReqMessageRate: 5}
}

// Option configures a Source at construction.
type Option func(*Source)

// WithLogger overrides the default logger, slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source is component A: the telemetry subscriber.
type Source struct {
	sender mavlink.Sender
	cfg    Config
	logger *slog.Logger

	gnss            *signal.Cell[GNSS]
	attitude        *signal.Cell[Attitude]
	position        *signal.Cell[GlobalPosition]
	reachedWaypoint *signal.Cell[uint16]
	linkState       atomic.Int32

	lastHeartbeat   atomic.Int64 // UnixNano; zero means never seen
	requestPending  atomic.Bool
	requestInFlight atomic.Bool

	timeOffset atomic.Int64 // nanoseconds
}

// New constructs a Source. Call Run to start consuming events.
func New(sender mavlink.Sender, cfg Config, opts ...Option) *Source {
	s := &Source{
		sender:          sender,
		cfg:             cfg,
		logger:          slog.Default(),
		gnss:            signal.New[GNSS](),
		attitude:        signal.New[Attitude](),
		position:        signal.New[GlobalPosition](),
		reachedWaypoint: signal.New[uint16](),
	}
	s.linkState.Store(int32(LinkDisconnected))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes events until ctx is cancelled or events is closed. It also
// drives the heartbeat-timeout check on a ticker derived from
// DeviceTimeoutMs.
func (s *Source) Run(ctx context.Context, events <-chan gomavlib.Event) {
	timeout := time.Duration(s.cfg.DeviceTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, evt)
		case <-ticker.C:
			s.checkLinkTimeout(timeout)
		}
	}
}

// HandleEvent processes a single MAVLink event, for callers that fan a
// shared gomavlib.Node event channel out to multiple subscribers instead of
// handing the whole channel to Run.
func (s *Source) HandleEvent(ctx context.Context, evt gomavlib.Event) { s.handleEvent(ctx, evt) }

// CheckLinkTimeout re-evaluates link health against timeout, for callers
// driving their own ticker alongside HandleEvent.
func (s *Source) CheckLinkTimeout(timeout time.Duration) { s.checkLinkTimeout(timeout) }

func (s *Source) handleEvent(ctx context.Context, evt gomavlib.Event) {
	fe, ok := evt.(*gomavlib.EventFrame)
	if !ok {
		return
	}
	if fe.SystemID() != s.cfg.SystemID || fe.ComponentID() != s.cfg.ComponentID {
		return
	}

	switch msg := fe.Message().(type) {
	case *common.MessageHeartbeat:
		s.onHeartbeat(ctx)
	case *common.MessageGpsRawInt:
		s.gnss.Set(GNSS{
			Latitude:   float64(msg.Lat) / 1e7,
			Longitude:  float64(msg.Lon) / 1e7,
			Altitude:   float64(msg.Alt) / 1000,
			FixType:    uint8(msg.FixType),
			Satellites: msg.SatellitesVisible,
		})
	case *common.MessageAttitude:
		s.attitude.Set(Attitude{Roll: float64(msg.Roll), Pitch: float64(msg.Pitch), Yaw: float64(msg.Yaw)})
	case *common.MessageGlobalPositionInt:
		s.position.Set(GlobalPosition{
			Latitude:    float64(msg.Lat) / 1e7,
			Longitude:   float64(msg.Lon) / 1e7,
			RelativeAlt: float64(msg.RelativeAlt) / 1000,
			Heading:     float64(msg.Hdg) / 100,
		})
	case *common.MessageMissionItemReached:
		s.reachedWaypoint.Set(msg.Seq)
	}
}

func (s *Source) onHeartbeat(ctx context.Context) {
	s.lastHeartbeat.Store(time.Now().UnixNano())

	prev := LinkState(s.linkState.Swap(int32(LinkConnected)))
	if prev == LinkDisconnected && s.requestPending.CompareAndSwap(false, true) {
		go s.requestDataStreams(ctx)
	}
}

func (s *Source) checkLinkTimeout(timeout time.Duration) {
	last := s.lastHeartbeat.Load()
	if last == 0 {
		return
	}
	age := time.Since(time.Unix(0, last))
	switch {
	case age > timeout:
		s.linkState.Store(int32(LinkDisconnected))
		s.requestPending.Store(false)
	case age > timeout/2:
		s.linkState.CompareAndSwap(int32(LinkConnected), int32(LinkDegraded))
	}
}

// requestDataStreams sends one MessageRequestDataStream asking for all
// streams at ReqMessageRate, retrying once after 5ms on send failure. A
// single in-flight flag coalesces concurrent callers, mirroring the
// switcher's single-flight tick (design note).
func (s *Source) requestDataStreams(ctx context.Context) {
	if !s.requestInFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.requestInFlight.Store(false)
	defer s.requestPending.Store(false)

	req := &common.MessageRequestDataStream{
		TargetSystem:    s.cfg.SystemID,
		TargetComponent: s.cfg.ComponentID,
		ReqStreamID:     uint8(common.MAV_DATA_STREAM_ALL),
		ReqMessageRate:  uint16(s.cfg.ReqMessageRate),
		StartStop:       1,
	}
	if err := s.sender.Send(req); err != nil {
		s.logger.Warn("telemetry: data stream request failed, retrying", "error", err)
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return
		}
		if err := s.sender.Send(req); err != nil {
			s.logger.Warn("telemetry: data stream retry failed", "error", err)
		}
	}
}

// GNSS returns the latest GNSS snapshot, if any packet has been received.
func (s *Source) GNSS() (GNSS, bool) { return s.gnss.Get() }

// Attitude returns the latest attitude snapshot, if any.
func (s *Source) Attitude() (Attitude, bool) { return s.attitude.Get() }

// Position returns the latest global-position snapshot, if any.
func (s *Source) Position() (GlobalPosition, bool) { return s.position.Get() }

// ReachedWaypointIndex returns the last waypoint index reported reached.
func (s *Source) ReachedWaypointIndex() (uint16, bool) { return s.reachedWaypoint.Get() }

// WatchReachedWaypoint exposes the underlying cell's subscription, used by
// the mission executor's WaitVehicleWaypoint.
func (s *Source) WatchReachedWaypoint() (<-chan uint16, func()) { return s.reachedWaypoint.Watch() }

// LinkState reports the current link health.
func (s *Source) LinkState() LinkState { return LinkState(s.linkState.Load()) }

// Now returns wall-clock time corrected by the caller-settable offset, used
// for GNSS time synchronization.
func (s *Source) Now() time.Time {
	return time.Now().Add(time.Duration(s.timeOffset.Load()))
}

// SetTimeOffset sets the correction applied by Now.
func (s *Source) SetTimeOffset(d time.Duration) { s.timeOffset.Store(int64(d)) }
