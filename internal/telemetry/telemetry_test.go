package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3"
)

type fakeSender struct {
	sent []gomavlib.Message
}

func (f *fakeSender) Send(msg gomavlib.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) SendTo(_ *gomavlib.Channel, msg gomavlib.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func TestLinkStartsDisconnected(t *testing.T) {
	s := New(&fakeSender{}, DefaultConfig())
	if s.LinkState() != LinkDisconnected {
		t.Fatalf("got %v, want Disconnected", s.LinkState())
	}
}

func TestHeartbeatConnectsAndRequestsStreams(t *testing.T) {
	fs := &fakeSender{}
	s := New(&fakeSender{}, DefaultConfig())
	s.sender = fs

	s.onHeartbeat(context.Background())
	if s.LinkState() != LinkConnected {
		t.Fatalf("got %v, want Connected", s.LinkState())
	}

	deadline := time.Now().Add(time.Second)
	for len(fs.sent) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(fs.sent) == 0 {
		t.Fatal("expected a data stream request to be sent on connect")
	}
}

func TestSecondHeartbeatDoesNotRerequest(t *testing.T) {
	fs := &fakeSender{}
	s := New(&fakeSender{}, DefaultConfig())
	s.sender = fs

	s.onHeartbeat(context.Background())
	time.Sleep(20 * time.Millisecond)
	first := len(fs.sent)

	s.onHeartbeat(context.Background())
	time.Sleep(20 * time.Millisecond)
	if len(fs.sent) != first {
		t.Fatalf("got %d sends, want unchanged at %d", len(fs.sent), first)
	}
}

func TestCheckLinkTimeoutTransitions(t *testing.T) {
	s := New(&fakeSender{}, DefaultConfig())
	s.onHeartbeat(context.Background())
	if s.LinkState() != LinkConnected {
		t.Fatal("expected Connected after heartbeat")
	}

	s.lastHeartbeat.Store(time.Now().Add(-2 * time.Second).UnixNano())
	s.checkLinkTimeout(3 * time.Second)
	if s.LinkState() != LinkDegraded {
		t.Fatalf("got %v, want Degraded", s.LinkState())
	}

	s.lastHeartbeat.Store(time.Now().Add(-5 * time.Second).UnixNano())
	s.checkLinkTimeout(3 * time.Second)
	if s.LinkState() != LinkDisconnected {
		t.Fatalf("got %v, want Disconnected", s.LinkState())
	}
}

func TestGNSSAndAttitudeAbsentUntilSet(t *testing.T) {
	s := New(&fakeSender{}, DefaultConfig())
	if _, ok := s.GNSS(); ok {
		t.Fatal("expected no GNSS snapshot yet")
	}
	s.gnss.Set(GNSS{Latitude: 1, Longitude: 2})
	got, ok := s.GNSS()
	if !ok || got.Latitude != 1 {
		t.Fatalf("got %+v, %v", got, ok)
	}
}

func TestNowAppliesOffset(t *testing.T) {
	s := New(&fakeSender{}, DefaultConfig())
	before := time.Now()
	s.SetTimeOffset(time.Hour)
	got := s.Now()
	if got.Sub(before) < 59*time.Minute {
		t.Fatalf("offset not applied: %v", got.Sub(before))
	}
}
