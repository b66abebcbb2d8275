package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"giftboard/internal/conn"
	logx "giftboard/pkg/logx"
)

// linkedSource signals link state through the observer callback.
type linkedSource struct {
	disconnects atomic.Int32
	linkFn      func(bool)
}

func (s *linkedSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s *linkedSource) Disconnect() error {
	s.disconnects.Add(1)
	return nil
}
func (s *linkedSource) SetLinkFunc(fn func(bool)) { s.linkFn = fn }

// plainSource has no link callback, so health falls back to event recency.
type plainSource struct {
	disconnects atomic.Int32
}

func (s *plainSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s *plainSource) Disconnect() error {
	s.disconnects.Add(1)
	return nil
}

func TestStaleLinkedSessionForcesReconnect(t *testing.T) {
	src := &linkedSource{}
	state := conn.NewState()
	mgr := conn.NewManager(conn.Config{}, src, state, logx.Nop())
	src.linkFn(true)

	now := time.Now()
	state.TouchEvent(now.Add(-5 * time.Minute))

	m := New(Config{StaleThreshold: 180 * time.Second}, mgr, state, logx.Nop())
	m.now = func() time.Time { return now }
	m.Check()

	if src.disconnects.Load() != 1 {
		t.Fatalf("disconnects = %d, want 1", src.disconnects.Load())
	}
}

func TestLinkedSessionWithNoEventsIsTornDown(t *testing.T) {
	src := &linkedSource{}
	state := conn.NewState()
	mgr := conn.NewManager(conn.Config{}, src, state, logx.Nop())

	// Link comes up but the stream delivers nothing at all. The stale clock
	// starts at establishment, so the threshold still trips.
	src.linkFn(true)

	m := New(Config{StaleThreshold: 180 * time.Second}, mgr, state, logx.Nop())
	m.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	m.Check()

	if src.disconnects.Load() != 1 {
		t.Fatalf("silent linked session was not torn down, disconnects = %d", src.disconnects.Load())
	}
}

func TestFreshEventsKeepSessionAlive(t *testing.T) {
	src := &linkedSource{}
	state := conn.NewState()
	mgr := conn.NewManager(conn.Config{}, src, state, logx.Nop())
	src.linkFn(true)

	now := time.Now()
	state.TouchEvent(now.Add(-30 * time.Second))

	m := New(Config{StaleThreshold: 180 * time.Second}, mgr, state, logx.Nop())
	m.now = func() time.Time { return now }
	m.Check()

	if src.disconnects.Load() != 0 {
		t.Fatalf("fresh link was torn down")
	}
}

func TestUnlinkedSessionNotTornDown(t *testing.T) {
	src := &linkedSource{}
	state := conn.NewState()
	mgr := conn.NewManager(conn.Config{}, src, state, logx.Nop())
	src.linkFn(false)

	now := time.Now()
	state.TouchEvent(now.Add(-10 * time.Minute))

	m := New(Config{}, mgr, state, logx.Nop())
	m.now = func() time.Time { return now }
	m.Check()

	if src.disconnects.Load() != 0 {
		t.Fatalf("unlinked session was torn down")
	}
}

func TestRecencyFallbackNeverFlagsStaleLinkAsLinked(t *testing.T) {
	src := &plainSource{}
	state := conn.NewState()
	mgr := conn.NewManager(conn.Config{}, src, state, logx.Nop())

	// Events stopped long ago. Without an explicit link signal the monitor
	// must treat the link as down rather than force-tearing a dead session.
	now := time.Now()
	state.TouchEvent(now.Add(-10 * time.Minute))

	m := New(Config{}, mgr, state, logx.Nop())
	m.now = func() time.Time { return now }
	m.Check()

	if src.disconnects.Load() != 0 {
		t.Fatalf("recency fallback forced a teardown on a down link")
	}
}
