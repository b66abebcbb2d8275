package conn

import (
	"context"
	"testing"
	"time"

	logx "giftboard/pkg/logx"
)

type observedSource struct {
	linkFn func(bool)
}

func (s *observedSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s *observedSource) Disconnect() error { return nil }

func (s *observedSource) SetLinkFunc(fn func(bool)) { s.linkFn = fn }

type plainSource struct{}

func (s *plainSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s *plainSource) Disconnect() error { return nil }

func TestLinkUpResetsBackoffAndStartsStaleClock(t *testing.T) {
	src := &observedSource{}
	state := NewState()
	NewManager(Config{OfflineRetry: 120 * time.Second}, src, state, logx.Nop())

	state.setBackoff(480 * time.Second)
	before := time.Now()
	src.linkFn(true)

	snap := state.Snapshot()
	if snap.Backoff != 120*time.Second {
		t.Fatalf("backoff after link-up = %v, want base 120s", snap.Backoff)
	}
	if snap.LastEventAt.Before(before) {
		t.Fatalf("link-up must start the stale clock, LastEventAt = %v", snap.LastEventAt)
	}
}

func TestImplicitLinkResetsBackoff(t *testing.T) {
	state := NewState()
	m := NewManager(Config{OfflineRetry: 120 * time.Second}, &plainSource{}, state, logx.Nop())

	attemptAt := time.Now()
	state.setBackoff(480 * time.Second)
	state.TouchEvent(attemptAt.Add(time.Minute))

	m.noteImplicitLink(attemptAt)
	if got := state.Snapshot().Backoff; got != 120*time.Second {
		t.Fatalf("backoff after event-bearing session = %v, want base 120s", got)
	}
}

func TestImplicitLinkIgnoresEventlessAttempt(t *testing.T) {
	state := NewState()
	m := NewManager(Config{OfflineRetry: 120 * time.Second}, &plainSource{}, state, logx.Nop())

	attemptAt := time.Now()
	state.TouchEvent(attemptAt.Add(-time.Hour))
	state.setBackoff(480 * time.Second)

	m.noteImplicitLink(attemptAt)
	if got := state.Snapshot().Backoff; got != 480*time.Second {
		t.Fatalf("backoff changed without evidence of a session: %v", got)
	}
}
