package sched

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"giftboard/internal/board"
	"giftboard/internal/storage"
	logx "giftboard/pkg/logx"
)

type fakePoster struct {
	mu   sync.Mutex
	msgs []string
	fail bool
}

func (p *fakePoster) Post(_ context.Context, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sink down")
	}
	p.msgs = append(p.msgs, content)
	return nil
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "gifts.sqlite")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestScheduler(t *testing.T, st *storage.Store, p Poster, at time.Time) *Scheduler {
	t.Helper()
	s := New(Config{
		DailyHour: 18, DailyMinute: 0,
		FinalWeekday: time.Sunday, FinalHour: 20, FinalMinute: 0,
	}, st, board.New(st), p, time.UTC, logx.Nop(), func(err error) { t.Fatalf("fatal: %v", err) })
	s.now = func() time.Time { return at }
	return s
}

// 2024-02-04 is the Sunday of 2024-W05.
var sunday = time.Date(2024, 2, 4, 18, 0, 5, 0, time.UTC)

func TestInProgressPostsOncePerDate(t *testing.T) {
	st := newTestStore(t)
	p := &fakePoster{}
	s := newTestScheduler(t, st, p, sunday)

	// Several wakes inside the same trigger minute.
	for i := 0; i < 3; i++ {
		s.now = func() time.Time { return sunday.Add(time.Duration(i) * 20 * time.Second) }
		s.Tick(context.Background())
	}
	if p.count() != 1 {
		t.Fatalf("posted %d times, want 1", p.count())
	}
	if !strings.Contains(p.msgs[0], "in progress") {
		t.Fatalf("unexpected message: %q", p.msgs[0])
	}
	if !strings.Contains(p.msgs[0], "Week 5") {
		t.Fatalf("missing week number: %q", p.msgs[0])
	}
}

func TestNoPostOutsideTriggerMinute(t *testing.T) {
	st := newTestStore(t)
	p := &fakePoster{}
	s := newTestScheduler(t, st, p, sunday.Add(time.Minute))

	s.Tick(context.Background())
	if p.count() != 0 {
		t.Fatalf("posted outside trigger minute: %v", p.msgs)
	}
}

func TestFailedPostLeavesMarkerUnsetAndRetries(t *testing.T) {
	st := newTestStore(t)
	p := &fakePoster{fail: true}
	s := newTestScheduler(t, st, p, sunday)
	ctx := context.Background()

	s.Tick(ctx)
	if p.count() != 0 {
		t.Fatalf("failed post should deliver nothing")
	}
	got, err := st.GetMarker(ctx, "last_in_progress_post_date", "")
	if err != nil {
		t.Fatalf("marker: %v", err)
	}
	if got != "" {
		t.Fatalf("marker persisted despite post failure: %q", got)
	}

	// Sink recovers; next wake inside the window retries.
	p.fail = false
	s.Tick(ctx)
	if p.count() != 1 {
		t.Fatalf("posted %d times after recovery, want 1", p.count())
	}
	got, _ = st.GetMarker(ctx, "last_in_progress_post_date", "")
	if got != "2024-02-04" {
		t.Fatalf("marker = %q, want 2024-02-04", got)
	}
}

func TestFinalPostsOncePerPeriodAcrossRestart(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.InsertGift(ctx, storage.GiftEvent{
		DedupKey: "g1", PeriodID: "2024-W05", Gifter: "alice", GiftName: "rose", Quantity: 2, ValueUnits: 3,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	final := time.Date(2024, 2, 4, 20, 0, 10, 0, time.UTC)
	p := &fakePoster{}
	s := newTestScheduler(t, st, p, final)
	s.Tick(ctx)
	if p.count() != 1 {
		t.Fatalf("posted %d times, want 1", p.count())
	}
	if !strings.Contains(p.msgs[0], "ended") || !strings.Contains(p.msgs[0], "alice") {
		t.Fatalf("unexpected final message: %q", p.msgs[0])
	}

	// Same store, fresh process: the durable marker suppresses a repeat.
	p2 := &fakePoster{}
	s2 := newTestScheduler(t, st, p2, final.Add(20*time.Second))
	s2.Tick(ctx)
	if p2.count() != 0 {
		t.Fatalf("restart re-posted the final message: %v", p2.msgs)
	}
}

func TestBothTriggersFireInOneWake(t *testing.T) {
	st := newTestStore(t)
	p := &fakePoster{}
	s := New(Config{
		DailyHour: 20, DailyMinute: 0,
		FinalWeekday: time.Sunday, FinalHour: 20, FinalMinute: 0,
	}, st, board.New(st), p, time.UTC, logx.Nop(), nil)
	s.now = func() time.Time { return time.Date(2024, 2, 4, 20, 0, 0, 0, time.UTC) }

	s.Tick(context.Background())
	if p.count() != 2 {
		t.Fatalf("posted %d times, want both triggers", p.count())
	}
}
