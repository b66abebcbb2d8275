// Package ingest normalizes raw gift callbacks and performs the idempotent
// insert into the store. Reconnects replay events; everything here is built
// so a replay is invisible downstream.
package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"giftboard/internal/conn"
	"giftboard/internal/metrics"
	"giftboard/internal/period"
	"giftboard/internal/source"
	"giftboard/internal/storage"
	logx "giftboard/pkg/logx"
)

// bucketSeconds widens the dedup fingerprint to a 2-second window: a replay
// of the same logical gift around a reconnect lands in the same bucket, while
// a genuinely repeated gift a few seconds later does not.
const bucketSeconds = 2

// Ingestor receives gift callbacks and writes them to the store exactly once
// per dedup key.
type Ingestor struct {
	store *storage.Store
	state *conn.State
	loc   *time.Location
	log   logx.Logger

	// now is swappable for tests.
	now func() time.Time

	// fatal surfaces storage errors to the process supervisor. Ingest must not
	// silently continue with inconsistent state.
	fatal func(error)
}

func New(store *storage.Store, state *conn.State, loc *time.Location, log logx.Logger, fatal func(error)) *Ingestor {
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ingestor{
		store: store,
		state: state,
		loc:   loc,
		log:   log,
		now:   time.Now,
		fatal: fatal,
	}
}

// HandleGift is the callback handed to the event source.
func (i *Ingestor) HandleGift(g source.RawGift) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inserted, ev, err := i.Ingest(ctx, g)
	if err != nil {
		metrics.IngestErrors.Inc()
		i.log.Error("gift insert failed", logx.Err(err), logx.String("gifter", ev.Gifter))
		if i.fatal != nil {
			i.fatal(fmt.Errorf("ingest: %w", err))
		}
		return
	}
	if inserted {
		metrics.GiftsIngested.Inc()
		i.log.Info("gift",
			logx.String("period", ev.PeriodID),
			logx.String("gifter", ev.Gifter),
			logx.String("gift", ev.GiftName),
			logx.Int64("qty", ev.Quantity),
			logx.Int64("value", ev.ValueUnits),
			logx.Int64("total", ev.Value()))
	} else {
		// Replays are expected around reconnects. Never log them as new gifts.
		metrics.GiftsDeduplicated.Inc()
		i.log.Debug("gift replay suppressed", logx.String("key", ev.DedupKey))
	}
}

// Ingest normalizes and inserts one raw gift. The returned bool reports
// whether a new row was created. Event recency is refreshed on every call,
// duplicate or not: a replay still proves the link is alive.
func (i *Ingestor) Ingest(ctx context.Context, g source.RawGift) (bool, storage.GiftEvent, error) {
	now := i.now()
	if i.state != nil {
		i.state.TouchEvent(now)
	}

	ev := i.normalize(g, now)
	inserted, err := i.store.InsertGift(ctx, ev)
	return inserted, ev, err
}

// normalize applies the fallback chains and derives period id and dedup key.
// The period id comes from the wall clock in the configured zone, never from
// the payload.
func (i *Ingestor) normalize(g source.RawGift, now time.Time) storage.GiftEvent {
	gifter := firstNonEmpty(g.UniqueID, g.Nickname, g.UserID, "unknown")

	qty := g.RepeatCount
	if qty <= 0 {
		qty = g.RepeatTotal
	}
	if qty <= 0 {
		qty = 1
	}

	value := g.Diamonds
	if value < 0 {
		value = 0
	}

	at := g.At
	if at.IsZero() {
		at = now
	}

	ev := storage.GiftEvent{
		PeriodID:   period.ID(now.In(i.loc)),
		Gifter:     gifter,
		GiftName:   g.GiftName,
		Quantity:   qty,
		ValueUnits: value,
		ReceivedAt: at.UTC(),
	}
	ev.DedupKey = dedupKey(ev)
	return ev
}

// dedupKey fingerprints the logical event: identical gifts within the same
// 2-second bucket collide onto one key.
func dedupKey(e storage.GiftEvent) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%s|%s|%d|%d|%d",
		e.PeriodID, e.Gifter, e.GiftName, e.ValueUnits, e.Quantity,
		e.ReceivedAt.Unix()/bucketSeconds)
	return fmt.Sprintf("%x", h.Sum64())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
