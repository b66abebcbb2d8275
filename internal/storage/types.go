package storage

import "time"

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// GiftEvent is one normalized, persisted gift. Rows are immutable once
// inserted; DedupKey collapses replayed callbacks onto a single row.
type GiftEvent struct {
	DedupKey   string
	PeriodID   string
	Gifter     string
	GiftName   string
	Quantity   int64
	ValueUnits int64
	ReceivedAt time.Time
}

// Value returns the monetary contribution of the event.
func (e GiftEvent) Value() int64 { return e.ValueUnits * e.Quantity }

// RankEntry is one leaderboard row: a gifter and their period total.
type RankEntry struct {
	Gifter string
	Total  int64
}
