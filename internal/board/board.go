// Package board is the read side of the leaderboard: live top-N over the raw
// gift log, frozen snapshots for finished weeks, and the message formatter.
package board

import (
	"context"
	"fmt"

	"giftboard/internal/storage"
)

// DefaultTopN is the leaderboard depth used for all posts.
const DefaultTopN = 5

// Board computes leaderboards. It holds no state of its own; the raw gift
// log remains the source of truth for an in-progress period.
type Board struct {
	store *storage.Store
}

func New(store *storage.Store) *Board { return &Board{store: store} }

// TopN returns the live leaderboard for a period: totals summed over the raw
// log, descending, ties in first-seen order, at most n rows.
func (b *Board) TopN(ctx context.Context, periodID string, n int) ([]storage.RankEntry, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	return b.store.TopGifters(ctx, periodID, n)
}

// FinalizedTopN returns the frozen snapshot for a finalized period, ordered
// by rank.
func (b *Board) FinalizedTopN(ctx context.Context, periodID string) ([]storage.RankEntry, error) {
	return b.store.SnapshotTop(ctx, periodID)
}

// Finalize freezes the current top-N as the period's snapshot. It is
// idempotent: if snapshot rows already exist the call is a no-op, and
// existing ranks are never overwritten.
func (b *Board) Finalize(ctx context.Context, periodID string) error {
	exists, err := b.store.SnapshotExists(ctx, periodID)
	if err != nil {
		return fmt.Errorf("board: snapshot check: %w", err)
	}
	if exists {
		return nil
	}
	top, err := b.store.TopGifters(ctx, periodID, DefaultTopN)
	if err != nil {
		return fmt.Errorf("board: finalize read: %w", err)
	}
	if err := b.store.InsertSnapshot(ctx, periodID, top); err != nil {
		return fmt.Errorf("board: finalize write: %w", err)
	}
	return nil
}
