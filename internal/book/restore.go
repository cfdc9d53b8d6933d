package book

import (
	"sort"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// Restore rebuilds the book from a historical snapshot plus an ordered diff
// sequence, for replay and backtesting. Diffs must already be sorted by
// update id; any diff at or before the snapshot's update id is discarded via
// binary search, then the snapshot and the surviving diffs are applied in
// order. The result is identical to having consumed the live feed from the
// snapshot point forward.
func (ob *OrderBook) Restore(snapshot domain.SnapshotRecord, diffs []domain.DiffRecord) {
	// First diff strictly newer than the snapshot.
	start := sort.Search(len(diffs), func(i int) bool {
		return diffs[i].UpdateID > snapshot.UpdateID
	})

	ob.ApplySnapshot(
		EntriesFromRows(snapshot.Bids, snapshot.UpdateID),
		EntriesFromRows(snapshot.Asks, snapshot.UpdateID),
		snapshot.UpdateID,
	)

	for _, diff := range diffs[start:] {
		ob.ApplyDiffs(
			EntriesFromRows(diff.Bids, diff.UpdateID),
			EntriesFromRows(diff.Asks, diff.UpdateID),
			diff.UpdateID,
		)
	}
}
