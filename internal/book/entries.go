package book

import "iter"

// BidEntries returns a restartable best-first (highest price first) sequence
// over the bid side. Each range over the sequence takes a fresh point-in-time
// copy of the side, so iteration is safe against concurrent applies and two
// traversals of the same sequence can observe different books.
func (ob *OrderBook) BidEntries() iter.Seq[PriceLevelEntry] {
	return func(yield func(PriceLevelEntry) bool) {
		for _, e := range ob.copySide(false) {
			if !yield(e) {
				return
			}
		}
	}
}

// AskEntries returns a restartable best-first (lowest price first) sequence
// over the ask side, with the same copy semantics as BidEntries.
func (ob *OrderBook) AskEntries() iter.Seq[PriceLevelEntry] {
	return func(yield func(PriceLevelEntry) bool) {
		for _, e := range ob.copySide(true) {
			if !yield(e) {
				return
			}
		}
	}
}

// copySide snapshots one side best-first under the read lock.
func (ob *OrderBook) copySide(asks bool) []PriceLevelEntry {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if asks {
		out := make([]PriceLevelEntry, 0, ob.asks.Len())
		ob.asks.Scan(func(_ float64, e PriceLevelEntry) bool {
			out = append(out, e)
			return true
		})
		return out
	}
	out := make([]PriceLevelEntry, 0, ob.bids.Len())
	ob.bids.Reverse(func(_ float64, e PriceLevelEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}
