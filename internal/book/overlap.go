package book

import "github.com/alanyoungcy/bookengine/internal/domain"

// TruncatePolicy picks the losing side of a crossing (bid, ask) pair during
// snapshot-time truncation on decentralized venues. It returns the side whose
// entry is discarded. Venues differ in which source of liquidity they treat
// as authoritative, so the policy is injected per venue.
type TruncatePolicy func(bid, ask PriceLevelEntry) domain.Side

// KeepBids always discards the ask entry, retaining bid-side liquidity.
// This is the default truncation policy.
func KeepBids(bid, ask PriceLevelEntry) domain.Side {
	return domain.SideSell
}

// NewerWins discards whichever entry carries the older update id, falling
// back to discarding the ask on an exact tie. This mirrors the centralized
// resolution rule for venues that want it at snapshot time too.
func NewerWins(bid, ask PriceLevelEntry) domain.Side {
	if bid.UpdateID < ask.UpdateID {
		return domain.SideBuy
	}
	return domain.SideSell
}

// resolveOverlapLocked repairs a crossed centralized book: while the best bid
// is at or above the best ask, the entry with the strictly older update id is
// discarded (the newer update is authoritative). When both carry the same
// update id the ask is discarded. Terminates with one side empty or
// max(bid) < min(ask). Caller must hold the write lock.
func (ob *OrderBook) resolveOverlapLocked() {
	for {
		bidPrice, bid, okBid := ob.bids.Max()
		askPrice, ask, okAsk := ob.asks.Min()
		if !okBid || !okAsk || bidPrice < askPrice {
			return
		}
		if bid.UpdateID < ask.UpdateID {
			ob.bids.Delete(bidPrice)
		} else {
			ob.asks.Delete(askPrice)
		}
	}
}

// truncateOverlapLocked removes crossing entries after a decentralized
// snapshot, delegating the per-pair winner to the venue's TruncatePolicy.
// Caller must hold the write lock.
func (ob *OrderBook) truncateOverlapLocked() {
	for {
		bidPrice, bid, okBid := ob.bids.Max()
		askPrice, ask, okAsk := ob.asks.Min()
		if !okBid || !okAsk || bidPrice < askPrice {
			return
		}
		if ob.truncate(bid, ask) == domain.SideBuy {
			ob.bids.Delete(bidPrice)
		} else {
			ob.asks.Delete(askPrice)
		}
	}
}
