package book

import (
	"math"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// btreeDegree sizes the B-tree nodes for both sides.
const btreeDegree = 32

// Options configures a single OrderBook.
type Options struct {
	// Decentralized switches overlap handling to the DEX policy: crossing is
	// tolerated on diff application and truncated on snapshot application.
	Decentralized bool

	// Truncate selects the snapshot-time winner for crossing entries on
	// decentralized venues. Defaults to KeepBids when nil.
	Truncate TruncatePolicy

	// Publisher receives trade events. May be nil, in which case trades are
	// recorded but not fanned out.
	Publisher TradePublisher
}

// OrderBook holds both ordered sides of one (venue, trading pair) book and
// the cached top-of-book state. A single RWMutex guards the whole structure:
// every apply takes the write lock, every query the read lock, so readers
// never observe a half-applied diff.
type OrderBook struct {
	venue string
	pair  string

	mu   sync.RWMutex
	bids *btree.Map[float64, PriceLevelEntry]
	asks *btree.Map[float64, PriceLevelEntry]

	snapshotUpdateID int64
	lastDiffUpdateID int64

	// bestBid/bestAsk mirror the extremes of the two trees; NaN when the
	// corresponding side is empty.
	bestBid float64
	bestAsk float64

	lastTradePrice float64
	lastTradeAt    time.Time
	lastAppliedAt  time.Time

	decentralized bool
	truncate      TruncatePolicy
	publisher     TradePublisher
}

// New creates an empty OrderBook for the given venue and trading pair.
func New(venue, pair string, opts Options) *OrderBook {
	truncate := opts.Truncate
	if truncate == nil {
		truncate = KeepBids
	}
	return &OrderBook{
		venue:          venue,
		pair:           pair,
		bids:           btree.NewMap[float64, PriceLevelEntry](btreeDegree),
		asks:           btree.NewMap[float64, PriceLevelEntry](btreeDegree),
		bestBid:        math.NaN(),
		bestAsk:        math.NaN(),
		lastTradePrice: math.NaN(),
		decentralized:  opts.Decentralized,
		truncate:       truncate,
		publisher:      opts.Publisher,
	}
}

// Venue returns the venue name the book was created for.
func (ob *OrderBook) Venue() string { return ob.venue }

// TradingPair returns the trading pair the book was created for.
func (ob *OrderBook) TradingPair() string { return ob.pair }

// ApplySnapshot replaces both sides with the given rows. Rows with amount <= 0
// are skipped. On decentralized venues crossing entries are truncated after
// insertion. Rows are expected to carry the snapshot's update id; the caller's
// sequencing discipline is trusted, stale ids are accepted as-is.
func (ob *OrderBook) ApplySnapshot(bids, asks []PriceLevelEntry, updateID int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = btree.NewMap[float64, PriceLevelEntry](btreeDegree)
	ob.asks = btree.NewMap[float64, PriceLevelEntry](btreeDegree)

	for _, e := range bids {
		if e.Amount > 0 {
			ob.bids.Set(e.Price, e)
		}
	}
	for _, e := range asks {
		if e.Amount > 0 {
			ob.asks.Set(e.Price, e)
		}
	}

	if ob.decentralized {
		ob.truncateOverlapLocked()
	}

	ob.refreshTopLocked()
	ob.snapshotUpdateID = updateID
	ob.lastAppliedAt = time.Now()
}

// ApplyDiffs upserts or deletes one level per row, keyed by price: amount > 0
// replaces the level, amount <= 0 removes it. Overlap resolution runs after
// all rows on both sides have been applied, so re-applying the same diff is
// idempotent.
func (ob *OrderBook) ApplyDiffs(bids, asks []PriceLevelEntry, updateID int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for _, e := range bids {
		if e.Amount > 0 {
			ob.bids.Set(e.Price, e)
		} else {
			ob.bids.Delete(e.Price)
		}
	}
	for _, e := range asks {
		if e.Amount > 0 {
			ob.asks.Set(e.Price, e)
		} else {
			ob.asks.Delete(e.Price)
		}
	}

	// Centralized books may not cross; decentralized books tolerate crossing
	// between snapshots.
	if !ob.decentralized {
		ob.resolveOverlapLocked()
	}

	ob.refreshTopLocked()
	ob.lastDiffUpdateID = updateID
	ob.lastAppliedAt = time.Now()
}

// ApplyTrade records the most recent trade and publishes it under TopicTrade.
// It never touches the level trees: the venue is expected to emit a matching
// diff or snapshot for the consumed liquidity.
func (ob *OrderBook) ApplyTrade(trade TradeEvent) {
	ob.mu.Lock()
	ob.lastTradePrice = trade.Price
	ob.lastTradeAt = trade.Timestamp
	ob.lastAppliedAt = time.Now()
	publisher := ob.publisher
	ob.mu.Unlock()

	if publisher != nil {
		publisher.Publish(TopicTrade, trade)
	}
}

// refreshTopLocked recomputes the cached best prices from the tree extremes.
// Caller must hold the write lock.
func (ob *OrderBook) refreshTopLocked() {
	if price, _, ok := ob.bids.Max(); ok {
		ob.bestBid = price
	} else {
		ob.bestBid = math.NaN()
	}
	if price, _, ok := ob.asks.Min(); ok {
		ob.bestAsk = price
	} else {
		ob.bestAsk = math.NaN()
	}
}

// BestBid returns the highest bid price, or NaN when the bid side is empty.
func (ob *OrderBook) BestBid() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestBid
}

// BestAsk returns the lowest ask price, or NaN when the ask side is empty.
func (ob *OrderBook) BestAsk() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestAsk
}

// MidPrice returns the midpoint of the best bid and ask, or NaN when either
// side is empty.
func (ob *OrderBook) MidPrice() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return (ob.bestBid + ob.bestAsk) / 2
}

// LastTradePrice returns the price of the most recently applied trade, or NaN
// when no trade has been applied yet.
func (ob *OrderBook) LastTradePrice() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastTradePrice
}

// LastTradeAt returns the feed timestamp of the most recently applied trade.
func (ob *OrderBook) LastTradeAt() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastTradeAt
}

// SnapshotUpdateID returns the update id of the last applied snapshot.
func (ob *OrderBook) SnapshotUpdateID() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.snapshotUpdateID
}

// LastDiffUpdateID returns the update id of the last applied diff.
func (ob *OrderBook) LastDiffUpdateID() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastDiffUpdateID
}

// BidCount returns the number of bid levels.
func (ob *OrderBook) BidCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.Len()
}

// AskCount returns the number of ask levels.
func (ob *OrderBook) AskCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.Len()
}

// DepthSnapshot copies up to depth levels per side, best-first, into the
// cache-layer snapshot shape. depth <= 0 copies everything.
func (ob *OrderBook) DepthSnapshot(depth int) domain.DepthSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snap := domain.DepthSnapshot{
		Venue:       ob.venue,
		TradingPair: ob.pair,
		BestBid:     ob.bestBid,
		BestAsk:     ob.bestAsk,
		UpdateID:    max(ob.snapshotUpdateID, ob.lastDiffUpdateID),
		Timestamp:   ob.lastAppliedAt,
	}

	snap.Bids = make([]domain.LevelRow, 0, ob.bids.Len())
	ob.bids.Reverse(func(_ float64, e PriceLevelEntry) bool {
		snap.Bids = append(snap.Bids, domain.LevelRow{Price: e.Price, Amount: e.Amount, OrderCount: e.OrderCount})
		return depth <= 0 || len(snap.Bids) < depth
	})
	snap.Asks = make([]domain.LevelRow, 0, ob.asks.Len())
	ob.asks.Scan(func(_ float64, e PriceLevelEntry) bool {
		snap.Asks = append(snap.Asks, domain.LevelRow{Price: e.Price, Amount: e.Amount, OrderCount: e.OrderCount})
		return depth <= 0 || len(snap.Asks) < depth
	})
	return snap
}
