// Package domain defines the parsed feed records, shared value types, and
// collaborator interfaces used across the book engine. Exchange adapters
// produce these records; the core consumes them.
package domain

import "time"

// Side identifies which half of the book a record or trade refers to.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// LevelRow is one parsed price-level row from a snapshot or diff message.
// Amount 0 means "delete the level at this price".
type LevelRow struct {
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	OrderCount int64   `json:"order_count,omitempty"`
}

// SnapshotRecord is a full replacement of both sides of a book, tagged with
// the feed sequence id that produced it.
type SnapshotRecord struct {
	Venue       string     `json:"venue"`
	TradingPair string     `json:"trading_pair"`
	UpdateID    int64      `json:"update_id"`
	Bids        []LevelRow `json:"bids"`
	Asks        []LevelRow `json:"asks"`
	Timestamp   time.Time  `json:"timestamp"`
}

// DiffRecord is an incremental set of level upserts/deletions since the last
// snapshot or diff.
type DiffRecord struct {
	Venue       string     `json:"venue"`
	TradingPair string     `json:"trading_pair"`
	UpdateID    int64      `json:"update_id"`
	Bids        []LevelRow `json:"bids"`
	Asks        []LevelRow `json:"asks"`
	Timestamp   time.Time  `json:"timestamp"`
}

// TradeRecord is a single executed trade reported by the feed.
type TradeRecord struct {
	Venue       string    `json:"venue"`
	TradingPair string    `json:"trading_pair"`
	TradeID     string    `json:"trade_id"`
	UpdateID    int64     `json:"update_id"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Side        Side      `json:"side"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookTop is the best bid/ask pair mirrored to caches and stream consumers.
type BookTop struct {
	Venue       string    `json:"venue"`
	TradingPair string    `json:"trading_pair"`
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	UpdateID    int64     `json:"update_id"`
	Timestamp   time.Time `json:"timestamp"`
}
