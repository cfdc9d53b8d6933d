// Package book implements the in-memory limit-order-book engine: ordered
// bid/ask price levels fed by snapshot/diff/trade records, crossing repair
// between the two sides, and the liquidity queries strategies run against
// the live book.
package book

import (
	"time"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// PriceLevelEntry is one aggregate price level on one side of the book.
// Entries are immutable once inserted; an update for the same price replaces
// the whole entry.
type PriceLevelEntry struct {
	// Price orders the entry within its side. Unique per side.
	Price float64

	// Amount is the aggregate resting size at this price. A row with amount 0
	// deletes the level rather than inserting it.
	Amount float64

	// UpdateID is the sequence id of the feed message that produced this entry.
	UpdateID int64

	// OrderCount is the number of discrete resting orders aggregated into the
	// level, for venues that report it. Zero when the venue does not.
	OrderCount int64
}

// EntriesFromRows converts parsed feed rows into level entries stamped with
// the update id of the message that carried them.
func EntriesFromRows(rows []domain.LevelRow, updateID int64) []PriceLevelEntry {
	if len(rows) == 0 {
		return nil
	}
	entries := make([]PriceLevelEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, PriceLevelEntry{
			Price:      r.Price,
			Amount:     r.Amount,
			UpdateID:   updateID,
			OrderCount: r.OrderCount,
		})
	}
	return entries
}

// TradeEvent is the transient payload published for every applied trade.
// It is never retained by the book itself.
type TradeEvent struct {
	Venue       string      `json:"venue"`
	TradingPair string      `json:"trading_pair"`
	TradeID     string      `json:"trade_id"`
	Price       float64     `json:"price"`
	Amount      float64     `json:"amount"`
	Side        domain.Side `json:"side"`
	Timestamp   time.Time   `json:"timestamp"`
}

// TopicTrade is the fixed topic trade events are published under.
const TopicTrade = "trade"

// TradePublisher fans trade events out to subscribers. Implementations must
// isolate failing subscribers; the book publishes and moves on.
type TradePublisher interface {
	Publish(topic string, event any)
}
