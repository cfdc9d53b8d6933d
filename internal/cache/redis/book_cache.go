package redis

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

//go:embed scripts/book_update.lua
var bookUpdateLua string

// BookCache implements domain.BookCache using Redis sorted sets and hashes
// per (venue, pair) book, so out-of-process consumers can read depth and BBO
// without talking to the engine.
//
// Key schema:
//
//	book:{venue}:{pair}:bids     - sorted set of bid prices (score = price)
//	book:{venue}:{pair}:asks     - sorted set of ask prices (score = price)
//	book:{venue}:{pair}:bid:size - hash mapping price -> amount for bids
//	book:{venue}:{pair}:ask:size - hash mapping price -> amount for asks
//	book:{venue}:{pair}:bbo      - hash with fields "bid" and "ask"
//	book:{venue}:{pair}:meta     - hash with "ts" and "update_id" fields
type BookCache struct {
	rdb        *redis.Client
	bookUpdate *redis.Script
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{
		rdb:        c.Underlying(),
		bookUpdate: redis.NewScript(bookUpdateLua),
	}
}

func bookKeyPrefix(venue, pair string) string { return "book:" + venue + ":" + pair }

func bookBidsKey(venue, pair string) string    { return bookKeyPrefix(venue, pair) + ":bids" }
func bookAsksKey(venue, pair string) string    { return bookKeyPrefix(venue, pair) + ":asks" }
func bookBidSizeKey(venue, pair string) string { return bookKeyPrefix(venue, pair) + ":bid:size" }
func bookAskSizeKey(venue, pair string) string { return bookKeyPrefix(venue, pair) + ":ask:size" }
func bookBBOKey(venue, pair string) string     { return bookKeyPrefix(venue, pair) + ":bbo" }
func bookMetaKey(venue, pair string) string    { return bookKeyPrefix(venue, pair) + ":meta" }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// SetSnapshot atomically replaces the mirrored book for a pair. It clears
// existing data and repopulates the sorted sets, size hashes, BBO hash, and
// metadata hash in one transaction.
func (bc *BookCache) SetSnapshot(ctx context.Context, venue, pair string, snap domain.DepthSnapshot) error {
	bidsKey := bookBidsKey(venue, pair)
	asksKey := bookAsksKey(venue, pair)
	bidSizeKey := bookBidSizeKey(venue, pair)
	askSizeKey := bookAskSizeKey(venue, pair)
	bboKey := bookBBOKey(venue, pair)
	metaKey := bookMetaKey(venue, pair)

	pipe := bc.rdb.TxPipeline()

	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey)

	for _, lvl := range snap.Bids {
		priceStr := formatFloat(lvl.Price)
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, bidSizeKey, priceStr, formatFloat(lvl.Amount))
	}
	for _, lvl := range snap.Asks {
		priceStr := formatFloat(lvl.Price)
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, askSizeKey, priceStr, formatFloat(lvl.Amount))
	}

	if !math.IsNaN(snap.BestBid) {
		pipe.HSet(ctx, bboKey, "bid", formatFloat(snap.BestBid))
	}
	if !math.IsNaN(snap.BestAsk) {
		pipe.HSet(ctx, bboKey, "ask", formatFloat(snap.BestAsk))
	}

	pipe.HSet(ctx, metaKey,
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
		"update_id", strconv.FormatInt(snap.UpdateID, 10),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s/%s: %w", venue, pair, err)
	}
	return nil
}

// GetSnapshot reconstructs a full DepthSnapshot from Redis.
// It returns domain.ErrNotFound if no snapshot data exists for the pair.
func (bc *BookCache) GetSnapshot(ctx context.Context, venue, pair string) (domain.DepthSnapshot, error) {
	pipe := bc.rdb.Pipeline()

	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookBidsKey(venue, pair), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, bookAsksKey(venue, pair), 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, bookBidSizeKey(venue, pair))
	askSizeCmd := pipe.HGetAll(ctx, bookAskSizeKey(venue, pair))
	bboCmd := pipe.HGetAll(ctx, bookBBOKey(venue, pair))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(venue, pair))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: get book snapshot %s/%s: %w", venue, pair, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.DepthSnapshot{}, domain.ErrNotFound
	}

	snap := domain.DepthSnapshot{
		Venue:       venue,
		TradingPair: pair,
		BestBid:     math.NaN(),
		BestAsk:     math.NaN(),
	}

	if tsStr, ok := metaVals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			snap.Timestamp = time.Unix(0, tsNano)
		}
	}
	if idStr, ok := metaVals["update_id"]; ok {
		snap.UpdateID, _ = strconv.ParseInt(idStr, 10, 64)
	}

	snap.Bids = levelsFromZ(bidsCmd, bidSizeCmd)
	snap.Asks = levelsFromZ(asksCmd, askSizeCmd)

	bboVals, _ := bboCmd.Result()
	if bidStr, ok := bboVals["bid"]; ok {
		snap.BestBid, _ = strconv.ParseFloat(bidStr, 64)
	}
	if askStr, ok := bboVals["ask"]; ok {
		snap.BestAsk, _ = strconv.ParseFloat(askStr, 64)
	}

	return snap, nil
}

// levelsFromZ joins a sorted-set range with its size hash into level rows.
func levelsFromZ(zCmd *redis.ZSliceCmd, sizeCmd *redis.MapStringStringCmd) []domain.LevelRow {
	sizes, _ := sizeCmd.Result()
	zs, _ := zCmd.Result()

	rows := make([]domain.LevelRow, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		amount := 0.0
		if sizeStr, exists := sizes[priceStr]; exists {
			amount, _ = strconv.ParseFloat(sizeStr, 64)
		}
		rows = append(rows, domain.LevelRow{Price: z.Score, Amount: amount})
	}
	return rows
}

// UpdateLevel applies a single level update using an atomic Lua script. If
// amount > 0 the level is added/updated; if amount == 0 the level is removed.
// The script recomputes the side's best price after the update.
func (bc *BookCache) UpdateLevel(ctx context.Context, venue, pair string, side domain.Side, price, amount float64) error {
	var zKey, hKey, sideArg string
	switch side {
	case domain.SideBuy:
		zKey = bookBidsKey(venue, pair)
		hKey = bookBidSizeKey(venue, pair)
		sideArg = "bids"
	case domain.SideSell:
		zKey = bookAsksKey(venue, pair)
		hKey = bookAskSizeKey(venue, pair)
		sideArg = "asks"
	default:
		return fmt.Errorf("redis: update level: unknown side %q", side)
	}

	keys := []string{zKey, hKey, bookBBOKey(venue, pair)}
	args := []interface{}{formatFloat(price), formatFloat(amount), sideArg}

	if err := bc.bookUpdate.Run(ctx, bc.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis: update level %s/%s %s@%s: %w", venue, pair, sideArg, formatFloat(price), err)
	}
	return nil
}

// GetBBO retrieves the current best bid and best ask from the BBO hash.
// It returns domain.ErrNotFound if no BBO data exists.
func (bc *BookCache) GetBBO(ctx context.Context, venue, pair string) (bestBid, bestAsk float64, err error) {
	vals, err := bc.rdb.HGetAll(ctx, bookBBOKey(venue, pair)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s/%s: %w", venue, pair, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	bestBid = math.NaN()
	bestAsk = math.NaN()
	if bidStr, ok := vals["bid"]; ok {
		bestBid, _ = strconv.ParseFloat(bidStr, 64)
	}
	if askStr, ok := vals["ask"]; ok {
		bestAsk, _ = strconv.ParseFloat(askStr, 64)
	}
	return bestBid, bestAsk, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
