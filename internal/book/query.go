package book

import (
	"math"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// QueryResult is the uniform answer shape for every liquidity query. The two
// query fields echo whichever input the variant took; the unused ones are
// NaN. A NaN ResultPrice or a ResultVolume below the requested amount means
// the book could not satisfy the query in full. Thin liquidity is a normal
// outcome, not an error.
type QueryResult struct {
	QueryPrice   float64
	QueryVolume  float64
	ResultPrice  float64
	ResultVolume float64
}

// Satisfied reports whether the query was filled in full: a real result price
// and at least the requested volume.
func (r QueryResult) Satisfied() bool {
	return !math.IsNaN(r.ResultPrice) && r.ResultVolume >= r.QueryVolume
}

// walkLocked visits the relevant side most-competitive-first: asks ascending
// when buying, bids descending when selling. Caller must hold a lock.
func (ob *OrderBook) walkLocked(isBuy bool, fn func(e PriceLevelEntry) bool) {
	if isBuy {
		ob.asks.Scan(func(_ float64, e PriceLevelEntry) bool { return fn(e) })
	} else {
		ob.bids.Reverse(func(_ float64, e PriceLevelEntry) bool { return fn(e) })
	}
}

// GetPrice returns the best ask when buying or the best bid when selling.
// Unlike the volume queries this is a hard signal: an empty side returns
// domain.ErrEmptyBook rather than NaN.
func (ob *OrderBook) GetPrice(isBuy bool) (float64, error) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	price := ob.bestBid
	if isBuy {
		price = ob.bestAsk
	}
	if math.IsNaN(price) {
		return 0, domain.ErrEmptyBook
	}
	return price, nil
}

// GetPriceForVolume walks the book accumulating base volume until the target
// is reached and returns the price of the level that crossed the threshold.
// When the whole side holds less than volume, the last level's price and the
// total available are returned.
func (ob *OrderBook) GetPriceForVolume(isBuy bool, volume float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	cumulative := 0.0
	resultPrice := math.NaN()
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		cumulative += e.Amount
		resultPrice = e.Price
		return cumulative < volume
	})

	return QueryResult{
		QueryPrice:   math.NaN(),
		QueryVolume:  volume,
		ResultPrice:  resultPrice,
		ResultVolume: math.Min(cumulative, volume),
	}
}

// GetVWAPForVolume returns the exact volume-weighted average price for
// consuming precisely volume units. The crossing level contributes only the
// fraction needed to reach the target. An empty side yields a NaN price and
// zero volume.
func (ob *OrderBook) GetVWAPForVolume(isBuy bool, volume float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	cumulative := 0.0
	notional := 0.0
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		if cumulative+e.Amount >= volume {
			// Partial consumption of the crossing level.
			notional += (volume - cumulative) * e.Price
			cumulative = volume
			return false
		}
		cumulative += e.Amount
		notional += e.Amount * e.Price
		return true
	})

	vwap := notional / cumulative // NaN when the side is empty
	return QueryResult{
		QueryPrice:   math.NaN(),
		QueryVolume:  volume,
		ResultPrice:  vwap,
		ResultVolume: math.Min(cumulative, volume),
	}
}

// GetPriceForQuoteVolume is GetPriceForVolume against a notional target: it
// accumulates amount*price until the target quote volume is reached and
// returns the price of the crossing level. ResultVolume is in quote units.
func (ob *OrderBook) GetPriceForQuoteVolume(isBuy bool, quoteVolume float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	cumulative := 0.0
	resultPrice := math.NaN()
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		cumulative += e.Amount * e.Price
		resultPrice = e.Price
		return cumulative < quoteVolume
	})

	return QueryResult{
		QueryPrice:   math.NaN(),
		QueryVolume:  quoteVolume,
		ResultPrice:  resultPrice,
		ResultVolume: math.Min(cumulative, quoteVolume),
	}
}

// GetQuoteVolumeForBaseAmount returns the total notional cost (buying) or
// proceeds (selling) of trading exactly baseAmount base units, clamping the
// last level's contribution to the remainder. When the side holds less than
// baseAmount, the notional of everything available is returned.
func (ob *OrderBook) GetQuoteVolumeForBaseAmount(isBuy bool, baseAmount float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	cumulativeBase := 0.0
	notional := 0.0
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		if cumulativeBase+e.Amount >= baseAmount {
			notional += (baseAmount - cumulativeBase) * e.Price
			cumulativeBase = baseAmount
			return false
		}
		cumulativeBase += e.Amount
		notional += e.Amount * e.Price
		return true
	})

	resultVolume := notional
	if cumulativeBase == 0 {
		resultVolume = 0
	}
	return QueryResult{
		QueryPrice:   math.NaN(),
		QueryVolume:  baseAmount,
		ResultPrice:  math.NaN(),
		ResultVolume: resultVolume,
	}
}

// GetVolumeForPrice sums base volume across every level priced at or better
// than the bound: at or below price when buying, at or above when selling.
// ResultPrice is the worst level included, NaN when none qualify.
func (ob *OrderBook) GetVolumeForPrice(isBuy bool, price float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	total := 0.0
	resultPrice := math.NaN()
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		if isBuy && e.Price > price {
			return false
		}
		if !isBuy && e.Price < price {
			return false
		}
		total += e.Amount
		resultPrice = e.Price
		return true
	})

	return QueryResult{
		QueryPrice:   price,
		QueryVolume:  math.NaN(),
		ResultPrice:  resultPrice,
		ResultVolume: total,
	}
}

// GetQuoteVolumeForPrice is GetVolumeForPrice summing notional (amount*price)
// instead of base volume.
func (ob *OrderBook) GetQuoteVolumeForPrice(isBuy bool, price float64) QueryResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	total := 0.0
	resultPrice := math.NaN()
	ob.walkLocked(isBuy, func(e PriceLevelEntry) bool {
		if isBuy && e.Price > price {
			return false
		}
		if !isBuy && e.Price < price {
			return false
		}
		total += e.Amount * e.Price
		resultPrice = e.Price
		return true
	})

	return QueryResult{
		QueryPrice:   price,
		QueryVolume:  math.NaN(),
		ResultPrice:  resultPrice,
		ResultVolume: total,
	}
}
