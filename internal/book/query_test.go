package book

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// queryBook builds a book with asks 100x1, 101x2, 102x3 and bids 99x1, 98x2, 97x3.
func queryBook(t *testing.T) *OrderBook {
	t.Helper()
	ob := New("binance", "ETH-USDT", Options{})
	ob.ApplySnapshot(
		[]PriceLevelEntry{entry(99, 1, 1), entry(98, 2, 1), entry(97, 3, 1)},
		[]PriceLevelEntry{entry(100, 1, 1), entry(101, 2, 1), entry(102, 3, 1)},
		1,
	)
	return ob
}

func TestGetPrice(t *testing.T) {
	ob := queryBook(t)

	buy, err := ob.GetPrice(true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, buy)

	sell, err := ob.GetPrice(false)
	require.NoError(t, err)
	assert.Equal(t, 99.0, sell)
}

func TestGetPriceEmptySide(t *testing.T) {
	ob := New("binance", "ETH-USDT", Options{})
	ob.ApplySnapshot([]PriceLevelEntry{entry(99, 1, 1)}, nil, 1)

	_, err := ob.GetPrice(true)
	assert.ErrorIs(t, err, domain.ErrEmptyBook)

	price, err := ob.GetPrice(false)
	require.NoError(t, err)
	assert.Equal(t, 99.0, price)
}

func TestGetPriceForVolume(t *testing.T) {
	ob := queryBook(t)

	// 2.5 units crosses into the 101 level.
	res := ob.GetPriceForVolume(true, 2.5)
	assert.Equal(t, 101.0, res.ResultPrice)
	assert.Equal(t, 2.5, res.ResultVolume)
	assert.True(t, math.IsNaN(res.QueryPrice))
	assert.Equal(t, 2.5, res.QueryVolume)
	assert.True(t, res.Satisfied())

	// Selling 1.5 units crosses into the 98 bid level.
	res = ob.GetPriceForVolume(false, 1.5)
	assert.Equal(t, 98.0, res.ResultPrice)
	assert.Equal(t, 1.5, res.ResultVolume)
}

func TestGetPriceForVolumeMonotonic(t *testing.T) {
	ob := queryBook(t)

	prev := math.Inf(-1)
	for _, v := range []float64{0.5, 1.0, 2.0, 3.5, 6.0} {
		res := ob.GetPriceForVolume(true, v)
		assert.GreaterOrEqual(t, res.ResultPrice, prev, "volume %v", v)
		prev = res.ResultPrice
	}
}

func TestGetPriceForVolumeUnderfill(t *testing.T) {
	ob := queryBook(t)

	// Only 6 units rest on the ask side.
	res := ob.GetPriceForVolume(true, 10)
	assert.Equal(t, 102.0, res.ResultPrice)
	assert.Equal(t, 6.0, res.ResultVolume)
	assert.False(t, res.Satisfied())
}

func TestGetPriceForVolumeEmptyBook(t *testing.T) {
	ob := New("binance", "ETH-USDT", Options{})

	res := ob.GetPriceForVolume(true, 10)
	assert.True(t, math.IsNaN(res.ResultPrice))
	assert.Equal(t, 0.0, res.ResultVolume)
}

func TestGetVWAPForVolumeExactBoundary(t *testing.T) {
	ob := New("binance", "ETH-USDT", Options{})
	ob.ApplySnapshot(
		nil,
		[]PriceLevelEntry{entry(100, 1, 1), entry(101, 2, 2)},
		2,
	)

	// Consumes all of level 100 and exactly one unit of level 101.
	res := ob.GetVWAPForVolume(true, 2.0)
	assert.InDelta(t, 100.5, res.ResultPrice, 1e-12)
	assert.Equal(t, 2.0, res.ResultVolume)
}

func TestGetVWAPForVolumeUnderfill(t *testing.T) {
	ob := queryBook(t)

	// Full ask side: 100*1 + 101*2 + 102*3 = 608 notional over 6 units.
	res := ob.GetVWAPForVolume(true, 50)
	assert.InDelta(t, 608.0/6.0, res.ResultPrice, 1e-9)
	assert.Equal(t, 6.0, res.ResultVolume)
}

func TestGetVWAPForVolumeEmptyBook(t *testing.T) {
	ob := New("binance", "ETH-USDT", Options{})

	res := ob.GetVWAPForVolume(false, 1.0)
	assert.True(t, math.IsNaN(res.ResultPrice))
	assert.Equal(t, 0.0, res.ResultVolume)
}

func TestGetPriceForQuoteVolume(t *testing.T) {
	ob := queryBook(t)

	// 100 notional consumes exactly the first ask level; 150 crosses into 101.
	res := ob.GetPriceForQuoteVolume(true, 150)
	assert.Equal(t, 101.0, res.ResultPrice)
	assert.Equal(t, 150.0, res.ResultVolume)

	// Whole side carries 608 notional.
	res = ob.GetPriceForQuoteVolume(true, 1000)
	assert.Equal(t, 102.0, res.ResultPrice)
	assert.Equal(t, 608.0, res.ResultVolume)
}

func TestGetQuoteVolumeForBaseAmount(t *testing.T) {
	ob := queryBook(t)

	// Buying 2.5 units: 1@100 + 1.5@101 = 251.5.
	res := ob.GetQuoteVolumeForBaseAmount(true, 2.5)
	assert.InDelta(t, 251.5, res.ResultVolume, 1e-12)
	assert.Equal(t, 2.5, res.QueryVolume)

	// Under-fill returns the notional of everything available.
	res = ob.GetQuoteVolumeForBaseAmount(true, 50)
	assert.Equal(t, 608.0, res.ResultVolume)
}

func TestGetVolumeForPrice(t *testing.T) {
	ob := queryBook(t)

	// Buying with a 101 limit reaches levels 100 and 101.
	res := ob.GetVolumeForPrice(true, 101)
	assert.Equal(t, 3.0, res.ResultVolume)
	assert.Equal(t, 101.0, res.ResultPrice)
	assert.Equal(t, 101.0, res.QueryPrice)

	// Selling with a 98 limit reaches bids 99 and 98.
	res = ob.GetVolumeForPrice(false, 98)
	assert.Equal(t, 3.0, res.ResultVolume)
	assert.Equal(t, 98.0, res.ResultPrice)

	// A bound inside the spread reaches nothing.
	res = ob.GetVolumeForPrice(true, 99.5)
	assert.True(t, math.IsNaN(res.ResultPrice))
	assert.Equal(t, 0.0, res.ResultVolume)
}

func TestGetQuoteVolumeForPrice(t *testing.T) {
	ob := queryBook(t)

	// 1@100 + 2@101 = 302 notional within a 101 limit.
	res := ob.GetQuoteVolumeForPrice(true, 101)
	assert.Equal(t, 302.0, res.ResultVolume)
	assert.Equal(t, 101.0, res.ResultPrice)
}
