package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry(map[string]VenueOptions{
		"uniswap": {Decentralized: true},
	}, nil)

	ob := reg.GetOrCreate("binance", "ETH-USDT")
	require.NotNil(t, ob)
	assert.Equal(t, "binance", ob.Venue())
	assert.Equal(t, "ETH-USDT", ob.TradingPair())

	// Same key returns the same instance.
	assert.Same(t, ob, reg.GetOrCreate("binance", "ETH-USDT"))
	assert.Equal(t, 1, reg.Len())

	// Venue policy is applied at creation.
	dex := reg.GetOrCreate("uniswap", "ETH-USDC")
	dex.ApplySnapshot(
		[]PriceLevelEntry{entry(102, 1, 1)},
		[]PriceLevelEntry{entry(101, 1, 1), entry(103, 1, 1)},
		1,
	)
	assert.Equal(t, 102.0, dex.BestBid())
	assert.Equal(t, 103.0, dex.BestAsk())
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry(nil, nil)

	_, err := reg.Get("binance", "ETH-USDT")
	assert.ErrorIs(t, err, domain.ErrUnknownBook)
}

func TestRegistryRemoveAndList(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.GetOrCreate("binance", "ETH-USDT")
	reg.GetOrCreate("binance", "BTC-USDT")
	reg.GetOrCreate("kraken", "ETH-USD")

	assert.Equal(t, []string{"binance/BTC-USDT", "binance/ETH-USDT", "kraken/ETH-USD"}, reg.List())

	reg.Remove("binance", "BTC-USDT")
	assert.Equal(t, 2, reg.Len())
	_, err := reg.Get("binance", "BTC-USDT")
	assert.ErrorIs(t, err, domain.ErrUnknownBook)
}
