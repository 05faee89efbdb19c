// Package feed provides market data sources for a single instrument: a
// deterministic-seeded synthetic generator and a live REST adapter. Both
// satisfy the same contract, including strictly increasing, gapless
// per-timeframe candle timestamps.
package feed

import (
	"context"
	"errors"

	"auric/market"
)

var (
	ErrNoTick       = errors.New("feed: no tick available")
	ErrDisconnected = errors.New("feed: data source not connected")
)

type Source interface {
	// LatestTick returns the current bid/ask observation.
	LatestTick(ctx context.Context) (market.Tick, error)

	// RecentCandles returns up to count candles for the timeframe, most
	// recent last, with strictly increasing gapless timestamps.
	RecentCandles(ctx context.Context, tf market.Timeframe, count int) ([]market.Candle, error)

	// Connected reports whether the underlying data source is reachable.
	// The synthetic source is always connected.
	Connected() bool

	Close() error
}
