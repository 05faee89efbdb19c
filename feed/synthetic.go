package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"auric/market"
)

const maxHistory = 1000

// Synthetic generates a bounded random walk for one instrument. The running
// price is owned by this instance and mutated only by candle generation, so
// successive candles chain continuously (open[i] == close[i-1]) instead of
// resetting between calls.
type Synthetic struct {
	mu     sync.Mutex
	symbol string
	rng    *rand.Rand
	price  float64
	series map[market.Timeframe]*series
	now    func() time.Time

	// Walk shape, tuned for gold-like magnitudes.
	closeSigma float64 // stddev of close-to-close move
	wickSigma  float64 // stddev of high/low extension
	tickJitter float64 // max tick offset from the running price
	spreadMin  float64
	spreadMax  float64
}

type series struct {
	candles []market.Candle
	price   float64 // running close of this chain
}

func NewSynthetic(symbol string, initialPrice float64, seed int64) *Synthetic {
	return &Synthetic{
		symbol:     symbol,
		rng:        rand.New(rand.NewSource(seed)),
		price:      initialPrice,
		series:     make(map[market.Timeframe]*series),
		now:        time.Now,
		closeSigma: 2.5,
		wickSigma:  1.5,
		tickJitter: 2.5,
		spreadMin:  0.1,
		spreadMax:  0.5,
	}
}

func (s *Synthetic) LatestTick(ctx context.Context) (market.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid := s.price + (s.rng.Float64()*2-1)*s.tickJitter
	spread := s.spreadMin + s.rng.Float64()*(s.spreadMax-s.spreadMin)

	return market.Tick{
		Instrument: s.symbol,
		Bid:        bid,
		Ask:        bid + spread,
		Time:       s.now().Unix(),
	}, nil
}

func (s *Synthetic) RecentCandles(ctx context.Context, tf market.Timeframe, count int) ([]market.Candle, error) {
	step := tf.Seconds()
	if step == 0 || count <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.series[tf]
	if sr == nil {
		sr = &series{price: s.price}
		s.series[tf] = sr
	}

	bucket := (s.now().Unix() / step) * step

	if len(sr.candles) == 0 {
		start := bucket - int64(count-1)*step
		for t := start; t <= bucket; t += step {
			sr.append(s.generate(sr.price, t))
		}
	} else {
		last := sr.candles[len(sr.candles)-1].Time
		// A very long idle gap would mean generating an unbounded run of
		// buckets; re-anchor the chain instead, carrying the price forward.
		if missing := (bucket - last) / step; missing > maxHistory {
			start := bucket - int64(count-1)*step
			sr.candles = sr.candles[:0]
			for t := start; t <= bucket; t += step {
				sr.append(s.generate(sr.price, t))
			}
		} else {
			for t := last + step; t <= bucket; t += step {
				sr.append(s.generate(sr.price, t))
			}
		}
	}

	s.price = sr.price

	n := len(sr.candles)
	if count > n {
		count = n
	}
	out := make([]market.Candle, count)
	copy(out, sr.candles[n-count:])
	return out, nil
}

// generate produces the next candle of a chain: open is the previous close,
// close walks by gaussian noise, wicks extend beyond the body.
func (s *Synthetic) generate(open float64, ts int64) market.Candle {
	c := open + s.rng.NormFloat64()*s.closeSigma
	hi := max(open, c) + abs(s.rng.NormFloat64()*s.wickSigma)
	lo := min(open, c) - abs(s.rng.NormFloat64()*s.wickSigma)
	vol := 50 + s.rng.Float64()*450

	return market.Candle{
		Time:   ts,
		Open:   open,
		High:   hi,
		Low:    lo,
		Close:  c,
		Volume: float64(int(vol)),
	}
}

func (sr *series) append(c market.Candle) {
	sr.candles = append(sr.candles, c)
	sr.price = c.Close
	if len(sr.candles) > maxHistory {
		sr.candles = sr.candles[len(sr.candles)-maxHistory:]
	}
}

func (s *Synthetic) Connected() bool { return true }

func (s *Synthetic) Close() error { return nil }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
