package feed

import (
	"context"
	"testing"
	"time"

	"auric/market"
)

func fixedClock(start time.Time) func() time.Time {
	return func() time.Time { return start }
}

func TestSyntheticTickValid(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 1)

	for i := 0; i < 100; i++ {
		tick, err := s.LatestTick(context.Background())
		if err != nil {
			t.Fatalf("latest tick: %v", err)
		}
		if !tick.Valid() {
			t.Fatalf("invalid tick bid=%.4f ask=%.4f", tick.Bid, tick.Ask)
		}
		if tick.Instrument != "XAU_USD" {
			t.Fatalf("instrument = %q", tick.Instrument)
		}
		if spread := tick.Spread(); spread < 0.1-1e-9 || spread > 0.5+1e-9 {
			t.Fatalf("spread %.4f outside configured band", spread)
		}
	}
}

func TestSyntheticCandlesChain(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(time.Unix(1_700_000_000, 0))

	candles, err := s.RecentCandles(context.Background(), market.M5, 20)
	if err != nil {
		t.Fatalf("recent candles: %v", err)
	}
	if len(candles) != 20 {
		t.Fatalf("got %d candles, want 20", len(candles))
	}

	step := market.M5.Seconds()
	for i, c := range candles {
		if c.Time%step != 0 {
			t.Errorf("candle %d time %d not bucket-aligned", i, c.Time)
		}
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Errorf("candle %d violates OHLC ordering: %+v", i, c)
		}
		if i > 0 {
			prev := candles[i-1]
			if c.Time != prev.Time+step {
				t.Errorf("candle %d time gap: %d -> %d", i, prev.Time, c.Time)
			}
			if c.Open != prev.Close {
				t.Errorf("candle %d open %.4f != previous close %.4f", i, c.Open, prev.Close)
			}
		}
	}
}

func TestSyntheticCandlesStableWithinBucket(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(time.Unix(1_700_000_000, 0))

	first, _ := s.RecentCandles(context.Background(), market.M5, 10)
	second, _ := s.RecentCandles(context.Background(), market.M5, 10)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("candle %d changed between calls in the same bucket", i)
		}
	}
}

func TestSyntheticCandlesExtendAcrossBuckets(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(start)

	first, _ := s.RecentCandles(context.Background(), market.M1, 5)

	// Advance two minutes: the chain extends, earlier candles unchanged.
	s.now = fixedClock(start.Add(2 * time.Minute))
	second, _ := s.RecentCandles(context.Background(), market.M1, 7)

	if len(second) != 7 {
		t.Fatalf("got %d candles, want 7", len(second))
	}
	if second[len(second)-1].Time != first[len(first)-1].Time+2*market.M1.Seconds() {
		t.Errorf("latest bucket did not advance with the clock")
	}
	for i, c := range first {
		if second[i] != c {
			t.Errorf("historical candle %d rewritten", i)
		}
	}
}

func TestSyntheticTimeframesIndependent(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(time.Unix(1_700_000_000, 0))

	m5, _ := s.RecentCandles(context.Background(), market.M5, 10)
	h1, _ := s.RecentCandles(context.Background(), market.H1, 10)

	if m5[0].Time%market.M5.Seconds() != 0 || h1[0].Time%market.H1.Seconds() != 0 {
		t.Error("bucket alignment broken across timeframes")
	}
	// Asking again for M5 must not be perturbed by the H1 chain.
	again, _ := s.RecentCandles(context.Background(), market.M5, 10)
	for i := range m5 {
		if m5[i] != again[i] {
			t.Errorf("M5 candle %d changed after H1 request", i)
		}
	}
}

func TestSyntheticHistoryBounded(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(start)

	s.RecentCandles(context.Background(), market.M1, 10)

	// Walk forward well past the retention window.
	for i := 1; i <= 30; i++ {
		s.now = fixedClock(start.Add(time.Duration(i*60) * time.Minute))
		s.RecentCandles(context.Background(), market.M1, 1)
	}

	sr := s.series[market.M1]
	if len(sr.candles) > maxHistory {
		t.Errorf("series holds %d candles, cap is %d", len(sr.candles), maxHistory)
	}
}

func TestSyntheticCountClamped(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 7)
	s.now = fixedClock(time.Unix(1_700_000_000, 0))

	candles, err := s.RecentCandles(context.Background(), market.M5, 3)
	if err != nil {
		t.Fatalf("recent candles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d, want 3", len(candles))
	}

	// Zero or negative counts are a no-op.
	candles, err = s.RecentCandles(context.Background(), market.M5, 0)
	if err != nil || candles != nil {
		t.Errorf("count=0 returned (%v, %v)", candles, err)
	}
}

func TestSyntheticConnected(t *testing.T) {
	s := NewSynthetic("XAU_USD", 2650, 1)
	if !s.Connected() {
		t.Error("synthetic source must always report connected")
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
