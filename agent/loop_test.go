package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auric/broker"
	"auric/hub"
	"auric/journal"
	"auric/market"
	"auric/oracle"
	"auric/risk"
	"auric/sim"
)

type scriptedSource struct {
	mu      sync.Mutex
	tick    market.Tick
	tickErr error
	candles []market.Candle
}

func (s *scriptedSource) LatestTick(ctx context.Context) (market.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick, s.tickErr
}

func (s *scriptedSource) RecentCandles(ctx context.Context, tf market.Timeframe, count int) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < len(s.candles) {
		return s.candles[len(s.candles)-count:], nil
	}
	return s.candles, nil
}

func (s *scriptedSource) Connected() bool { return true }
func (s *scriptedSource) Close() error    { return nil }

type scriptedOracle struct {
	out string
}

func (o *scriptedOracle) Complete(ctx context.Context, system, user string) (string, error) {
	return o.out, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []hub.Message
}

func (o *recordingObserver) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var msg hub.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	o.events = append(o.events, msg)
	return nil
}

func (o *recordingObserver) byType(eventType string) []hub.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []hub.Message
	for _, m := range o.events {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	loop     *Loop
	source   *scriptedSource
	engine   *sim.Engine
	observer *recordingObserver
}

func newFixture(t *testing.T, oracleOut string) *fixture {
	t.Helper()

	source := &scriptedSource{
		tick: market.Tick{Instrument: "XAU_USD", Bid: 2650, Ask: 2650, Time: 100},
		candles: []market.Candle{
			{Time: 0, Open: 2649, High: 2651, Low: 2648, Close: 2650, Volume: 100},
			{Time: 300, Open: 2650, High: 2652, Low: 2649, Close: 2651, Volume: 120},
		},
	}
	policy := risk.Default()
	engine := sim.NewEngine("XAU_USD", "USD", 10000, policy, journal.Nop{})
	adapter := oracle.NewAdapter(&scriptedOracle{out: oracleOut}, time.Second)
	events := hub.New(nil)
	observer := &recordingObserver{}
	events.Register(observer)

	loop := New(Options{
		Instrument:    "XAU_USD",
		Timeframe:     market.M5,
		SamplePeriod:  time.Millisecond,
		DecisionEvery: 1,
		SnapshotEvery: 1,
	}, source, engine, adapter, events, policy, nil)

	return &fixture{loop: loop, source: source, engine: engine, observer: observer}
}

func TestCycleBroadcastsMarketData(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD", "confidence": 0.9}`)

	require.NoError(t, f.loop.cycle(context.Background()))

	assert.Len(t, f.observer.byType(hub.TickUpdate), 1)
	assert.Len(t, f.observer.byType(hub.CandleUpdate), 1)
	assert.Len(t, f.observer.byType(hub.Positions), 1)
	assert.Len(t, f.observer.byType(hub.Account), 1)
}

func TestCycleSkipsOracleWhenDisabled(t *testing.T) {
	f := newFixture(t, `{"action": "BUY", "confidence": 0.95}`)

	require.NoError(t, f.loop.cycle(context.Background()))

	assert.Empty(t, f.observer.byType(hub.Reasoning))
	assert.Empty(t, f.engine.Positions(context.Background()))
}

func TestCycleExecutesConfidentDecision(t *testing.T) {
	f := newFixture(t, `{"action": "BUY", "confidence": 0.95, "reasoning": "momentum"}`)
	f.loop.Toggle(true)

	require.NoError(t, f.loop.cycle(context.Background()))

	positions := f.engine.Positions(context.Background())
	require.Len(t, positions, 1)
	assert.Equal(t, broker.Long, positions[0].Side)

	require.Len(t, f.observer.byType(hub.Reasoning), 1)
	trades := f.observer.byType(hub.TradeEvent)
	require.Len(t, trades, 1)
}

func TestCycleHoldsBelowConfidenceThreshold(t *testing.T) {
	// 0.5 < default threshold 0.70: streamed but never executed.
	f := newFixture(t, `{"action": "SELL", "confidence": 0.5, "reasoning": "weak signal"}`)
	f.loop.Toggle(true)

	before := f.engine.Snapshot(context.Background())
	require.NoError(t, f.loop.cycle(context.Background()))

	assert.Empty(t, f.engine.Positions(context.Background()))
	assert.Equal(t, before, f.engine.Snapshot(context.Background()))
	assert.Len(t, f.observer.byType(hub.Reasoning), 1, "reasoning still streams")
	assert.Empty(t, f.observer.byType(hub.TradeEvent))
}

func TestCycleClosesOnCloseDecision(t *testing.T) {
	f := newFixture(t, `{"action": "CLOSE", "confidence": 0.9}`)
	require.NoError(t, f.engine.MarkToMarket(context.Background(), f.source.tick))
	_, err := f.engine.Open(context.Background(), broker.OrderRequest{Side: broker.Long, Volume: 0.1})
	require.NoError(t, err)

	f.loop.Toggle(true)
	require.NoError(t, f.loop.cycle(context.Background()))

	assert.Empty(t, f.engine.Positions(context.Background()))
	assert.NotEmpty(t, f.observer.byType(hub.TradeEvent))
}

func TestCycleDecisionCadence(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD", "confidence": 0.9}`)
	f.loop.opts.DecisionEvery = 3
	f.loop.Toggle(true)

	for i := 0; i < 6; i++ {
		require.NoError(t, f.loop.cycle(context.Background()))
	}

	// Samples 3 and 6 fire the oracle.
	assert.Len(t, f.observer.byType(hub.Reasoning), 2)
}

func TestCycleSkipsOnFeedError(t *testing.T) {
	f := newFixture(t, `{"action": "BUY", "confidence": 0.95}`)
	f.loop.Toggle(true)
	f.source.tickErr = context.DeadlineExceeded

	// Feed trouble is not a cycle failure; the loop keeps its cadence.
	require.NoError(t, f.loop.cycle(context.Background()))
	assert.Empty(t, f.observer.byType(hub.TickUpdate))
}

func TestCycleSkipsInvalidTick(t *testing.T) {
	f := newFixture(t, `{"action": "BUY", "confidence": 0.95}`)
	f.loop.Toggle(true)
	f.source.tick = market.Tick{Instrument: "XAU_USD", Bid: 2650, Ask: 2600, Time: 100}

	require.NoError(t, f.loop.cycle(context.Background()))
	assert.Empty(t, f.observer.byType(hub.TickUpdate))
	assert.Empty(t, f.engine.Positions(context.Background()))
}

func TestToggleBroadcastsStatus(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)

	assert.Equal(t, "running", f.loop.Toggle(true))
	assert.True(t, f.loop.Enabled())
	assert.Equal(t, "stopped", f.loop.Toggle(false))
	assert.False(t, f.loop.Enabled())

	statuses := f.observer.byType(hub.AgentStatus)
	require.Len(t, statuses, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestManualTradeRoundTrip(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)
	require.NoError(t, f.engine.MarkToMarket(context.Background(), f.source.tick))

	res := f.loop.ManualTrade(context.Background(), "buy", 0.1, nil, nil, "")
	require.True(t, res.Success, res.Message)
	require.NotEmpty(t, res.Ticket)

	res = f.loop.ManualTrade(context.Background(), "close", 0, nil, nil, res.Ticket)
	assert.True(t, res.Success, res.Message)

	assert.Len(t, f.observer.byType(hub.TradeEvent), 2)
}

func TestManualTradeRejectionIsResultNotError(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)
	require.NoError(t, f.engine.MarkToMarket(context.Background(), f.source.tick))

	// Stop on the wrong side: policy rejects, the command still answers.
	sl := 2700.0
	res := f.loop.ManualTrade(context.Background(), "buy", 0.1, &sl, nil, "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, f.engine.Positions(context.Background()))
}

func TestManualTradeCloseAllWithoutPositions(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)
	require.NoError(t, f.engine.MarkToMarket(context.Background(), f.source.tick))

	res := f.loop.ManualTrade(context.Background(), "close", 0, nil, nil, "")
	assert.False(t, res.Success)
	assert.Equal(t, "no open positions", res.Message)
}

func TestManualTradeUnknownAction(t *testing.T) {
	f := newFixture(t, `{"action": "HOLD"}`)

	res := f.loop.ManualTrade(context.Background(), "hedge", 0, nil, nil, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unknown action")
}
