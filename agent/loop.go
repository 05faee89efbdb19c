// Package agent drives the trading control loop: it samples the market at a
// fixed cadence, invokes the decision oracle on a slower cadence, applies the
// risk policy, mutates the ledger and streams every state change to
// observers.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"auric/broker"
	"auric/feed"
	"auric/hub"
	"auric/market"
	"auric/oracle"
	"auric/risk"
)

const backoffFactor = 5

// Options are the loop's named cadences, expressed in samples rather than
// wall-clock modulo arithmetic so they stay deterministic under test.
type Options struct {
	Instrument    string
	Timeframe     market.Timeframe
	SamplePeriod  time.Duration
	DecisionEvery int // invoke the oracle every N samples
	SnapshotEvery int // emit positions/account every N samples
	ContextDepth  int // candles handed to the oracle
}

func (o *Options) defaults() {
	if o.Timeframe == "" {
		o.Timeframe = market.M5
	}
	if o.SamplePeriod <= 0 {
		o.SamplePeriod = time.Second
	}
	if o.DecisionEvery < 1 {
		o.DecisionEvery = 10
	}
	if o.SnapshotEvery < 1 {
		o.SnapshotEvery = 2
	}
	if o.ContextDepth < 1 {
		o.ContextDepth = 50
	}
}

type Loop struct {
	opts   Options
	source feed.Source
	ledger broker.Broker
	oracle *oracle.Adapter
	events *hub.Hub
	policy risk.Policy
	log    *logrus.Entry

	enabled atomic.Bool
	samples int // cycles completed; owned by Run
}

func New(opts Options, source feed.Source, ledger broker.Broker, adapter *oracle.Adapter, events *hub.Hub, policy risk.Policy, log *logrus.Entry) *Loop {
	opts.defaults()
	if log == nil {
		log = logrus.WithField("component", "agent")
	}
	return &Loop{
		opts:   opts,
		source: source,
		ledger: ledger,
		oracle: adapter,
		events: events,
		policy: policy,
		log:    log,
	}
}

func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Toggle flips the agent flag and announces the new status to observers.
func (l *Loop) Toggle(enable bool) string {
	l.enabled.Store(enable)
	status := "stopped"
	if enable {
		status = "running"
	}
	l.log.WithField("status", status).Info("agent toggled")
	l.events.Broadcast(hub.AgentStatus, map[string]string{"status": status})
	return status
}

// Run drives the loop until ctx is canceled. A failing cycle is logged and
// followed by a longer backoff sleep; the loop itself never terminates on a
// single cycle's failure. Cancellation lets the current cycle finish before
// returning.
func (l *Loop) Run(ctx context.Context) error {
	l.log.WithFields(logrus.Fields{
		"instrument":     l.opts.Instrument,
		"sample_period":  l.opts.SamplePeriod.String(),
		"decision_every": l.opts.DecisionEvery,
		"snapshot_every": l.opts.SnapshotEvery,
	}).Info("control loop started")

	for {
		wait := l.opts.SamplePeriod
		if err := l.cycle(ctx); err != nil {
			l.log.WithError(err).Warn("cycle failed, backing off")
			wait = time.Duration(backoffFactor) * l.opts.SamplePeriod
		}

		select {
		case <-ctx.Done():
			l.log.Info("control loop stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// cycle is one pass of the state machine: sample, decide, snapshot.
func (l *Loop) cycle(ctx context.Context) error {
	l.samples++

	tick, err := l.source.LatestTick(ctx)
	if err != nil {
		// Transient sampling failure: skip the cycle, keep the cadence.
		l.log.WithError(err).Debug("no tick this cycle")
		return nil
	}
	if !tick.Valid() {
		l.log.WithFields(logrus.Fields{"bid": tick.Bid, "ask": tick.Ask}).Debug("invalid tick, skipping cycle")
		return nil
	}

	// Mark before any read that reports profit, so every observer sees this
	// tick or a later one.
	if err := l.ledger.MarkToMarket(ctx, tick); err != nil {
		return fmt.Errorf("mark to market: %w", err)
	}
	l.events.Broadcast(hub.TickUpdate, tick)

	if candles, err := l.source.RecentCandles(ctx, l.opts.Timeframe, 2); err == nil && len(candles) > 0 {
		l.events.Broadcast(hub.CandleUpdate, candles[len(candles)-1])
	} else if err != nil {
		l.log.WithError(err).Debug("no candles this cycle")
	}

	if l.enabled.Load() && l.samples%l.opts.DecisionEvery == 0 {
		if err := l.decide(ctx, tick); err != nil {
			return err
		}
	}

	if l.samples%l.opts.SnapshotEvery == 0 {
		l.events.Broadcast(hub.Positions, l.ledger.Positions(ctx))
		l.events.Broadcast(hub.Account, l.ledger.Snapshot(ctx))
	}

	return nil
}

// decide runs one oracle invocation and applies its decision under policy.
func (l *Loop) decide(ctx context.Context, tick market.Tick) error {
	candles, err := l.source.RecentCandles(ctx, l.opts.Timeframe, l.opts.ContextDepth)
	if err != nil {
		return fmt.Errorf("build oracle context: %w", err)
	}

	mc := oracle.Context{
		Candles:   candles,
		Tick:      tick,
		Account:   l.ledger.Snapshot(ctx),
		Positions: l.ledger.Positions(ctx),
		History:   l.oracle.History().Recent(5),
	}

	decision := l.oracle.Decide(ctx, mc)

	// The decision is streamed regardless of whether it gets executed.
	l.events.Broadcast(hub.Reasoning, map[string]interface{}{
		"action":     decision.Action,
		"reasoning":  decision.Rationale,
		"confidence": decision.Confidence,
		"timestamp":  time.Unix(tick.Time, 0).UTC().Format(time.RFC3339),
	})

	switch decision.Action {
	case oracle.Buy, oracle.Sell:
		if decision.Confidence < l.policy.ConfidenceThreshold {
			l.log.WithFields(logrus.Fields{
				"action":     decision.Action,
				"confidence": decision.Confidence,
				"threshold":  l.policy.ConfidenceThreshold,
			}).Info("decision below confidence threshold, not executed")
			return nil
		}

		side := broker.Long
		if decision.Action == oracle.Sell {
			side = broker.Short
		}
		var volume float64
		if decision.Volume != nil {
			volume = *decision.Volume
		}
		res := l.open(ctx, side, volume, decision.StopLoss, decision.TakeProfit)
		l.events.Broadcast(hub.TradeEvent, res)

	case oracle.CloseAll:
		for _, res := range l.closeAll(ctx) {
			l.events.Broadcast(hub.TradeEvent, res)
		}

	case oracle.Hold, oracle.NoAction:
		// No ledger mutation.
	}

	return nil
}
