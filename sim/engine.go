package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"auric/broker"
	"auric/internal/id"
	"auric/journal"
	"auric/market"
	"auric/risk"
)

// CloseListener is notified when the engine auto-closes a position on a
// stop-loss or take-profit trigger. It is called after the engine lock is
// released to avoid deadlocks.
type CloseListener func(pos broker.Position, res broker.CloseResult, reason string)

// Engine is the simulated broker ledger for a single instrument. It owns the
// account balance and the set of open positions; all mutations run under one
// mutex so concurrent open/close/query never observe a half-updated ledger.
type Engine struct {
	mu sync.Mutex

	instrument string
	meta       market.InstrumentMeta
	currency   string
	balance    float64
	positions  map[string]*broker.Position

	tick    market.Tick
	hasTick bool

	policy   risk.Policy
	journal  journal.Journal
	listener CloseListener
}

func NewEngine(instrument, currency string, balance float64, policy risk.Policy, j journal.Journal) *Engine {
	if j == nil {
		j = journal.Nop{}
	}
	return &Engine{
		instrument: instrument,
		meta:       market.Meta(instrument),
		currency:   currency,
		balance:    balance,
		positions:  make(map[string]*broker.Position),
		policy:     policy,
		journal:    j,
	}
}

func (e *Engine) SetCloseListener(fn CloseListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

func (e *Engine) Policy() risk.Policy { return e.policy }

// Open fills at the current ask (long) or bid (short). The order is checked
// against the risk policy first; a rejected order leaves the ledger untouched.
func (e *Engine) Open(ctx context.Context, req broker.OrderRequest) (broker.Position, error) {
	_ = ctx // mutation is lock-bound, not cancelable mid-flight

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasTick {
		return broker.Position{}, fmt.Errorf("open %s: %w", e.instrument, broker.ErrNoPrice)
	}

	entry := e.tick.Ask
	if req.Side == broker.Short {
		entry = e.tick.Bid
	}

	verdict := e.policy.Evaluate(risk.Intent{
		Long:       req.Side == broker.Long,
		Entry:      entry,
		Volume:     req.Volume,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}, len(e.positions))
	if !verdict.Allowed {
		return broker.Position{}, fmt.Errorf("open %s: %w: %s", e.instrument, broker.ErrRejectedByPolicy, verdict.Reason())
	}

	pos := broker.Position{
		Ticket:     id.New(),
		Instrument: e.instrument,
		Side:       req.Side,
		Volume:     verdict.Volume,
		EntryPrice: entry,
		Price:      entry,
		StopLoss:   req.StopLoss,
		TakeProfit: verdict.TakeProfit,
		OpenedAt:   e.tick.Time,
	}
	e.positions[pos.Ticket] = &pos

	e.recordEquityLocked(e.tick.Time)

	out := pos
	return out, nil
}

// Close removes the position and realizes profit against the latest tick at
// the moment of close, never a stale one.
func (e *Engine) Close(ctx context.Context, ticket string) (broker.CloseResult, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[ticket]
	if !ok {
		return broker.CloseResult{}, fmt.Errorf("close %q: %w", ticket, broker.ErrNotFound)
	}
	if !e.hasTick {
		return broker.CloseResult{}, fmt.Errorf("close %q: %w", ticket, broker.ErrNoPrice)
	}

	res := e.closeLocked(p, e.closePrice(*p, e.tick), "ManualClose")
	return res, nil
}

// CloseAll closes every open position at current prices, oldest first.
func (e *Engine) CloseAll(ctx context.Context) ([]broker.CloseResult, error) {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.positions) == 0 {
		return nil, nil
	}
	if !e.hasTick {
		return nil, fmt.Errorf("close all: %w", broker.ErrNoPrice)
	}

	results := make([]broker.CloseResult, 0, len(e.positions))
	for _, p := range e.openSortedLocked() {
		results = append(results, e.closeLocked(p, e.closePrice(*p, e.tick), "ManualClose"))
	}
	return results, nil
}

// MarkToMarket recomputes current price and profit for every open position
// from the given tick, then fires any stop-loss/take-profit triggers. Every
// position queried afterwards reflects this tick or a later one.
func (e *Engine) MarkToMarket(ctx context.Context, tick market.Tick) error {
	_ = ctx

	if !tick.Valid() {
		return fmt.Errorf("mark to market: invalid tick bid=%.5f ask=%.5f", tick.Bid, tick.Ask)
	}

	type closed struct {
		pos    broker.Position
		res    broker.CloseResult
		reason string
	}
	var autoClosed []closed

	e.mu.Lock()

	e.tick = tick
	e.hasTick = true

	for _, p := range e.openSortedLocked() {
		mark := e.closePrice(*p, tick)
		p.Price = mark
		p.Profit = e.profit(*p, mark)

		reason := ""
		switch {
		case hitStopLoss(p, mark):
			reason = "StopLoss"
		case hitTakeProfit(p, mark):
			reason = "TakeProfit"
		}
		if reason != "" {
			snapshot := *p
			res := e.closeLocked(p, mark, reason)
			autoClosed = append(autoClosed, closed{snapshot, res, reason})
		}
	}

	e.recordEquityLocked(tick.Time)

	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		for _, c := range autoClosed {
			listener(c.pos, c.res, c.reason)
		}
	}
	return nil
}

// Positions returns copies of the open positions marked to the last observed
// tick, ordered by ticket (tickets are time-sortable).
func (e *Engine) Positions(ctx context.Context) []broker.Position {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.openSortedLocked() {
		cp := *p
		if e.hasTick {
			cp.Price = e.closePrice(cp, e.tick)
			cp.Profit = e.profit(cp, cp.Price)
		}
		out = append(out, cp)
	}
	return out
}

// Snapshot derives the account view from balance plus open positions marked
// to the latest tick. Derived read; never mutates.
func (e *Engine) Snapshot(ctx context.Context) broker.AccountSnapshot {
	_ = ctx

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() broker.AccountSnapshot {
	var unrealized, marginUsed float64
	for _, p := range e.positions {
		if e.hasTick {
			unrealized += e.profit(*p, e.closePrice(*p, e.tick))
			marginUsed += p.Volume * e.meta.ContractSize * e.tick.Mid() * e.meta.MarginRate
		}
	}

	equity := e.balance + unrealized
	return broker.AccountSnapshot{
		Balance:    e.balance,
		Equity:     equity,
		MarginUsed: marginUsed,
		FreeMargin: equity - marginUsed,
		Profit:     unrealized,
		Currency:   e.currency,
		Mode:       broker.Simulated,
	}
}

// closePrice is the side-correct exit/mark price: longs on bid, shorts on ask.
func (e *Engine) closePrice(p broker.Position, t market.Tick) float64 {
	if p.Side == broker.Long {
		return t.Bid
	}
	return t.Ask
}

// profit is the unrealized P/L of a position at the given mark, in account
// currency (quote currency is the account currency for XAU_USD/USD accounts).
func (e *Engine) profit(p broker.Position, mark float64) float64 {
	move := mark - p.EntryPrice
	if p.Side == broker.Short {
		move = p.EntryPrice - mark
	}
	return move * p.Volume * e.meta.ContractSize
}

func (e *Engine) closeLocked(p *broker.Position, closePrice float64, reason string) broker.CloseResult {
	pl := e.profit(*p, closePrice)
	e.balance += pl
	delete(e.positions, p.Ticket)

	closedAt := p.OpenedAt
	if e.hasTick {
		closedAt = e.tick.Time
	}

	e.journal.RecordTrade(journal.TradeRecord{
		Ticket:     p.Ticket,
		Instrument: p.Instrument,
		Side:       string(p.Side),
		Volume:     p.Volume,
		EntryPrice: p.EntryPrice,
		ExitPrice:  closePrice,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   closedAt,
		Profit:     pl,
		Reason:     reason,
	})
	e.recordEquityLocked(closedAt)

	return broker.CloseResult{Ticket: p.Ticket, Price: closePrice, Profit: pl}
}

func (e *Engine) recordEquityLocked(ts int64) {
	snap := e.snapshotLocked()
	e.journal.RecordEquity(journal.EquityPoint{
		Time:       ts,
		Balance:    snap.Balance,
		Equity:     snap.Equity,
		MarginUsed: snap.MarginUsed,
		FreeMargin: snap.FreeMargin,
		Profit:     snap.Profit,
	})
}

func (e *Engine) openSortedLocked() []*broker.Position {
	out := make([]*broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}
