package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"auric/broker"
	"auric/hub"
)

// ManualTrade executes a command-style trade request against the ledger and
// broadcasts the outcome. It runs concurrently with the control loop,
// synchronized only through the ledger's lock.
func (l *Loop) ManualTrade(ctx context.Context, action string, volume float64, sl, tp *float64, ticket string) broker.TradeResult {
	var res broker.TradeResult

	switch strings.ToLower(action) {
	case "buy":
		res = l.open(ctx, broker.Long, volume, sl, tp)
	case "sell":
		res = l.open(ctx, broker.Short, volume, sl, tp)
	case "close":
		if ticket != "" {
			res = l.close(ctx, ticket)
		} else {
			results := l.closeAll(ctx)
			if len(results) == 0 {
				res = broker.TradeResult{Success: false, Action: "close", Message: "no open positions"}
			} else {
				// Summarize multi-close into the last result; each close was
				// journaled individually.
				res = results[len(results)-1]
			}
		}
	default:
		res = broker.TradeResult{Success: false, Message: fmt.Sprintf("unknown action %q", action)}
	}

	l.events.Broadcast(hub.TradeEvent, res)
	return res
}

func (l *Loop) open(ctx context.Context, side broker.Side, volume float64, sl, tp *float64) broker.TradeResult {
	pos, err := l.ledger.Open(ctx, broker.OrderRequest{
		Side:       side,
		Volume:     volume,
		StopLoss:   sl,
		TakeProfit: tp,
	})
	if err != nil {
		l.log.WithError(err).WithField("side", side).Info("order rejected")
		return broker.TradeResult{Success: false, Action: string(side), Message: failureMessage(err)}
	}

	l.log.WithFields(map[string]interface{}{
		"ticket": pos.Ticket,
		"side":   pos.Side,
		"volume": pos.Volume,
		"price":  pos.EntryPrice,
	}).Info("position opened")

	return broker.TradeResult{
		Success: true,
		Action:  string(side),
		Ticket:  pos.Ticket,
		Price:   pos.EntryPrice,
	}
}

func (l *Loop) close(ctx context.Context, ticket string) broker.TradeResult {
	res, err := l.ledger.Close(ctx, ticket)
	if err != nil {
		l.log.WithError(err).WithField("ticket", ticket).Info("close rejected")
		return broker.TradeResult{Success: false, Action: "close", Ticket: ticket, Message: failureMessage(err)}
	}

	l.log.WithFields(map[string]interface{}{
		"ticket": res.Ticket,
		"price":  res.Price,
		"profit": res.Profit,
	}).Info("position closed")

	return broker.TradeResult{
		Success: true,
		Action:  "close",
		Ticket:  res.Ticket,
		Price:   res.Price,
		Profit:  res.Profit,
	}
}

func (l *Loop) closeAll(ctx context.Context) []broker.TradeResult {
	results, err := l.ledger.CloseAll(ctx)
	if err != nil {
		return []broker.TradeResult{{Success: false, Action: "close", Message: failureMessage(err)}}
	}

	out := make([]broker.TradeResult, 0, len(results))
	for _, res := range results {
		l.log.WithFields(map[string]interface{}{
			"ticket": res.Ticket,
			"profit": res.Profit,
		}).Info("position closed")
		out = append(out, broker.TradeResult{
			Success: true,
			Action:  "close",
			Ticket:  res.Ticket,
			Price:   res.Price,
			Profit:  res.Profit,
		})
	}
	return out
}

// failureMessage keeps user-visible messages stable for known failure
// categories while passing through the detail.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, broker.ErrRejectedByPolicy),
		errors.Is(err, broker.ErrNoPrice),
		errors.Is(err, broker.ErrNotFound):
		return err.Error()
	default:
		return fmt.Sprintf("ledger error: %v", err)
	}
}
