package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"auric/broker"
	"auric/feed"
	"auric/journal"
	"auric/market"
	"auric/risk"
	"auric/sim"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a self-contained ledger demo on synthetic prices",
	Long: `Run a short offline session against the simulated ledger.

Shows the basic workflow of:
  1. Sampling the synthetic price feed
  2. Opening a position with stop loss and take profit
  3. Marking the ledger to market as prices move
  4. Watching the ledger auto-close on a trigger`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("=== Auric Ledger Demo ===")
	fmt.Println()

	source := feed.NewSynthetic("XAU_USD", 2650.0, 42)
	engine := sim.NewEngine("XAU_USD", "USD", 10_000, risk.Default(), journal.Nop{})

	engine.SetCloseListener(func(pos broker.Position, res broker.CloseResult, reason string) {
		fmt.Printf("  -> auto-closed %s at %.2f (%s), profit $%.2f\n", res.Ticket, res.Price, reason, res.Profit)
	})

	tick, err := source.LatestTick(ctx)
	if err != nil {
		return err
	}
	if err := engine.MarkToMarket(ctx, tick); err != nil {
		return err
	}
	fmt.Printf("Initial price - Bid: %.2f, Ask: %.2f\n", tick.Bid, tick.Ask)

	sl := tick.Ask - 10
	tp := tick.Ask + 15
	pos, err := engine.Open(ctx, broker.OrderRequest{
		Side:       broker.Long,
		Volume:     0.10,
		StopLoss:   &sl,
		TakeProfit: &tp,
	})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	fmt.Printf("Opened %s %s %.2f lots at %.2f (SL %.2f / TP %.2f)\n\n",
		pos.Ticket, pos.Side, pos.Volume, pos.EntryPrice, sl, tp)

	// Walk the price until a trigger fires or we give up.
	base := time.Now().Unix()
	for i := 1; i <= 200; i++ {
		tick = market.Tick{
			Instrument: "XAU_USD",
			Bid:        pos.EntryPrice + float64(i)*0.1 - 0.2,
			Ask:        pos.EntryPrice + float64(i)*0.1,
			Time:       base + int64(i),
		}
		if err := engine.MarkToMarket(ctx, tick); err != nil {
			return err
		}
		if len(engine.Positions(ctx)) == 0 {
			break
		}
		if i%50 == 0 {
			snap := engine.Snapshot(ctx)
			fmt.Printf("  tick %3d: bid %.2f, unrealized $%.2f\n", i, tick.Bid, snap.Profit)
		}
	}

	snap := engine.Snapshot(ctx)
	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Balance: $%.2f\n", snap.Balance)
	fmt.Printf("  Equity:  $%.2f\n", snap.Equity)
	fmt.Printf("  Open positions: %d\n", len(engine.Positions(ctx)))
	_ = source.Close()
	return nil
}
