package oracle

import (
	"fmt"
	"strings"
	"time"

	"auric/indicators"
	"auric/market"
)

const systemPrompt = `You are an autonomous trading agent for a single gold (XAU/USD) account.

Rules:
1. Risk management first: never risk more than 2% of balance per trade.
2. Stop loss and take profit are mandatory on every entry. Take profit must be
   at least 1.5x the stop distance.
3. One position at a time. With a position open you may CLOSE or HOLD.
4. Only trade with confidence >= 0.7; below that, HOLD or NO_ACTION.

Respond with ONLY a JSON object:
{
  "action": "BUY" | "SELL" | "CLOSE" | "HOLD" | "NO_ACTION",
  "reasoning": "why, referencing levels and structure you see",
  "confidence": 0.0 to 1.0,
  "sl": null or stop loss price,
  "tp": null or take profit price,
  "volume": null or lot size
}`

// BuildPrompt renders the market context the way a human analyst would read
// it: candle table, account state, open positions, recent decisions.
func BuildPrompt(mc Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Market State — %s\n\n", time.Unix(mc.Tick.Time, 0).UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "### Latest Tick\nBid: %.2f | Ask: %.2f\n\n", mc.Tick.Bid, mc.Tick.Ask)

	b.WriteString("### Recent Candles (most recent last)\nTime | Open | High | Low | Close | Volume\n")
	candles := mc.Candles
	if len(candles) > 20 {
		candles = candles[len(candles)-20:]
	}
	for _, c := range candles {
		fmt.Fprintf(&b, "%s | %.2f | %.2f | %.2f | %.2f | %.0f\n",
			time.Unix(c.Time, 0).UTC().Format("15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	if section := technicalSummary(mc.Candles); section != "" {
		b.WriteString("\n### Technical Indicators\n")
		b.WriteString(section)
	}

	fmt.Fprintf(&b, "\n### Account\nBalance: $%.2f\nEquity: $%.2f\nFree Margin: $%.2f\nOpen P&L: $%.2f\n",
		mc.Account.Balance, mc.Account.Equity, mc.Account.FreeMargin, mc.Account.Profit)

	b.WriteString("\n### Open Positions\n")
	if len(mc.Positions) == 0 {
		b.WriteString("No open positions.\n")
	}
	for _, p := range mc.Positions {
		fmt.Fprintf(&b, "Ticket %s: %s %.2f lots @ %.2f -> %.2f | P&L: $%.2f | SL: %s | TP: %s\n",
			p.Ticket, strings.ToUpper(string(p.Side)), p.Volume, p.EntryPrice, p.Price, p.Profit,
			fmtLevel(p.StopLoss), fmtLevel(p.TakeProfit))
	}

	b.WriteString("\n### Recent Decisions\n")
	if len(mc.History) == 0 {
		b.WriteString("No previous decisions.\n")
	}
	for _, h := range mc.History {
		fmt.Fprintf(&b, "%s: %s (conf %.0f%%)\n",
			time.Unix(h.Time, 0).UTC().Format("15:04:05"), h.Action, h.Confidence*100)
	}

	b.WriteString("\nAnalyze the market and make your decision now.")
	return b.String()
}

// technicalSummary renders whichever indicators have enough history; with a
// short candle window it degrades to fewer lines rather than failing.
func technicalSummary(candles []market.Candle) string {
	var b strings.Builder

	if v, err := indicators.SMA(candles, 20); err == nil {
		fmt.Fprintf(&b, "SMA(20): %.2f\n", v)
	}
	if v, err := indicators.EMA(candles, 20); err == nil {
		fmt.Fprintf(&b, "EMA(20): %.2f\n", v)
	}
	if v, err := indicators.RSI(candles, 14); err == nil {
		fmt.Fprintf(&b, "RSI(14): %.1f\n", v)
	}
	if v, err := indicators.ATR(candles, 14); err == nil {
		fmt.Fprintf(&b, "ATR(14): %.2f\n", v)
	}
	return b.String()
}

func fmtLevel(p *float64) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *p)
}
