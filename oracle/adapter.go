package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultTimeout = 8 * time.Second

// Completer produces raw model output for a prompt. Implementations must
// honor context cancellation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Adapter turns a Completer into a decision function with a hard timeout.
// Decide never fails: every failure mode collapses to a NO_ACTION decision
// carrying the failure description as its rationale.
type Adapter struct {
	completer Completer
	timeout   time.Duration
	history   *History
}

func NewAdapter(c Completer, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		completer: c,
		timeout:   timeout,
		history:   NewHistory(50),
	}
}

func (a *Adapter) History() *History { return a.history }

// Decide invokes the completer with the built prompt and parses its output.
// The call is structured as a cancelable unit: it returns no later than the
// configured timeout even if the completer misbehaves.
func (a *Adapter) Decide(ctx context.Context, mc Context) Decision {
	if a.completer == nil {
		return a.record(fallback("oracle not configured"), mc)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := a.completer.Complete(ctx, systemPrompt, BuildPrompt(mc))
		ch <- result{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return a.record(fallback(fmt.Sprintf("oracle timed out: %v", ctx.Err())), mc)
	case res := <-ch:
		if res.err != nil {
			return a.record(fallback(fmt.Sprintf("oracle error: %v", res.err)), mc)
		}
		raw = res.raw
	}

	dec, err := ParseDecision(raw)
	if err != nil {
		return a.record(fallback(fmt.Sprintf("malformed oracle output: %v", err)), mc)
	}
	return a.record(dec, mc)
}

func (a *Adapter) record(d Decision, mc Context) Decision {
	ts := mc.Tick.Time
	if ts == 0 {
		ts = time.Now().Unix()
	}
	a.history.Add(HistoryEntry{Time: ts, Action: d.Action, Confidence: d.Confidence})
	return d
}

func fallback(reason string) Decision {
	return Decision{
		Action:     NoAction,
		Confidence: 0.0,
		Rationale:  reason,
	}
}

// ParseDecision extracts the JSON core from possibly noisy model output
// (markdown fences, prose around the payload), validates required fields and
// defaults missing optional ones.
func ParseDecision(raw string) (Decision, error) {
	core, err := extractJSON(raw)
	if err != nil {
		return Decision{}, err
	}

	var payload struct {
		Action     string   `json:"action"`
		Reasoning  string   `json:"reasoning"`
		Confidence *float64 `json:"confidence"`
		StopLoss   *float64 `json:"sl"`
		TakeProfit *float64 `json:"tp"`
		Volume     *float64 `json:"volume"`
	}
	if err := json.Unmarshal([]byte(core), &payload); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}

	action, err := normalizeAction(payload.Action)
	if err != nil {
		return Decision{}, err
	}

	confidence := 0.5
	if payload.Confidence != nil {
		confidence = *payload.Confidence
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	rationale := payload.Reasoning
	if rationale == "" {
		rationale = "no rationale provided"
	}

	return Decision{
		Action:     action,
		Confidence: confidence,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
		Volume:     payload.Volume,
		Rationale:  rationale,
	}, nil
}

func normalizeAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	case "CLOSE":
		return CloseAll, nil
	case "HOLD":
		return Hold, nil
	case "NO_ACTION", "DO_NOTHING", "":
		return NoAction, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// extractJSON locates the outermost JSON object in the text, tolerating
// fences and stray delimiters around it.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in output")
	}
	return s[start : end+1], nil
}
