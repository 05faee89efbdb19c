package risk

import (
	"fmt"
	"strings"
)

type Violation struct {
	Code string
	Msg  string
}

// Verdict is the structured result of evaluating an Intent against a Policy.
// A rejected intent never reaches the ledger; a clamped take-profit is
// reported explicitly rather than silently accepted.
type Verdict struct {
	Allowed    bool
	Violations []Violation

	// Volume is the effective volume after defaulting.
	Volume float64
	// TakeProfit is the effective take-profit after clamping to the minimum
	// reward-to-risk distance. Nil when the intent carried none.
	TakeProfit *float64
	// Clamped is set when TakeProfit differs from the requested level.
	Clamped bool
}

func (v *Verdict) add(code, msg string) {
	v.Violations = append(v.Violations, Violation{Code: code, Msg: msg})
	v.Allowed = false
}

// Reason joins violation messages into one human-readable string.
func (v Verdict) Reason() string {
	if len(v.Violations) == 0 {
		return ""
	}
	msgs := make([]string, len(v.Violations))
	for i, viol := range v.Violations {
		msgs[i] = viol.Msg
	}
	return strings.Join(msgs, "; ")
}

// Evaluate applies the policy to a proposed order. openPositions is the
// current number of open positions on the instrument.
func (p Policy) Evaluate(intent Intent, openPositions int) Verdict {
	v := Verdict{Allowed: true, Volume: intent.Volume, TakeProfit: intent.TakeProfit}

	if intent.Entry <= 0 {
		v.add("NO_ENTRY", "entry price must be positive")
		return v
	}

	if openPositions >= p.MaxOpenPositions {
		v.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", openPositions, p.MaxOpenPositions))
	}

	if v.Volume <= 0 {
		v.Volume = p.DefaultVolume
	}
	if p.MaxVolume > 0 && v.Volume > p.MaxVolume {
		v.add("VOLUME_TOO_LARGE",
			fmt.Sprintf("volume %.2f exceeds max %.2f", v.Volume, p.MaxVolume))
	}

	var stopDist float64
	if intent.StopLoss != nil {
		stop := *intent.StopLoss
		if intent.Long && stop >= intent.Entry || !intent.Long && stop <= intent.Entry {
			v.add("STOP_WRONG_SIDE",
				fmt.Sprintf("stop %.2f on wrong side of entry %.2f", stop, intent.Entry))
			return v
		}
		stopDist = abs(intent.Entry - stop)
		if stopDist < p.MinStopDistance {
			v.add("STOP_TOO_CLOSE",
				fmt.Sprintf("stop distance %.2f below minimum %.2f", stopDist, p.MinStopDistance))
		}
	}

	if intent.TakeProfit != nil {
		take := *intent.TakeProfit
		if intent.Long && take <= intent.Entry || !intent.Long && take >= intent.Entry {
			v.add("TAKE_WRONG_SIDE",
				fmt.Sprintf("take-profit %.2f on wrong side of entry %.2f", take, intent.Entry))
			return v
		}

		// Reward-to-risk floor: push the take-profit out to MinRR * stop
		// distance when it lands closer.
		if intent.StopLoss != nil && stopDist > 0 {
			minDist := p.MinRR * stopDist
			if abs(take-intent.Entry) < minDist {
				clamped := intent.Entry + minDist
				if !intent.Long {
					clamped = intent.Entry - minDist
				}
				v.TakeProfit = &clamped
				v.Clamped = true
			}
		}
	}

	return v
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
