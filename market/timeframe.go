package market

import (
	"fmt"
	"time"
)

// Timeframe is a named candle granularity (MT-style labels).
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

var timeframeSeconds = map[Timeframe]int64{
	M1:  60,
	M5:  5 * 60,
	M15: 15 * 60,
	M30: 30 * 60,
	H1:  60 * 60,
	H4:  4 * 60 * 60,
	D1:  24 * 60 * 60,
}

// Seconds returns the bucket width in seconds, or 0 for an unknown timeframe.
func (tf Timeframe) Seconds() int64 {
	return timeframeSeconds[tf]
}

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Seconds()) * time.Second
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeSeconds[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe: %q", s)
	}
	return tf, nil
}
