package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"auric/market"
)

const (
	// PracticeURL is OANDA's practice/demo environment.
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is OANDA's live trading environment.
	LiveURL = "https://api-fxtrade.oanda.com"
)

var granularities = map[market.Timeframe]string{
	market.M1:  "M1",
	market.M5:  "M5",
	market.M15: "M15",
	market.M30: "M30",
	market.H1:  "H1",
	market.H4:  "H4",
	market.D1:  "D",
}

// OandaConfig configures the live REST adapter.
type OandaConfig struct {
	Token     string
	AccountID string
	Practice  bool
	// BaseURL overrides the environment URL; used by tests.
	BaseURL string
	// RPS caps REST polling; OANDA tolerates well above the default 2/s.
	RPS float64
}

// Oanda polls the OANDA v3 REST API for candles and pricing. It upholds the
// same ordering contract as the synthetic source: only complete candles are
// returned, most recent last, strictly increasing timestamps.
type Oanda struct {
	symbol     string
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	connected  atomic.Bool
}

// NewOanda builds the adapter and probes connectivity with a one-candle
// request. The probe error is returned so strict-mode callers can refuse to
// start; non-strict callers may ignore it and fall back to synthetic data.
func NewOanda(ctx context.Context, symbol string, cfg OandaConfig) (*Oanda, error) {
	baseURL := LiveURL
	if cfg.Practice {
		baseURL = PracticeURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}

	o := &Oanda{
		symbol:    symbol,
		baseURL:   baseURL,
		token:     cfg.Token,
		accountID: cfg.AccountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}

	if _, err := o.RecentCandles(ctx, market.M1, 1); err != nil {
		return o, fmt.Errorf("oanda probe: %w", err)
	}
	return o, nil
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Candles []apiCandle `json:"candles"`
}

func (o *Oanda) RecentCandles(ctx context.Context, tf market.Timeframe, count int) ([]market.Candle, error) {
	gran, ok := granularities[tf]
	if !ok {
		return nil, fmt.Errorf("oanda: unsupported timeframe %q", tf)
	}
	if count <= 0 || count > 5000 {
		return nil, fmt.Errorf("oanda: count must be in 1..5000, got %d", count)
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", gran)
	// Request one extra so dropping the in-progress candle still fills count.
	params.Set("count", strconv.Itoa(count+1))

	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles", o.symbol)
	if err := o.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse time %q: %w", ac.Time, err)
		}
		open, err1 := strconv.ParseFloat(ac.Mid.O, 64)
		high, err2 := strconv.ParseFloat(ac.Mid.H, 64)
		low, err3 := strconv.ParseFloat(ac.Mid.L, 64)
		cls, err4 := strconv.ParseFloat(ac.Mid.C, 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, fmt.Errorf("oanda: parse candle prices: %w", err)
			}
		}
		candles = append(candles, market.Candle{
			Time:   t.Unix(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: float64(ac.Volume),
		})
	}

	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Time       string `json:"time"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

func (o *Oanda) LatestTick(ctx context.Context) (market.Tick, error) {
	if o.accountID == "" {
		return market.Tick{}, fmt.Errorf("oanda: pricing requires an account id")
	}

	params := url.Values{}
	params.Set("instruments", o.symbol)

	var resp pricingResponse
	path := fmt.Sprintf("/v3/accounts/%s/pricing", o.accountID)
	if err := o.get(ctx, path, params, &resp); err != nil {
		return market.Tick{}, err
	}

	for _, p := range resp.Prices {
		if p.Instrument != o.symbol || len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid, err1 := strconv.ParseFloat(p.Bids[0].Price, 64)
		ask, err2 := strconv.ParseFloat(p.Asks[0].Price, 64)
		if err1 != nil || err2 != nil {
			return market.Tick{}, fmt.Errorf("oanda: bad price in pricing response")
		}
		ts := time.Now().Unix()
		if t, err := time.Parse(time.RFC3339, p.Time); err == nil {
			ts = t.Unix()
		}
		return market.Tick{Instrument: o.symbol, Bid: bid, Ask: ask, Time: ts}, nil
	}
	return market.Tick{}, fmt.Errorf("%w: no price for %s", ErrNoTick, o.symbol)
}

func (o *Oanda) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := fmt.Sprintf("%s%s?%s", o.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("oanda: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.token)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.connected.Store(false)
		return fmt.Errorf("oanda: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.connected.Store(false)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("oanda: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oanda: decode response: %w", err)
	}
	o.connected.Store(true)
	return nil
}

func (o *Oanda) Connected() bool { return o.connected.Load() }

func (o *Oanda) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
