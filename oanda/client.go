// Package oanda is a small REST client for OANDA v20 instrument candles
// and the market.Provider built on it.
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/scantrade/market"
)

const (
	PracticeURL = "https://api-fxpractice.oanda.com"
	LiveURL     = "https://api-fxtrade.oanda.com"
)

// MaxCount is the most candles one request may ask for.
const MaxCount = 5000

// BaseURL maps an environment name to its REST endpoint.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "practice", "demo":
		return PracticeURL, nil
	case "live", "trade":
		return LiveURL, nil
	}
	return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
}

type Granularity string

const (
	S5  Granularity = "S5"
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
	W   Granularity = "W"
	M   Granularity = "M"
)

type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for baseURL. An empty baseURL means the
// practice environment.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = PracticeURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type CandlesRequest struct {
	Instrument  string // e.g. "EUR_USD", "SPX500_USD"
	Price       PriceComponent
	Granularity Granularity
	Count       int // at most MaxCount; ignored when From is set
	From        *time.Time
	To          *time.Time

	// IncludeIncomplete keeps the still-forming last candle.
	IncludeIncomplete bool
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
	Mid      candleData `json:"mid,omitempty"`
	Bid      candleData `json:"bid,omitempty"`
	Ask      candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches candles oldest first. Incomplete candles are dropped
// unless the request asks for them.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) (market.Series, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = S5
	}

	params := url.Values{}
	params.Set("price", string(req.Price))
	params.Set("granularity", string(req.Granularity))
	switch {
	case req.From != nil:
		params.Set("from", req.From.UTC().Format(time.RFC3339))
		if req.To != nil {
			params.Set("to", req.To.UTC().Format(time.RFC3339))
		}
	case req.Count > MaxCount:
		return nil, fmt.Errorf("count cannot exceed %d", MaxCount)
	case req.Count > 0:
		params.Set("count", strconv.Itoa(req.Count))
	}

	u := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.baseURL, url.PathEscape(req.Instrument), params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make(market.Series, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		if !ac.Complete && !req.IncludeIncomplete {
			continue
		}
		cd, err := ac.toCandle(req.Price)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, nil
}

func (ac apiCandle) toCandle(pc PriceComponent) (market.Candle, error) {
	t, err := time.Parse(time.RFC3339Nano, ac.Time)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parse time %s: %w", ac.Time, err)
	}

	d := ac.Mid
	switch pc {
	case BidPrice:
		d = ac.Bid
	case AskPrice:
		d = ac.Ask
	}

	var v [4]float64
	for i, s := range []string{d.O, d.H, d.L, d.C} {
		if v[i], err = strconv.ParseFloat(s, 64); err != nil {
			return market.Candle{}, fmt.Errorf("parse %q at %s: %w", s, ac.Time, err)
		}
	}
	return market.Candle{
		Time:   t.UTC(),
		Open:   v[0],
		High:   v[1],
		Low:    v[2],
		Close:  v[3],
		Volume: float64(ac.Volume),
	}, nil
}
