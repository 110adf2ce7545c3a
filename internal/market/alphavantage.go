package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AlphaVantageProvider is the API-key gated fallback provider. Alpha Vantage
// has no analyst-target field, so quotes from it always carry a nil target.
type AlphaVantageProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAlphaVantageProvider(apiKey string, timeout time.Duration) *AlphaVantageProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlphaVantageProvider{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Alpha Vantage types every numeric field as a string.
type alphaQuoteResp struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		PreviousClose string `json:"08. previous close"`
	} `json:"Global Quote"`
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
}

type alphaSeriesResp struct {
	Series map[string]struct {
		Open  string `json:"1. open"`
		High  string `json:"2. high"`
		Low   string `json:"3. low"`
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
}

func (p *AlphaVantageProvider) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	var payload alphaQuoteResp
	if err := p.get(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	}, &payload); err != nil {
		return Quote{}, err
	}
	if payload.ErrorMessage != "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if payload.Note != "" {
		return Quote{}, fmt.Errorf("%w: alphavantage rate limited", ErrUnavailable)
	}
	if payload.GlobalQuote.Symbol == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	price, err := strconv.ParseFloat(payload.GlobalQuote.Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: parse price: %v", ErrUnavailable, err)
	}
	prevClose, err := strconv.ParseFloat(payload.GlobalQuote.PreviousClose, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: parse previous close: %v", ErrUnavailable, err)
	}
	if price <= 0 {
		return Quote{}, fmt.Errorf("%w: no usable price for %s", ErrNotFound, symbol)
	}
	return Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		PrevClose: prevClose,
		FetchedAt: time.Now(),
	}, nil
}

func (p *AlphaVantageProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid history window: start %s >= end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	var payload alphaSeriesResp
	if err := p.get(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {"full"},
	}, &payload); err != nil {
		return nil, err
	}
	if payload.ErrorMessage != "" {
		return []Bar{}, nil
	}
	if payload.Note != "" {
		return nil, fmt.Errorf("%w: alphavantage rate limited", ErrUnavailable)
	}

	bars := make([]Bar, 0, len(payload.Series))
	for dateStr, row := range payload.Series {
		day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			continue
		}
		if day.Before(start) || !day.Before(end) {
			continue
		}
		open, err1 := strconv.ParseFloat(row.Open, 64)
		high, err2 := strconv.ParseFloat(row.High, 64)
		low, err3 := strconv.ParseFloat(row.Low, 64)
		closeP, err4 := strconv.ParseFloat(row.Close, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		bars = append(bars, Bar{Date: day, Open: open, High: high, Low: low, Close: closeP})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (p *AlphaVantageProvider) get(ctx context.Context, params url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: alphavantage api key not configured", ErrUnavailable)
	}
	params.Set("apikey", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request alphavantage: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: alphavantage status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read alphavantage: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode alphavantage: %v", ErrUnavailable, err)
	}
	return nil
}
