package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// YahooProvider reads quotes and daily bars from the Yahoo Finance chart API
// and the analyst mean target from the quoteSummary API.
type YahooProvider struct {
	chartURL   string
	summaryURL string
	client     *http.Client
}

func NewYahooProvider(timeout time.Duration) *YahooProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &YahooProvider{
		chartURL:   "https://query1.finance.yahoo.com/v8/finance/chart",
		summaryURL: "https://query1.finance.yahoo.com/v10/finance/quoteSummary",
		client:     &http.Client{Timeout: timeout},
	}
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData struct {
				TargetMeanPrice struct {
					Raw *float64 `json:"raw"`
				} `json:"targetMeanPrice"`
			} `json:"financialData"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	chart, err := p.getChart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return Quote{}, err
	}
	if len(chart.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return Quote{}, fmt.Errorf("%w: no usable price for %s", ErrNotFound, symbol)
	}
	prevClose := meta.PreviousClose
	if prevClose <= 0 {
		prevClose = meta.ChartPreviousClose
	}
	q := Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     meta.RegularMarketPrice,
		PrevClose: prevClose,
		FetchedAt: time.Now(),
	}
	// Not every instrument has analyst coverage, and the quoteSummary module
	// is flakier than the chart endpoint. Either way the target is simply
	// absent; the quote itself is still good.
	q.AnalystTarget = p.fetchTarget(ctx, symbol)
	return q, nil
}

func (p *YahooProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid history window: start %s >= end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	chart, err := p.getChart(ctx, symbol, url.Values{
		"interval": {"1d"},
		"period1":  {fmt.Sprintf("%d", start.Unix())},
		"period2":  {fmt.Sprintf("%d", end.Unix())},
	})
	if err != nil {
		// An unknown symbol is "nothing to show", not a failure.
		if errors.Is(err, ErrNotFound) {
			return []Bar{}, nil
		}
		return nil, err
	}
	if len(chart.Chart.Result) == 0 {
		return []Bar{}, nil
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []Bar{}, nil
	}
	ohlc := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(ohlc.Open) || i >= len(ohlc.High) || i >= len(ohlc.Low) || i >= len(ohlc.Close) {
			break
		}
		// Null entries are holidays or half-days the exchange never traded.
		if ohlc.Open[i] == nil || ohlc.High[i] == nil || ohlc.Low[i] == nil || ohlc.Close[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		if day.Before(start) || !day.Before(end) {
			continue
		}
		bars = append(bars, Bar{
			Date:  day,
			Open:  *ohlc.Open[i],
			High:  *ohlc.High[i],
			Low:   *ohlc.Low[i],
			Close: *ohlc.Close[i],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return dedupeBars(bars), nil
}

// dedupeBars drops repeated sessions, keeping the last bar seen for a date.
// Yahoo occasionally emits the live session twice during trading hours.
func dedupeBars(bars []Bar) []Bar {
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Date.Equal(b.Date) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func (p *YahooProvider) getChart(ctx context.Context, symbol string, params url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/%s?%s", p.chartURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	var chart yahooChart
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := p.client.Do(req)
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("%w: request yahoo: %v", ErrUnavailable, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("%w: read yahoo: %v", ErrUnavailable, err)
		}
		// Yahoo answers 404 with a chart.error payload for unknown symbols.
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: yahoo status %d", ErrUnavailable, resp.StatusCode)
		}
		if err := json.Unmarshal(body, &chart); err != nil {
			return nil, fmt.Errorf("%w: decode yahoo: %v", ErrUnavailable, err)
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: request yahoo: %v", ErrUnavailable, lastErr)
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("%w: yahoo api error: %s", ErrUnavailable, chart.Chart.Error.Description)
	}
	return &chart, nil
}

func (p *YahooProvider) fetchTarget(ctx context.Context, symbol string) *float64 {
	u := fmt.Sprintf("%s/%s?modules=financialData", p.summaryURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var summary yahooSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil
	}
	raw := summary.QuoteSummary.Result[0].FinancialData.TargetMeanPrice.Raw
	if raw == nil || *raw <= 0 {
		return nil
	}
	return raw
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "reset by peer") {
		return true
	}
	return false
}
