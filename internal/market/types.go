package market

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means the symbol does not resolve to any instrument upstream.
var ErrNotFound = errors.New("symbol not found")

// ErrUnavailable means the upstream provider could not be reached or
// returned something unusable (timeout, non-2xx, malformed body).
var ErrUnavailable = errors.New("market data unavailable")

// Quote is a point-in-time price snapshot for one symbol. AnalystTarget is
// nil when the instrument has no analyst coverage; that is a normal outcome,
// not an error.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PrevClose     float64   `json:"prev_close"`
	AnalystTarget *float64  `json:"analyst_target,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Bar is one trading session of OHLC data. Date is truncated to the day in UTC.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Provider fetches quotes and daily history for one symbol at a time.
//
// FetchQuote fails with ErrNotFound for unknown symbols. FetchHistory returns
// an empty series for unknown symbols, matching the upstream "no data" signal;
// it only fails when the provider itself is unreachable or broken.
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}
