package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MultiProvider tries each provider in order until one answers. NotFound is
// authoritative and is returned immediately; only availability failures fall
// through to the next provider.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	if len(m.providers) == 0 {
		return Quote{}, fmt.Errorf("no market providers configured")
	}
	var lastErr error
	for _, p := range m.providers {
		q, err := p.FetchQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrNotFound) {
			return Quote{}, err
		}
		lastErr = err
	}
	return Quote{}, lastErr
}

func (m *MultiProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no market providers configured")
	}
	var lastErr error
	for _, p := range m.providers {
		bars, err := p.FetchHistory(ctx, symbol, start, end)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
