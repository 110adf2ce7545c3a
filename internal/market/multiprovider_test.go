package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	quote      Quote
	quoteErr   error
	bars       []Bar
	historyErr error

	quoteCalls   int
	historyCalls int
}

func (s *stubProvider) FetchQuote(context.Context, string) (Quote, error) {
	s.quoteCalls++
	return s.quote, s.quoteErr
}

func (s *stubProvider) FetchHistory(context.Context, string, time.Time, time.Time) ([]Bar, error) {
	s.historyCalls++
	return s.bars, s.historyErr
}

func TestMultiProviderFailsOver(t *testing.T) {
	down := &stubProvider{quoteErr: fmt.Errorf("%w: timeout", ErrUnavailable)}
	up := &stubProvider{quote: Quote{Symbol: "SPY", Price: 500, PrevClose: 495}}
	m := NewMultiProvider(down, up)

	q, err := m.FetchQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 500.0, q.Price)
	assert.Equal(t, 1, down.quoteCalls)
	assert.Equal(t, 1, up.quoteCalls)
}

func TestMultiProviderNotFoundShortCircuits(t *testing.T) {
	first := &stubProvider{quoteErr: fmt.Errorf("%w: ZZZZINVALID", ErrNotFound)}
	second := &stubProvider{quote: Quote{Symbol: "ZZZZINVALID", Price: 1}}
	m := NewMultiProvider(first, second)

	_, err := m.FetchQuote(context.Background(), "ZZZZINVALID")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, second.quoteCalls)
}

func TestMultiProviderAllDown(t *testing.T) {
	a := &stubProvider{quoteErr: fmt.Errorf("%w: a down", ErrUnavailable)}
	b := &stubProvider{quoteErr: fmt.Errorf("%w: b down", ErrUnavailable)}
	m := NewMultiProvider(a, b)

	_, err := m.FetchQuote(context.Background(), "SPY")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "b down")
}

func TestMultiProviderHistoryFailsOver(t *testing.T) {
	down := &stubProvider{historyErr: fmt.Errorf("%w: timeout", ErrUnavailable)}
	up := &stubProvider{bars: []Bar{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2}}}
	m := NewMultiProvider(down, up)

	bars, err := m.FetchHistory(context.Background(), "SPY", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, down.historyCalls)
}

func TestMultiProviderEmptySeriesIsAnAnswer(t *testing.T) {
	first := &stubProvider{bars: []Bar{}}
	second := &stubProvider{bars: []Bar{{Date: time.Now(), Open: 1, High: 1, Low: 1, Close: 1}}}
	m := NewMultiProvider(first, second)

	bars, err := m.FetchHistory(context.Background(), "ZZZZINVALID", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, 0, second.historyCalls)
}

func TestMultiProviderNoProviders(t *testing.T) {
	m := NewMultiProvider()
	_, err := m.FetchQuote(context.Background(), "SPY")
	assert.Error(t, err)
	_, err = m.FetchHistory(context.Background(), "SPY", time.Now().AddDate(-1, 0, 0), time.Now())
	assert.Error(t, err)
}
