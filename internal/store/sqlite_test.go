package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func target(v float64) *float64 { return &v }

func TestInsertAndQueryQuotes(t *testing.T) {
	st := openTestStore(t)
	now := time.Now().Unix()

	require.NoError(t, st.InsertQuote(QuoteRecord{
		Symbol: "SPY", Price: 498.00, PrevClose: 495.00, FetchedAt: now - 60,
	}))
	require.NoError(t, st.InsertQuote(QuoteRecord{
		Symbol: "SPY", Price: 500.25, PrevClose: 495.50,
		AnalystTarget: target(540.75), FetchedAt: now,
	}))
	require.NoError(t, st.InsertQuote(QuoteRecord{
		Symbol: "QQQ", Price: 430.00, PrevClose: 428.00, FetchedAt: now,
	}))

	items, err := st.RecentQuotes("SPY", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest first.
	assert.Equal(t, 500.25, items[0].Price)
	require.NotNil(t, items[0].AnalystTarget)
	assert.Equal(t, 540.75, *items[0].AnalystTarget)
	assert.Equal(t, now, items[0].FetchedAt)
	assert.NotEmpty(t, items[0].CreatedAt)

	// The older row had no analyst coverage, and that survives the round trip.
	assert.Equal(t, 498.00, items[1].Price)
	assert.Nil(t, items[1].AnalystTarget)
}

func TestRecentQuotesPaging(t *testing.T) {
	st := openTestStore(t)
	base := time.Now().Unix()
	for i := 0; i < 5; i++ {
		require.NoError(t, st.InsertQuote(QuoteRecord{
			Symbol: "SPY", Price: float64(100 + i), PrevClose: 99, FetchedAt: base + int64(i),
		}))
	}

	page, err := st.RecentQuotes("SPY", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 104.0, page[0].Price)

	page, err = st.RecentQuotes("SPY", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 102.0, page[0].Price)
}

func TestRecentQuotesUnknownSymbol(t *testing.T) {
	st := openTestStore(t)
	items, err := st.RecentQuotes("NOPE", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNilStoreIsSafe(t *testing.T) {
	var st *Store
	assert.NoError(t, st.InsertQuote(QuoteRecord{Symbol: "SPY"}))
	assert.NoError(t, st.Close())
	_, err := st.RecentQuotes("SPY", 10, 0)
	assert.Error(t, err)
}
