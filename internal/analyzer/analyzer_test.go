package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grahamscreen/internal/models"
	"grahamscreen/internal/screen"
)

var errUnknownTicker = errors.New("unknown ticker")

// stubFetcher serves canned snapshots and records how many fetches ran.
type stubFetcher struct {
	mu        sync.Mutex
	snapshots map[string]*models.CompanySnapshot
	calls     int
}

func (f *stubFetcher) FetchSnapshot(ctx context.Context, ticker string) (*models.CompanySnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := f.snapshots[ticker]
	if !ok {
		return nil, errUnknownTicker
	}
	return snap, nil
}

func d(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

func testSnapshot(ticker string) *models.CompanySnapshot {
	snap := &models.CompanySnapshot{
		Ticker:             ticker,
		Name:               ticker + " Corp",
		Price:              d(30),
		MarketCap:          d(5e9),
		CurrentAssets:      d(200),
		CurrentLiabilities: d(100),
		BookValuePerShare:  d(20),
		FetchedAt:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 10; i++ {
		year := 2014 + i
		snap.AnnualEarnings = append(snap.AnnualEarnings, models.AnnualEarnings{
			FiscalYear: year,
			NetIncome:  d(1e9),
			EPS:        d(2.0 + 0.1*float64(i)),
		})
		snap.Dividends = append(snap.Dividends, models.DividendPayment{
			ExDate:   time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
			PerShare: d(0.25),
		})
	}
	return snap
}

func TestAnalyze(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{
		"ACME": testSnapshot("ACME"),
	}}
	a := New(f)

	an, err := a.Analyze(context.Background(), "ACME")
	require.NoError(t, err)

	assert.Equal(t, "ACME", an.Snapshot.Ticker)
	require.NotNil(t, an.Metrics.CurrentRatio)
	assert.Len(t, an.Defensive.Results, len(screen.DefensiveRuleNames))
	assert.True(t, an.Defensive.Qualifies)
	assert.Len(t, an.Quality.Results, len(screen.QualityRuleNames))
}

func TestAnalyzeFetchFailureAborts(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{}}
	a := New(f)

	an, err := a.Analyze(context.Background(), "NOPE")
	assert.Nil(t, an)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownTicker)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestAnalyzeMany(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{
		"AAA": testSnapshot("AAA"),
		"BBB": testSnapshot("BBB"),
		"DDD": testSnapshot("DDD"),
	}}
	a := New(f)

	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	results := a.AnalyzeMany(context.Background(), tickers, 3)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, tickers[i], r.Ticker, "input order preserved")
	}

	// One failed ticker does not block the others.
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, errUnknownTicker)
	assert.Nil(t, results[2].Analysis)
	assert.NoError(t, results[3].Err)
	require.NotNil(t, results[3].Analysis)
	assert.Equal(t, "DDD", results[3].Analysis.Snapshot.Ticker)
}

func TestAnalyzeManyZeroConcurrency(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{
		"AAA": testSnapshot("AAA"),
	}}
	a := New(f)

	results := a.AnalyzeMany(context.Background(), []string{"AAA"}, 0)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestAnalyzeManyCancelled(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{
		"AAA": testSnapshot("AAA"),
		"BBB": testSnapshot("BBB"),
	}}
	a := New(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := a.AnalyzeMany(ctx, []string{"AAA", "BBB"}, 1)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestCustomThresholdsPropagate(t *testing.T) {
	f := &stubFetcher{snapshots: map[string]*models.CompanySnapshot{
		"ACME": testSnapshot("ACME"),
	}}
	th := screen.DefaultThresholds()
	th.MinMarketCap = decimal.New(1, 10)
	a := NewWithThresholds(f, th)

	an, err := a.Analyze(context.Background(), "ACME")
	require.NoError(t, err)
	assert.False(t, an.Defensive.Qualifies)
	assert.Contains(t, an.Defensive.Causes, screen.RuleAdequateSize)
}
