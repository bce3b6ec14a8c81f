// Package analyzer ties the pipeline together: fetch a snapshot, derive
// metrics, evaluate the rule sets. Each ticker's run is self-contained, so
// multi-ticker analysis fans out with no shared mutable state.
package analyzer

import (
	"context"
	"fmt"
	"sync"

	"grahamscreen/internal/metrics"
	"grahamscreen/internal/models"
	"grahamscreen/internal/screen"
)

// Fetcher produces a company snapshot for a ticker. Satisfied by *fmp.Client.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, ticker string) (*models.CompanySnapshot, error)
}

// Analysis is the full outcome for one ticker.
type Analysis struct {
	Snapshot  *models.CompanySnapshot `json:"snapshot"`
	Metrics   models.DerivedMetrics   `json:"metrics"`
	Defensive screen.Report           `json:"defensive"`
	Quality   screen.Report           `json:"quality"`
}

// Analyzer runs the fetch-derive-evaluate pipeline.
type Analyzer struct {
	fetcher    Fetcher
	thresholds screen.Thresholds
}

// New creates an analyzer with Graham's default thresholds.
func New(f Fetcher) *Analyzer {
	return NewWithThresholds(f, screen.DefaultThresholds())
}

// NewWithThresholds creates an analyzer with custom screen thresholds.
func NewWithThresholds(f Fetcher, th screen.Thresholds) *Analyzer {
	return &Analyzer{fetcher: f, thresholds: th}
}

// Analyze fetches and evaluates one ticker. A fetch failure aborts the
// run; evaluation itself cannot fail, incomplete data surfaces as
// indeterminate criterion results instead.
func (a *Analyzer) Analyze(ctx context.Context, ticker string) (*Analysis, error) {
	snap, err := a.fetcher.FetchSnapshot(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", ticker, err)
	}

	dm := metrics.Derive(snap)
	return &Analysis{
		Snapshot:  snap,
		Metrics:   dm,
		Defensive: screen.EvaluateDefensive(snap, dm, a.thresholds),
		Quality:   screen.EvaluateQuality(snap),
	}, nil
}

// Result is one entry of a multi-ticker run. Exactly one of Analysis and
// Err is set.
type Result struct {
	Ticker   string    `json:"ticker"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Err      error     `json:"-"`
}

// AnalyzeMany analyzes tickers concurrently with at most concurrency
// in-flight pipelines. Results come back in input order; a failed ticker
// carries its error and never blocks the rest. Cancelling ctx abandons the
// remaining work.
func (a *Analyzer) AnalyzeMany(ctx context.Context, tickers []string, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(tickers))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				an, err := a.Analyze(ctx, tickers[i])
				results[i] = Result{Ticker: tickers[i], Analysis: an, Err: err}
			}
		}()
	}

	for i := range tickers {
		select {
		case <-ctx.Done():
			results[i] = Result{Ticker: tickers[i], Err: ctx.Err()}
			continue
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
