package fmp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"grahamscreen/internal/models"
)

const (
	// LookbackYears is the annual history window fetched per ticker.
	LookbackYears = 10
	// lookbackQuarters covers the same span for quarterly statements.
	lookbackQuarters = LookbackYears * 4
)

// FetchSnapshot assembles a CompanySnapshot for one ticker. Each endpoint is
// fetched once; any fetch failure aborts the whole snapshot and is returned
// to the caller. Histories are reordered oldest first.
func (c *Client) FetchSnapshot(ctx context.Context, ticker string) (*models.CompanySnapshot, error) {
	profile, err := c.GetProfile(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	balance, err := c.GetBalanceSheets(ctx, ticker, 1)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	annual, err := c.GetIncomeStatements(ctx, ticker, "annual", LookbackYears)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	quarterly, err := c.GetIncomeStatements(ctx, ticker, "quarter", lookbackQuarters)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	dividends, err := c.GetDividends(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	keyMetrics, err := c.GetKeyMetrics(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ticker, err)
	}

	snap := &models.CompanySnapshot{
		Ticker:            ticker,
		Name:              profile.CompanyName,
		Sector:            profile.Sector,
		Industry:          profile.Industry,
		Price:             profile.Price,
		MarketCap:         profile.MarketCap,
		BookValuePerShare: keyMetrics.BookValuePerShare,
		AnnualEarnings:    annualEarnings(annual),
		Dividends:         dividendPayments(dividends),
		QuarterlyIncome:   quarterlyIncome(quarterly),
		FetchedAt:         time.Now().UTC(),
	}

	bs := balance[0]
	snap.CurrentAssets = bs.TotalCurrentAssets
	snap.CurrentLiabilities = bs.TotalCurrentLiabilities
	snap.LongTermDebt = bs.LongTermDebt

	return snap, nil
}

// annualEarnings converts newest-first annual statements into an
// oldest-first earnings history.
func annualEarnings(rows []IncomeStatementRow) []models.AnnualEarnings {
	out := make([]models.AnnualEarnings, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		out = append(out, models.AnnualEarnings{
			FiscalYear: fiscalYear(row.CalendarYear, row.Date),
			NetIncome:  row.NetIncome,
			EPS:        row.EPS,
		})
	}
	return out
}

// fiscalYear resolves the fiscal year from calendarYear, falling back to
// the statement date. Returns 0 when neither parses.
func fiscalYear(calendarYear, date string) int {
	if y, err := strconv.Atoi(calendarYear); err == nil {
		return y
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	return 0
}

func dividendPayments(rows []DividendRow) []models.DividendPayment {
	out := make([]models.DividendPayment, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		t, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		out = append(out, models.DividendPayment{
			ExDate:   t,
			PerShare: row.Dividend,
		})
	}
	return out
}

func quarterlyIncome(rows []IncomeStatementRow) []models.IncomeStatement {
	out := make([]models.IncomeStatement, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		out = append(out, models.IncomeStatement{
			CalendarYear:      row.CalendarYear,
			Period:            row.Period,
			Revenue:           row.Revenue,
			GrossProfit:       row.GrossProfit,
			GrossProfitRatio:  row.GrossProfitRatio,
			SGAExpenses:       row.SGAExpenses,
			RDExpenses:        row.RDExpenses,
			Depreciation:      row.Depreciation,
			OperatingIncome:   row.OperatingIncome,
			OperatingExpenses: row.OperatingExpenses,
			InterestExpense:   row.InterestExpense,
			NetIncome:         row.NetIncome,
			NetIncomeRatio:    row.NetIncomeRatio,
			EPS:               row.EPS,
		})
	}
	return out
}
