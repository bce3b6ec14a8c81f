package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanySnapshot holds everything fetched for one ticker in a single
// analysis run. It is assembled once by the fmp client and never mutated
// afterwards; nil pointer fields mean the API did not report the value.
type CompanySnapshot struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`

	Price              *decimal.Decimal `json:"price"`
	MarketCap          *decimal.Decimal `json:"market_cap"`
	CurrentAssets      *decimal.Decimal `json:"current_assets"`
	CurrentLiabilities *decimal.Decimal `json:"current_liabilities"`
	LongTermDebt       *decimal.Decimal `json:"long_term_debt"`
	BookValuePerShare  *decimal.Decimal `json:"book_value_per_share"`

	// Annual history, oldest first. Typically ten fiscal years.
	AnnualEarnings []AnnualEarnings `json:"annual_earnings"`

	// Dividend payments, oldest first.
	Dividends []DividendPayment `json:"dividends"`

	// Quarterly income statements, oldest first. Used by the quality
	// filters, not by the defensive rules.
	QuarterlyIncome []IncomeStatement `json:"quarterly_income,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// AnnualEarnings is one fiscal year of the earnings history.
type AnnualEarnings struct {
	FiscalYear int              `json:"fiscal_year"`
	NetIncome  *decimal.Decimal `json:"net_income"`
	EPS        *decimal.Decimal `json:"eps"`
}

// DividendPayment is a single historical dividend.
type DividendPayment struct {
	ExDate   time.Time        `json:"ex_date"`
	PerShare *decimal.Decimal `json:"per_share"`
}

// IncomeStatement is one quarterly income statement row from the API.
type IncomeStatement struct {
	CalendarYear string `json:"calendar_year"`
	Period       string `json:"period"` // Q1..Q4

	Revenue           *decimal.Decimal `json:"revenue"`
	GrossProfit       *decimal.Decimal `json:"gross_profit"`
	GrossProfitRatio  *decimal.Decimal `json:"gross_profit_ratio"`
	SGAExpenses       *decimal.Decimal `json:"sga_expenses"`
	RDExpenses        *decimal.Decimal `json:"rd_expenses"`
	Depreciation      *decimal.Decimal `json:"depreciation"`
	OperatingIncome   *decimal.Decimal `json:"operating_income"`
	OperatingExpenses *decimal.Decimal `json:"operating_expenses"`
	InterestExpense   *decimal.Decimal `json:"interest_expense"`
	NetIncome         *decimal.Decimal `json:"net_income"`
	NetIncomeRatio    *decimal.Decimal `json:"net_income_ratio"`
	EPS               *decimal.Decimal `json:"eps"`
}

// Reason codes attached to indeterminate metrics and criterion results.
// Every indeterminate outcome carries exactly one of these so callers can
// tell a missing field from a zero denominator or a short history.
const (
	ReasonMissingField        = "missing_field"
	ReasonZeroDenominator     = "zero_denominator"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonNonPositiveBase     = "non_positive_base"
)

// DerivedMetrics are the secondary metrics computed from a snapshot.
// A nil metric could not be computed; Reasons maps the metric name to the
// reason code explaining why.
type DerivedMetrics struct {
	CurrentRatio       *decimal.Decimal `json:"current_ratio"`
	EarningsGrowthRate *decimal.Decimal `json:"earnings_growth_rate"`
	PriceToEarnings    *decimal.Decimal `json:"price_to_earnings"`
	PriceToBook        *decimal.Decimal `json:"price_to_book"`

	Reasons map[string]string `json:"reasons,omitempty"`
}

// Company mirrors the companies table.
type Company struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	Industry  string    `json:"industry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
