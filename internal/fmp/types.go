package fmp

import (
	"github.com/shopspring/decimal"
)

// Response types for the FinancialModelingPrep v3 endpoints we consume.
// Pointer fields stay nil when the API omits the value, so downstream code
// can tell "not reported" from zero.

// ProfileRow is one element of /api/v3/profile/{ticker}.
type ProfileRow struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"companyName"`
	Sector      string           `json:"sector"`
	Industry    string           `json:"industry"`
	Price       *decimal.Decimal `json:"price"`
	MarketCap   *decimal.Decimal `json:"mktCap"`
}

// MarketCapRow is one element of /api/v3/market-capitalization/{ticker}.
type MarketCapRow struct {
	Symbol    string           `json:"symbol"`
	Date      string           `json:"date"`
	MarketCap *decimal.Decimal `json:"marketCap"`
}

// BalanceSheetRow is one element of /api/v3/balance-sheet-statement/{ticker}.
type BalanceSheetRow struct {
	Symbol                  string           `json:"symbol"`
	Date                    string           `json:"date"`
	CalendarYear            string           `json:"calendarYear"`
	TotalCurrentAssets      *decimal.Decimal `json:"totalCurrentAssets"`
	TotalCurrentLiabilities *decimal.Decimal `json:"totalCurrentLiabilities"`
	LongTermDebt            *decimal.Decimal `json:"longTermDebt"`
	TotalStockholdersEquity *decimal.Decimal `json:"totalStockholdersEquity"`
}

// IncomeStatementRow is one element of /api/v3/income-statement/{ticker}.
// The API returns rows newest first.
type IncomeStatementRow struct {
	Symbol       string `json:"symbol"`
	Date         string `json:"date"`
	CalendarYear string `json:"calendarYear"`
	Period       string `json:"period"` // FY for annual, Q1..Q4 for quarterly

	Revenue           *decimal.Decimal `json:"revenue"`
	GrossProfit       *decimal.Decimal `json:"grossProfit"`
	GrossProfitRatio  *decimal.Decimal `json:"grossProfitRatio"`
	SGAExpenses       *decimal.Decimal `json:"sellingGeneralAndAdministrativeExpenses"`
	RDExpenses        *decimal.Decimal `json:"researchAndDevelopmentExpenses"`
	Depreciation      *decimal.Decimal `json:"depreciationAndAmortization"`
	OperatingIncome   *decimal.Decimal `json:"operatingIncome"`
	OperatingExpenses *decimal.Decimal `json:"operatingExpenses"`
	InterestExpense   *decimal.Decimal `json:"interestExpense"`
	NetIncome         *decimal.Decimal `json:"netIncome"`
	NetIncomeRatio    *decimal.Decimal `json:"netIncomeRatio"`
	EPS               *decimal.Decimal `json:"eps"`
}

// DividendHistory is the envelope of
// /api/v3/historical-price-full/stock_dividend/{ticker}.
type DividendHistory struct {
	Symbol     string        `json:"symbol"`
	Historical []DividendRow `json:"historical"`
}

// DividendRow is one historical dividend payment, newest first.
type DividendRow struct {
	Date     string           `json:"date"`
	Dividend *decimal.Decimal `json:"dividend"`
	Payment  string           `json:"paymentDate"`
}

// KeyMetricsRow is one element of /api/v3/key-metrics-ttm/{ticker}.
type KeyMetricsRow struct {
	BookValuePerShare *decimal.Decimal `json:"bookValuePerShareTTM"`
}
