package screen

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grahamscreen/internal/metrics"
	"grahamscreen/internal/models"
)

func d(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

// qualifyingSnapshot builds a snapshot that passes all seven defensive
// rules with the default thresholds: current ratio exactly 2.0, ten clean
// profitable years, ten dividend years, P/E 10, P/B 1.5.
func qualifyingSnapshot() *models.CompanySnapshot {
	snap := &models.CompanySnapshot{
		Ticker:             "ACME",
		Name:               "Acme Corp",
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
			EPS:        d(2.0 + 0.1*float64(i)), // 2.0 -> 2.9, growth 45%
		})
		snap.Dividends = append(snap.Dividends, models.DividendPayment{
			ExDate:   time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
			PerShare: d(0.25),
		})
	}
	return snap
}

func evaluate(t *testing.T, snap *models.CompanySnapshot) Report {
	t.Helper()
	return EvaluateDefensive(snap, metrics.Derive(snap), DefaultThresholds())
}

func resultFor(t *testing.T, rep Report, name string) CriterionResult {
	t.Helper()
	for _, r := range rep.Results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for rule %s", name)
	return CriterionResult{}
}

func TestDefensiveRuleOrderAndCompleteness(t *testing.T) {
	rep := evaluate(t, qualifyingSnapshot())

	require.Len(t, rep.Results, len(DefensiveRuleNames))
	for i, name := range DefensiveRuleNames {
		assert.Equal(t, name, rep.Results[i].Name, "rule order at %d", i)
	}
}

func TestDefensiveQualifies(t *testing.T) {
	rep := evaluate(t, qualifyingSnapshot())

	for _, r := range rep.Results {
		assert.Equal(t, StatusPass, r.Status, "rule %s: %+v", r.Name, r)
	}
	assert.True(t, rep.Qualifies)
	assert.Empty(t, rep.Causes)
}

func TestDefensiveIdempotent(t *testing.T) {
	snap := qualifyingSnapshot()

	first, err := json.Marshal(evaluate(t, snap))
	require.NoError(t, err)
	second, err := json.Marshal(evaluate(t, snap))
	require.NoError(t, err)

	assert.Equal(t, first, second, "same snapshot must produce byte-identical reports")
}

func TestCurrentRatioBoundaryInclusive(t *testing.T) {
	// assets 200 / liabilities 100 = exactly 2.0 passes
	rep := evaluate(t, qualifyingSnapshot())
	r := resultFor(t, rep, RuleFinancialCondition)

	assert.Equal(t, StatusPass, r.Status)
	require.NotNil(t, r.Value)
	assert.True(t, r.Value.Equal(decimal.NewFromInt(2)))
}

func TestZeroLiabilitiesIsIndeterminateNotFail(t *testing.T) {
	snap := qualifyingSnapshot()
	snap.CurrentLiabilities = d(0)

	rep := evaluate(t, snap)
	r := resultFor(t, rep, RuleFinancialCondition)

	assert.Equal(t, StatusIndeterminate, r.Status)
	assert.Equal(t, models.ReasonZeroDenominator, r.Reason)
	assert.False(t, rep.Qualifies)
	assert.Contains(t, rep.Causes, RuleFinancialCondition)
}

func TestEarningsStability(t *testing.T) {
	rep := evaluate(t, qualifyingSnapshot())
	assert.Equal(t, StatusPass, resultFor(t, rep, RuleEarningsStability).Status)

	// One loss year, however small, breaks stability.
	snap := qualifyingSnapshot()
	snap.AnnualEarnings[4].NetIncome = d(-0.01)
	rep = evaluate(t, snap)
	r := resultFor(t, rep, RuleEarningsStability)
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, rep.Causes, RuleEarningsStability)
}

func TestEarningsStabilityShortHistoryIndeterminate(t *testing.T) {
	snap := qualifyingSnapshot()
	snap.AnnualEarnings = snap.AnnualEarnings[4:] // six years only

	r := resultFor(t, evaluate(t, snap), RuleEarningsStability)
	assert.Equal(t, StatusIndeterminate, r.Status)
	assert.Equal(t, models.ReasonInsufficientHistory, r.Reason)
}

func TestDividendRecord(t *testing.T) {
	rep := evaluate(t, qualifyingSnapshot())
	assert.Equal(t, StatusPass, resultFor(t, rep, RuleDividendRecord).Status)

	// Drop one year's payment: the record is interrupted.
	snap := qualifyingSnapshot()
	snap.Dividends = append(snap.Dividends[:3], snap.Dividends[4:]...)
	r := resultFor(t, evaluate(t, snap), RuleDividendRecord)
	assert.Equal(t, StatusFail, r.Status)
	require.NotNil(t, r.Value)
	assert.True(t, r.Value.Equal(decimal.NewFromInt(9)))

	// No dividends at all is a fail, not missing data.
	snap = qualifyingSnapshot()
	snap.Dividends = nil
	r = resultFor(t, evaluate(t, snap), RuleDividendRecord)
	assert.Equal(t, StatusFail, r.Status)
}

func TestEarningsGrowth(t *testing.T) {
	rep := evaluate(t, qualifyingSnapshot())
	assert.Equal(t, StatusPass, resultFor(t, rep, RuleEarningsGrowth).Status)

	// Flat earnings: growth 0 < 33%.
	snap := qualifyingSnapshot()
	for i := range snap.AnnualEarnings {
		snap.AnnualEarnings[i].EPS = d(2.0)
	}
	r := resultFor(t, evaluate(t, snap), RuleEarningsGrowth)
	assert.Equal(t, StatusFail, r.Status)
}

func TestModeratePE(t *testing.T) {
	// price 30, latest EPS 2 -> P/E exactly 15 passes (inclusive ceiling).
	snap := qualifyingSnapshot()
	for i := range snap.AnnualEarnings {
		snap.AnnualEarnings[i].EPS = d(1.5 + 0.05*float64(i)) // latest 1.95... keep growth
	}
	snap.AnnualEarnings[len(snap.AnnualEarnings)-1].EPS = d(2)
	r := resultFor(t, evaluate(t, snap), RuleModeratePE)
	assert.Equal(t, StatusPass, r.Status)
	require.NotNil(t, r.Value)
	assert.True(t, r.Value.Equal(decimal.NewFromInt(15)))
}

func TestPriceToAssetsProduct(t *testing.T) {
	// price 30, EPS 2 (P/E 15), book value 2 (P/B 15): product 225 > 22.5.
	snap := qualifyingSnapshot()
	for i := range snap.AnnualEarnings {
		snap.AnnualEarnings[i].EPS = d(1.5)
	}
	snap.AnnualEarnings[len(snap.AnnualEarnings)-1].EPS = d(2)
	snap.BookValuePerShare = d(2)

	rep := evaluate(t, snap)
	r := resultFor(t, rep, RuleModeratePriceToAsset)
	assert.Equal(t, StatusFail, r.Status)
	require.NotNil(t, r.Value)
	assert.True(t, r.Value.Equal(decimal.NewFromInt(225)), "got %s", r.Value)
	assert.False(t, rep.Qualifies)
	assert.Contains(t, rep.Causes, RuleModeratePriceToAsset)
}

func TestMissingMarketCapIndeterminate(t *testing.T) {
	snap := qualifyingSnapshot()
	snap.MarketCap = nil

	rep := evaluate(t, snap)
	r := resultFor(t, rep, RuleAdequateSize)
	assert.Equal(t, StatusIndeterminate, r.Status)
	assert.Equal(t, models.ReasonMissingField, r.Reason)
	assert.False(t, rep.Qualifies, "indeterminate must not qualify")
	assert.Equal(t, []string{RuleAdequateSize}, rep.Causes)
}

func TestSingleFailureListedAsCause(t *testing.T) {
	snap := qualifyingSnapshot()
	snap.MarketCap = d(1e9) // below the 2e9 floor

	rep := evaluate(t, snap)
	assert.False(t, rep.Qualifies)
	assert.Equal(t, []string{RuleAdequateSize}, rep.Causes)
	assert.Equal(t, StatusFail, resultFor(t, rep, RuleAdequateSize).Status)
}

func TestCustomThresholds(t *testing.T) {
	snap := qualifyingSnapshot()
	th := DefaultThresholds()
	th.MinMarketCap = decimal.New(1, 10) // 1e10 floor

	rep := EvaluateDefensive(snap, metrics.Derive(snap), th)
	assert.Equal(t, StatusFail, resultFor(t, rep, RuleAdequateSize).Status)
}
