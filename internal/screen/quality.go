package screen

import (
	"math"

	"github.com/shopspring/decimal"

	"grahamscreen/internal/models"
)

// Quality filters: income-statement quality checks evaluated over the
// quarterly history. Unlike the defensive rules these average a metric
// across the whole window and band the result into a classification.

// Quality rule names, in evaluation order.
const (
	RuleGrossProfitRatio = "gross_profit_ratio"
	RuleSGARatio         = "sga_ratio"
	RuleRDRatio          = "rd_ratio"
	RuleDepreciation     = "depreciation_ratio"
	RuleInterestRatio    = "interest_ratio"
	RuleNetIncomeRatio   = "net_income_ratio"
	RuleRevenueTrend     = "revenue_trend"
	RuleOperatingMargin  = "operating_margin"
	RuleSGAConsistency   = "sga_consistency"
)

// QualityRuleNames is the fixed evaluation order of the quality screen.
var QualityRuleNames = []string{
	RuleGrossProfitRatio,
	RuleSGARatio,
	RuleRDRatio,
	RuleDepreciation,
	RuleInterestRatio,
	RuleNetIncomeRatio,
	RuleRevenueTrend,
	RuleOperatingMargin,
	RuleSGAConsistency,
}

// classification is a value band with a description, e.g. a gross-profit
// ratio above 40% reads "durable competitive advantage".
type classification struct {
	min, max *decimal.Decimal // nil bound = open
	desc     string
}

func (c classification) contains(v decimal.Decimal) bool {
	if c.min != nil && v.LessThan(*c.min) {
		return false
	}
	if c.max != nil && v.GreaterThan(*c.max) {
		return false
	}
	return true
}

func classify(bands []classification, v decimal.Decimal) string {
	for _, b := range bands {
		if b.contains(v) {
			return b.desc
		}
	}
	return ""
}

func dec(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

// qualityFilter is one averaged metric with an optional threshold and
// classification bands.
type qualityFilter struct {
	name          string
	thresholdText string
	bands         []classification
	// calculate returns the averaged metric, or false when no usable
	// quarters exist.
	calculate func(rows []models.IncomeStatement) (decimal.Decimal, bool)
	// passes is nil for informational filters.
	passes func(v decimal.Decimal) bool
}

func qualityFilters() []qualityFilter {
	atLeast := func(min float64) func(decimal.Decimal) bool {
		m := decimal.NewFromFloat(min)
		return func(v decimal.Decimal) bool { return v.GreaterThanOrEqual(m) }
	}
	atMost := func(max float64) func(decimal.Decimal) bool {
		m := decimal.NewFromFloat(max)
		return func(v decimal.Decimal) bool { return v.LessThanOrEqual(m) }
	}

	return []qualityFilter{
		{
			name:          RuleGrossProfitRatio,
			thresholdText: ">= 0.4",
			passes:        atLeast(0.4),
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanOf(rows, func(q models.IncomeStatement) *decimal.Decimal {
					return q.GrossProfitRatio
				})
			},
			bands: []classification{
				{dec(0.4), nil, "durable competitive advantage"},
				{dec(0.2), dec(0.4), "highly competitive industry"},
				{nil, dec(0.2), "fiercely competitive industry"},
			},
		},
		{
			name:          RuleSGARatio,
			thresholdText: "<= 0.3",
			passes:        atMost(0.3),
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanRatio(rows, sgaOverGrossProfit)
			},
			bands: []classification{
				{nil, dec(0.3), "excellent operational efficiency"},
				{dec(0.3), dec(0.8), "normal range, varies by industry"},
				{dec(0.8), nil, "high overhead costs"},
			},
		},
		{
			name:          RuleRDRatio,
			thresholdText: "informational",
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanRatio(rows, func(q models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal) {
					return q.RDExpenses, q.GrossProfit
				})
			},
			bands: []classification{
				{nil, dec(0.1), "low R&D dependency"},
				{dec(0.1), dec(0.2), "moderate R&D investment"},
				{dec(0.2), nil, "heavy R&D investment"},
			},
		},
		{
			name:          RuleDepreciation,
			thresholdText: "<= 0.1",
			passes:        atMost(0.1),
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanRatio(rows, func(q models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal) {
					return q.Depreciation, q.GrossProfit
				})
			},
			bands: []classification{
				{nil, dec(0.1), "asset-light business"},
				{dec(0.1), dec(0.2), "moderate capital intensity"},
				{dec(0.2), nil, "capital-intensive business"},
			},
		},
		{
			name:          RuleInterestRatio,
			thresholdText: "informational",
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanRatio(rows, func(q models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal) {
					return q.InterestExpense, q.OperatingIncome
				})
			},
			bands: []classification{
				{nil, dec(0.15), "strong position"},
				{dec(0.15), dec(0.3), "moderate interest burden"},
				{dec(0.3), dec(0.7), "high interest burden"},
				{dec(0.7), nil, "very high interest burden, risk of distress"},
			},
		},
		{
			name:          RuleNetIncomeRatio,
			thresholdText: ">= 0.2",
			passes:        atLeast(0.2),
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanOf(rows, func(q models.IncomeStatement) *decimal.Decimal {
					return q.NetIncomeRatio
				})
			},
			bands: []classification{
				{dec(0.2), nil, "durable competitive advantage"},
				{dec(0.1), dec(0.2), "gray area, requires further analysis"},
				{nil, dec(0.1), "competitive industry without clear advantage"},
			},
		},
		{
			name:          RuleRevenueTrend,
			thresholdText: "> 0",
			passes: func(v decimal.Decimal) bool {
				return v.Sign() > 0
			},
			calculate: revenueTrend,
		},
		{
			name:          RuleOperatingMargin,
			thresholdText: ">= 0.15",
			passes:        atLeast(0.15),
			calculate: func(rows []models.IncomeStatement) (decimal.Decimal, bool) {
				return meanRatio(rows, func(q models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal) {
					return q.OperatingIncome, q.Revenue
				})
			},
		},
		{
			name:          RuleSGAConsistency,
			thresholdText: "<= 0.25",
			passes:        atMost(0.25),
			calculate:     sgaConsistency,
		},
	}
}

// EvaluateQuality runs the quality filters over the snapshot's quarterly
// income statements. Informational filters (no threshold) pass whenever
// they can be computed; their classification carries the verdict.
func EvaluateQuality(snap *models.CompanySnapshot) Report {
	report := Report{
		Ticker:  snap.Ticker,
		Name:    snap.Name,
		RuleSet: "buffett_quality",
	}

	for _, f := range qualityFilters() {
		v, ok := f.calculate(snap.QuarterlyIncome)
		if !ok {
			report.Results = append(report.Results,
				indeterminate(f.name, f.thresholdText, models.ReasonInsufficientHistory))
			continue
		}
		r := compare(f.name, v, f.thresholdText, f.passes == nil || f.passes(v))
		r.Classification = classify(f.bands, v)
		report.Results = append(report.Results, r)
	}

	report.Qualifies = true
	for _, r := range report.Results {
		if r.Status != StatusPass {
			report.Qualifies = false
			report.Causes = append(report.Causes, r.Name)
		}
	}
	return report
}

func sgaOverGrossProfit(q models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal) {
	return q.SGAExpenses, q.GrossProfit
}

// meanOf averages a directly reported metric, skipping quarters where it
// is absent.
func meanOf(rows []models.IncomeStatement, pick func(models.IncomeStatement) *decimal.Decimal) (decimal.Decimal, bool) {
	var sum decimal.Decimal
	n := 0
	for _, q := range rows {
		if v := pick(q); v != nil {
			sum = sum.Add(*v)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// meanRatio averages numerator/denominator per quarter, skipping quarters
// with a missing field or zero denominator.
func meanRatio(rows []models.IncomeStatement, pick func(models.IncomeStatement) (*decimal.Decimal, *decimal.Decimal)) (decimal.Decimal, bool) {
	var sum decimal.Decimal
	n := 0
	for _, q := range rows {
		num, den := pick(q)
		if num == nil || den == nil || den.IsZero() {
			continue
		}
		sum = sum.Add(num.Div(*den))
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// revenueTrend averages quarter-over-quarter revenue growth.
func revenueTrend(rows []models.IncomeStatement) (decimal.Decimal, bool) {
	var growth []decimal.Decimal
	var prev *decimal.Decimal
	for _, q := range rows {
		if q.Revenue == nil {
			continue
		}
		if prev != nil && !prev.IsZero() {
			growth = append(growth, q.Revenue.Sub(*prev).Div(*prev))
		}
		prev = q.Revenue
	}
	if len(growth) == 0 {
		return decimal.Zero, false
	}
	var sum decimal.Decimal
	for _, g := range growth {
		sum = sum.Add(g)
	}
	return sum.Div(decimal.NewFromInt(int64(len(growth)))), true
}

// sgaConsistency returns the coefficient of variation (std dev / mean) of
// the quarterly SGA-to-gross-profit ratio. The square root runs through
// float64; the precision loss is irrelevant at screening granularity.
func sgaConsistency(rows []models.IncomeStatement) (decimal.Decimal, bool) {
	var ratios []decimal.Decimal
	for _, q := range rows {
		num, den := sgaOverGrossProfit(q)
		if num == nil || den == nil || den.IsZero() {
			continue
		}
		ratios = append(ratios, num.Div(*den))
	}
	if len(ratios) < 2 {
		return decimal.Zero, false
	}

	var sum decimal.Decimal
	for _, r := range ratios {
		sum = sum.Add(r)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(ratios))))
	if mean.IsZero() {
		return decimal.Zero, false
	}

	var variance float64
	meanF, _ := mean.Float64()
	for _, r := range ratios {
		f, _ := r.Float64()
		variance += (f - meanF) * (f - meanF)
	}
	variance /= float64(len(ratios))
	return decimal.NewFromFloat(math.Sqrt(variance) / math.Abs(meanF)), true
}
