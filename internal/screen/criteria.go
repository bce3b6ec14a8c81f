// Package screen evaluates fixed rule sets against a company snapshot and
// its derived metrics. Each rule is independent: it produces exactly one
// CriterionResult and never aborts the rest of the report.
package screen

import (
	"strconv"

	"github.com/shopspring/decimal"

	"grahamscreen/internal/models"
)

// Status is the three-valued outcome of a single criterion. Indeterminate
// means the inputs were missing or invalid; it is never conflated with fail.
type Status string

const (
	StatusPass          Status = "pass"
	StatusFail          Status = "fail"
	StatusIndeterminate Status = "indeterminate"
)

// CriterionResult is one evaluated rule.
type CriterionResult struct {
	Name           string           `json:"name"`
	Status         Status           `json:"status"`
	Value          *decimal.Decimal `json:"value,omitempty"`
	Threshold      string           `json:"threshold"`
	Reason         string           `json:"reason,omitempty"`
	Classification string           `json:"classification,omitempty"`
}

// Report is the ordered result of a full rule-set evaluation. Result order
// is the fixed rule order, not outcome-dependent.
type Report struct {
	Ticker    string            `json:"ticker"`
	Name      string            `json:"name"`
	RuleSet   string            `json:"rule_set"`
	Results   []CriterionResult `json:"results"`
	Qualifies bool              `json:"qualifies"`
	// Causes lists the rules that kept Qualifies false, in rule order.
	Causes []string `json:"causes,omitempty"`
}

// Defensive rule names, in evaluation order.
const (
	RuleAdequateSize         = "adequate_size"
	RuleFinancialCondition   = "strong_financial_condition"
	RuleEarningsStability    = "earnings_stability"
	RuleDividendRecord       = "dividend_record"
	RuleEarningsGrowth       = "earnings_growth"
	RuleModeratePE           = "moderate_pe"
	RuleModeratePriceToAsset = "moderate_price_to_assets"
)

// DefensiveRuleNames is the fixed evaluation order of the defensive screen.
var DefensiveRuleNames = []string{
	RuleAdequateSize,
	RuleFinancialCondition,
	RuleEarningsStability,
	RuleDividendRecord,
	RuleEarningsGrowth,
	RuleModeratePE,
	RuleModeratePriceToAsset,
}

// Thresholds holds the configurable limits of the defensive screen.
// Defaults follow Graham's original criteria.
type Thresholds struct {
	MinMarketCap       decimal.Decimal `json:"min_market_cap"`
	MinCurrentRatio    decimal.Decimal `json:"min_current_ratio"`
	MinEarningsGrowth  decimal.Decimal `json:"min_earnings_growth"`
	MaxPriceToEarnings decimal.Decimal `json:"max_price_to_earnings"`
	MaxPriceToAssets   decimal.Decimal `json:"max_price_to_assets"`
	LookbackYears      int             `json:"lookback_years"`
}

// DefaultThresholds returns Graham's defaults: $2B size floor, current
// ratio 2, 33% ten-year earnings growth, P/E 15, P/E x P/B 22.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMarketCap:       decimal.New(2, 9),
		MinCurrentRatio:    decimal.NewFromInt(2),
		MinEarningsGrowth:  decimal.NewFromFloat(0.33),
		MaxPriceToEarnings: decimal.NewFromInt(15),
		MaxPriceToAssets:   decimal.NewFromFloat(22.5),
		LookbackYears:      10,
	}
}

// EvaluateDefensive runs the seven defensive-investor rules against a
// snapshot and its derived metrics. The report always contains one result
// per rule, in DefensiveRuleNames order; Qualifies is true only when every
// rule passes outright.
func EvaluateDefensive(snap *models.CompanySnapshot, dm models.DerivedMetrics, th Thresholds) Report {
	report := Report{
		Ticker:  snap.Ticker,
		Name:    snap.Name,
		RuleSet: "graham_defensive",
	}

	report.Results = []CriterionResult{
		adequateSize(snap, th),
		financialCondition(dm, th),
		earningsStability(snap, th),
		dividendRecord(snap, th),
		metricAtLeast(RuleEarningsGrowth, dm.EarningsGrowthRate, th.MinEarningsGrowth,
			dm.Reasons["earnings_growth_rate"]),
		metricAtMost(RuleModeratePE, dm.PriceToEarnings, th.MaxPriceToEarnings,
			dm.Reasons["price_to_earnings"]),
		priceToAssets(dm, th),
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

func adequateSize(snap *models.CompanySnapshot, th Thresholds) CriterionResult {
	threshold := ">= " + th.MinMarketCap.String()
	if snap.MarketCap == nil {
		return indeterminate(RuleAdequateSize, threshold, models.ReasonMissingField)
	}
	return compare(RuleAdequateSize, *snap.MarketCap, threshold,
		snap.MarketCap.GreaterThanOrEqual(th.MinMarketCap))
}

func financialCondition(dm models.DerivedMetrics, th Thresholds) CriterionResult {
	return metricAtLeast(RuleFinancialCondition, dm.CurrentRatio, th.MinCurrentRatio,
		dm.Reasons["current_ratio"])
}

// earningsStability requires a positive result in every year of the
// lookback window. A shorter reporting history is indeterminate, not a
// failure: a company that reported eight clean years did not lose money in
// the two it never reported.
func earningsStability(snap *models.CompanySnapshot, th Thresholds) CriterionResult {
	threshold := "> 0 each of last " + strconv.Itoa(th.LookbackYears) + "y"

	years := snap.AnnualEarnings
	if len(years) > th.LookbackYears {
		years = years[len(years)-th.LookbackYears:]
	}

	var observed []decimal.Decimal
	for _, y := range years {
		v := y.NetIncome
		if v == nil {
			v = y.EPS
		}
		if v == nil {
			return indeterminate(RuleEarningsStability, threshold, models.ReasonMissingField)
		}
		observed = append(observed, *v)
	}
	if len(observed) < th.LookbackYears {
		return indeterminate(RuleEarningsStability, threshold, models.ReasonInsufficientHistory)
	}

	worst := observed[0]
	for _, v := range observed[1:] {
		if v.LessThan(worst) {
			worst = v
		}
	}
	return compare(RuleEarningsStability, worst, threshold, worst.Sign() > 0)
}

// dividendRecord checks for at least one payment in each year of the
// lookback window, anchored at the latest fiscal year in the snapshot. An
// empty payment history is a plain fail: not paying is data, not missing
// data.
func dividendRecord(snap *models.CompanySnapshot, th Thresholds) CriterionResult {
	threshold := "uninterrupted last " + strconv.Itoa(th.LookbackYears) + "y"

	anchor := 0
	for _, y := range snap.AnnualEarnings {
		if y.FiscalYear > anchor {
			anchor = y.FiscalYear
		}
	}
	if anchor == 0 {
		if snap.FetchedAt.IsZero() {
			return indeterminate(RuleDividendRecord, threshold, models.ReasonMissingField)
		}
		anchor = snap.FetchedAt.Year()
	}

	paid := make(map[int]bool, len(snap.Dividends))
	for _, d := range snap.Dividends {
		paid[d.ExDate.Year()] = true
	}

	covered := 0
	for y := anchor - th.LookbackYears + 1; y <= anchor; y++ {
		if paid[y] {
			covered++
		}
	}
	value := decimal.NewFromInt(int64(covered))
	return compare(RuleDividendRecord, value, threshold, covered == th.LookbackYears)
}

func priceToAssets(dm models.DerivedMetrics, th Thresholds) CriterionResult {
	threshold := "<= " + th.MaxPriceToAssets.String()
	if dm.PriceToEarnings == nil {
		return indeterminate(RuleModeratePriceToAsset, threshold,
			reasonOr(dm.Reasons["price_to_earnings"], models.ReasonMissingField))
	}
	if dm.PriceToBook == nil {
		return indeterminate(RuleModeratePriceToAsset, threshold,
			reasonOr(dm.Reasons["price_to_book"], models.ReasonMissingField))
	}
	product := dm.PriceToEarnings.Mul(*dm.PriceToBook)
	return compare(RuleModeratePriceToAsset, product, threshold,
		product.LessThanOrEqual(th.MaxPriceToAssets))
}

func metricAtLeast(name string, v *decimal.Decimal, min decimal.Decimal, reason string) CriterionResult {
	threshold := ">= " + min.String()
	if v == nil {
		return indeterminate(name, threshold, reasonOr(reason, models.ReasonMissingField))
	}
	return compare(name, *v, threshold, v.GreaterThanOrEqual(min))
}

func metricAtMost(name string, v *decimal.Decimal, max decimal.Decimal, reason string) CriterionResult {
	threshold := "<= " + max.String()
	if v == nil {
		return indeterminate(name, threshold, reasonOr(reason, models.ReasonMissingField))
	}
	return compare(name, *v, threshold, v.LessThanOrEqual(max))
}

func compare(name string, value decimal.Decimal, threshold string, ok bool) CriterionResult {
	status := StatusFail
	if ok {
		status = StatusPass
	}
	return CriterionResult{Name: name, Status: status, Value: &value, Threshold: threshold}
}

func indeterminate(name, threshold, reason string) CriterionResult {
	return CriterionResult{
		Name:      name,
		Status:    StatusIndeterminate,
		Threshold: threshold,
		Reason:    reason,
	}
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
