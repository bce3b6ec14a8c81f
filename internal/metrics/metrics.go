// Package metrics derives secondary metrics from a fetched snapshot.
// Everything here is a pure function: same snapshot in, same value out.
package metrics

import (
	"errors"

	"github.com/shopspring/decimal"

	"grahamscreen/internal/models"
)

var (
	// ErrZeroDenominator is returned when a ratio's denominator is zero.
	ErrZeroDenominator = errors.New("metrics: zero denominator")
	// ErrMissingField is returned when a required snapshot field is nil.
	ErrMissingField = errors.New("metrics: missing field")
	// ErrInsufficientHistory is returned when fewer than two usable data
	// points exist in the earnings history.
	ErrInsufficientHistory = errors.New("metrics: insufficient history")
	// ErrNonPositiveBase is returned when the oldest earnings value is not
	// positive, which makes a growth rate meaningless.
	ErrNonPositiveBase = errors.New("metrics: non-positive base value")
)

// CurrentRatio returns current assets / current liabilities.
func CurrentRatio(assets, liabilities *decimal.Decimal) (decimal.Decimal, error) {
	if assets == nil || liabilities == nil {
		return decimal.Zero, ErrMissingField
	}
	if liabilities.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	return assets.Div(*liabilities), nil
}

// EarningsGrowthRate compares the oldest and newest EPS values in the
// history window: (newest - oldest) / oldest. History must be ordered
// oldest first, as the snapshot stores it.
func EarningsGrowthRate(history []models.AnnualEarnings) (decimal.Decimal, error) {
	var points []decimal.Decimal
	for _, y := range history {
		if y.EPS != nil {
			points = append(points, *y.EPS)
		}
	}
	if len(points) < 2 {
		return decimal.Zero, ErrInsufficientHistory
	}
	oldest := points[0]
	newest := points[len(points)-1]
	if oldest.Sign() <= 0 {
		return decimal.Zero, ErrNonPositiveBase
	}
	return newest.Sub(oldest).Div(oldest), nil
}

// PriceToEarnings returns price / earnings per share.
func PriceToEarnings(price, eps *decimal.Decimal) (decimal.Decimal, error) {
	if price == nil || eps == nil {
		return decimal.Zero, ErrMissingField
	}
	if eps.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	return price.Div(*eps), nil
}

// PriceToBook returns price / book value per share.
func PriceToBook(price, bookValuePerShare *decimal.Decimal) (decimal.Decimal, error) {
	if price == nil || bookValuePerShare == nil {
		return decimal.Zero, ErrMissingField
	}
	if bookValuePerShare.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	return price.Div(*bookValuePerShare), nil
}

// LatestEPS returns the newest reported EPS in the history, or nil.
func LatestEPS(history []models.AnnualEarnings) *decimal.Decimal {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].EPS != nil {
			return history[i].EPS
		}
	}
	return nil
}

// Derive computes all derived metrics for a snapshot. A metric that cannot
// be computed stays nil and its reason code is recorded; one bad metric
// never blocks the others.
func Derive(snap *models.CompanySnapshot) models.DerivedMetrics {
	dm := models.DerivedMetrics{Reasons: map[string]string{}}

	set := func(name string, v decimal.Decimal, err error) *decimal.Decimal {
		if err != nil {
			dm.Reasons[name] = reasonFor(err)
			return nil
		}
		return &v
	}

	cr, err := CurrentRatio(snap.CurrentAssets, snap.CurrentLiabilities)
	dm.CurrentRatio = set("current_ratio", cr, err)

	growth, err := EarningsGrowthRate(snap.AnnualEarnings)
	dm.EarningsGrowthRate = set("earnings_growth_rate", growth, err)

	pe, err := PriceToEarnings(snap.Price, LatestEPS(snap.AnnualEarnings))
	dm.PriceToEarnings = set("price_to_earnings", pe, err)

	pb, err := PriceToBook(snap.Price, snap.BookValuePerShare)
	dm.PriceToBook = set("price_to_book", pb, err)

	if len(dm.Reasons) == 0 {
		dm.Reasons = nil
	}
	return dm
}

// reasonFor maps a metric error to its reason code.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrZeroDenominator):
		return models.ReasonZeroDenominator
	case errors.Is(err, ErrInsufficientHistory):
		return models.ReasonInsufficientHistory
	case errors.Is(err, ErrNonPositiveBase):
		return models.ReasonNonPositiveBase
	default:
		return models.ReasonMissingField
	}
}
