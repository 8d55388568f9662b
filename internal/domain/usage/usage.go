// Package usage describes token consumption reports.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/manualqa/internal/domain/usage/budget"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ErrInvalidPeriod is returned for an unknown period name.
var ErrInvalidPeriod = fmt.Errorf("period must be %q or %q", PeriodDay, PeriodMonth)

// ParsePeriod maps a request value to a Period. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidPeriod)
	}
}

// Report is the embedding token usage for one period.
type Report struct {
	period      Period
	periodStart time.Time
	periodEnd   time.Time
	model       string
	budget      budget.Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end time.Time, model string, b budget.Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		model:       model,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the inclusive period start (UTC).
func (r *Report) PeriodStart() time.Time { return r.periodStart }

// PeriodEnd returns the exclusive period end (UTC).
func (r *Report) PeriodEnd() time.Time { return r.periodEnd }

// Model returns the embedding model the tokens were spent on.
func (r *Report) Model() string { return r.model }

// Budget returns the budget status.
func (r *Report) Budget() budget.Budget { return r.budget }
