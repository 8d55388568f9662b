package manualqa

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/kailas-cloud/manualqa/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains embedding token usage for a time period.
type UsageReport struct {
	Period      UsagePeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Model       string
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state. TokensLimit 0 means unlimited,
// in which case TokensRemaining is -1.
type BudgetStatus struct {
	TokensUsed      int64
	TokensLimit     int64
	TokensRemaining int64
	IsExhausted     bool
}

// Usage returns an embedding usage report for the given period.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (rep UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	p, err := domusage.ParsePeriod(string(period))
	if err != nil {
		return UsageReport{}, fmt.Errorf("usage: %w", err)
	}

	report := c.usageSvc.GetReport(ctx, p)
	b := report.Budget()

	return UsageReport{
		Period:      UsagePeriod(report.Period()),
		PeriodStart: report.PeriodStart(),
		PeriodEnd:   report.PeriodEnd(),
		Model:       report.Model(),
		Budget: BudgetStatus{
			TokensUsed:      b.TokensUsed(),
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		},
	}, nil
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
