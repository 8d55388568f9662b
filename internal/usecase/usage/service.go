package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/manualqa/internal/domain/usage"
	"github.com/kailas-cloud/manualqa/internal/domain/usage/budget"
	"github.com/kailas-cloud/manualqa/internal/usecase/embedding"
)

// Service handles usage reporting.
type Service struct {
	br    BudgetReader
	model string
	now   func() time.Time
}

// New creates a Service. br can be nil (unlimited mode, nothing tracked).
func New(br BudgetReader, model string) *Service {
	return &Service{br: br, model: model, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var (
		start, end time.Time
		st         = embedding.BudgetStatus{Remaining: -1}
	)

	switch period {
	case domusage.PeriodMonth:
		start, end = monthStart, monthStart.AddDate(0, 1, 0)
		if s.br != nil {
			st = s.br.Monthly()
		}
	default:
		period = domusage.PeriodDay
		start, end = dayStart, dayStart.AddDate(0, 0, 1)
		if s.br != nil {
			st = s.br.Daily()
		}
	}

	return domusage.NewReport(period, start, end, s.model, budget.New(st.Limit, st.Used, st.Remaining))
}
