package chi

import (
	"context"

	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
	domusage "github.com/kailas-cloud/manualqa/internal/domain/usage"
	"github.com/kailas-cloud/manualqa/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/manualqa/internal/usecase/health"
)

// ChatService answers questions and runs bare retrieval.
type ChatService interface {
	Ask(ctx context.Context, question string) (chat.Reply, error)
	Search(ctx context.Context, query string, limit int) ([]result.Match, error)
}

// UsageService builds token usage reports.
type UsageService interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
