package usage

import "github.com/kailas-cloud/manualqa/internal/usecase/embedding"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Daily() embedding.BudgetStatus
	Monthly() embedding.BudgetStatus
}
