package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot answer questions.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	store     StoreSizer
}

// New creates a Service. db is nil when budget persistence is disabled.
func New(db DBPinger, embedding EmbeddingChecker, store StoreSizer) *Service {
	return &Service{db: db, embedding: embedding, store: store}
}

// Check runs health checks against all components. An empty vector store
// or an unreachable embedding provider makes the service unhealthy; a
// failing budget database only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.store != nil {
		if s.store.Len() == 0 {
			checks["vector_store"] = CheckError
			status = Unhealthy
		} else {
			checks["vector_store"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
			status = Unhealthy
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["database"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
