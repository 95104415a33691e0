package ports

import (
	"context"

	"threatlens/internal/domain"
)

// ScanRepository stores submitted scan requests. Create also queues a job.
type ScanRepository interface {
	Create(ctx context.Context, req domain.ScanRequest) (requestID string, err error)
	Get(ctx context.Context, requestID string) (domain.ScanRequest, error)
}

// ResultRepository persists one history record per scan with its detection
// details and optional ML analysis. SaveResult links a result carrying a
// RequestID to that request atomically; an unknown request saves nothing.
type ResultRepository interface {
	SaveResult(ctx context.Context, res domain.ScanResult) error
	GetResult(ctx context.Context, resultID string) (domain.ScanResult, error)
	ListResults(ctx context.Context, limit int) ([]domain.ScanResult, error)
	LatestForTarget(ctx context.Context, target string) (domain.ScanResult, error)
}
