package ports

import (
	"context"

	"threatlens/internal/domain"
)

// Scanner accepts scan subjects and tracks them.
type Scanner interface {
	SubmitURL(ctx context.Context, rawurl string) (requestID string, err error)
	SubmitFile(ctx context.Context, name string, content []byte) (requestID string, err error)
	Status(ctx context.Context, requestID string) (domain.ScanRequest, error)
	Result(ctx context.Context, resultID string) (domain.ScanResult, error)
}

// History provides past results for the dashboard.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.ScanResult, error)
	Latest(ctx context.Context, target string) (domain.ScanResult, error)
}
