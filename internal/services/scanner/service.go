package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"threatlens/internal/domain"
	"threatlens/internal/ports"
	"threatlens/internal/signals"
)

type Service struct {
	scans        ports.ScanRepository
	results      ports.ResultRepository
	allowedTypes []string
	maxFileBytes int
}

// New builds the submission service. maxFileBytes <= 0 disables the size cap.
func New(scans ports.ScanRepository, results ports.ResultRepository, allowedTypes []string, maxFileBytes int) *Service {
	return &Service{scans: scans, results: results, allowedTypes: allowedTypes, maxFileBytes: maxFileBytes}
}

func (s *Service) SubmitURL(ctx context.Context, rawurl string) (string, error) {
	rawurl = strings.TrimSpace(rawurl)
	if _, err := signals.URLSubject(rawurl); err != nil {
		return "", err
	}
	return s.scans.Create(ctx, domain.ScanRequest{
		SubjectType: domain.SubjectURL,
		Target:      rawurl,
		Status:      domain.RequestQueued,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) SubmitFile(ctx context.Context, name string, content []byte) (string, error) {
	if s.maxFileBytes > 0 && len(content) > s.maxFileBytes {
		return "", fmt.Errorf("%w: file is %d bytes, limit is %d", domain.ErrInvalidInput, len(content), s.maxFileBytes)
	}
	subject, err := signals.FileSubject(name, content, s.allowedTypes)
	if err != nil {
		return "", err
	}
	return s.scans.Create(ctx, domain.ScanRequest{
		SubjectType: domain.SubjectFile,
		Target:      subject.Target,
		Payload:     content,
		Status:      domain.RequestQueued,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) Status(ctx context.Context, requestID string) (domain.ScanRequest, error) {
	return s.scans.Get(ctx, requestID)
}

func (s *Service) Result(ctx context.Context, resultID string) (domain.ScanResult, error) {
	return s.results.GetResult(ctx, resultID)
}

// SubjectFor rebuilds the producer input from a stored request. Uploads were
// validated on submission so the allowlist is not applied again.
func SubjectFor(req domain.ScanRequest) (signals.Subject, error) {
	switch req.SubjectType {
	case domain.SubjectURL:
		return signals.URLSubject(req.Target)
	case domain.SubjectFile:
		return signals.FileSubject(req.Target, req.Payload, nil)
	default:
		return signals.Subject{}, fmt.Errorf("%w: unknown subject type %q", domain.ErrInvalidInput, req.SubjectType)
	}
}
