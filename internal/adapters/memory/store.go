// Package memory implements the repositories in process. Suitable for the CLI
// and tests, not for production.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"threatlens/internal/domain"
	"threatlens/internal/ports"
)

type job struct {
	id     string
	scanID string
	status string
	reason string
}

// Store satisfies ScanRepository, ResultRepository and JobRepository.
type Store struct {
	mu       sync.RWMutex
	requests map[string]domain.ScanRequest
	jobs     []*job
	results  []domain.ScanResult // append order is save order
}

func NewStore() *Store {
	return &Store{requests: make(map[string]domain.ScanRequest)}
}

var (
	_ ports.ScanRepository   = (*Store)(nil)
	_ ports.ResultRepository = (*Store)(nil)
	_ ports.JobRepository    = (*Store)(nil)
)

// ScanRepository

func (s *Store) Create(ctx context.Context, req domain.ScanRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.New().String()
	req.Status = domain.RequestQueued
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	s.requests[req.ID] = req
	s.jobs = append(s.jobs, &job{id: uuid.New().String(), scanID: req.ID, status: "queued"})
	return req.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.ScanRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ScanRequest{}, domain.ErrNotFound
	}
	return req, nil
}

// ResultRepository

func (s *Store) SaveResult(ctx context.Context, res domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == res.ID {
			return fmt.Errorf("result %s already saved", res.ID)
		}
	}
	if res.RequestID != "" {
		req, ok := s.requests[res.RequestID]
		if !ok {
			return fmt.Errorf("request %s: %w", res.RequestID, domain.ErrNotFound)
		}
		id := res.ID
		req.ResultID = &id
		s.requests[res.RequestID] = req
	}
	s.results = append(s.results, res)
	return nil
}

func (s *Store) GetResult(ctx context.Context, id string) (domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.ScanResult{}, domain.ErrNotFound
}

func (s *Store) ListResults(ctx context.Context, limit int) ([]domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return []domain.ScanResult{}, nil
	}
	out := make([]domain.ScanResult, 0, limit)
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.results[i])
	}
	return out, nil
}

func (s *Store) LatestForTarget(ctx context.Context, target string) (domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].Target == target {
			return s.results[i], nil
		}
	}
	return domain.ScanResult{}, domain.ErrNotFound
}

// JobRepository

func (s *Store) ClaimNext(ctx context.Context) (ports.ScanJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.status == "queued" {
			s.startLocked(j)
			return ports.ScanJob{ID: j.id, ScanID: j.scanID}, true, nil
		}
	}
	return ports.ScanJob{}, false, nil
}

func (s *Store) UpdateScanProgress(ctx context.Context, scanID string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	req.Progress = min(max(progress, 0), 1)
	s.requests[scanID] = req
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.finish(jobID, domain.RequestCompleted, "")
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return s.finish(jobID, domain.RequestFailed, reason)
}

func (s *Store) StartJobForScan(ctx context.Context, scanID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.scanID == scanID && j.status == "queued" {
			s.startLocked(j)
			return j.id, nil
		}
	}
	return "", domain.ErrNotFound
}

func (s *Store) finish(jobID string, status domain.RequestStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.jobLocked(jobID)
	if err != nil {
		return err
	}
	j.status = string(status)
	j.reason = reason
	req := s.requests[j.scanID]
	req.Status = status
	req.Error = reason
	if status == domain.RequestCompleted {
		req.Progress = 1
	}
	now := time.Now().UTC()
	req.FinishedAt = &now
	s.requests[j.scanID] = req
	return nil
}

func (s *Store) startLocked(j *job) {
	j.status = "running"
	req := s.requests[j.scanID]
	req.Status = domain.RequestRunning
	s.requests[j.scanID] = req
}

func (s *Store) jobLocked(jobID string) (*job, error) {
	for _, j := range s.jobs {
		if j.id == jobID {
			return j, nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
}
