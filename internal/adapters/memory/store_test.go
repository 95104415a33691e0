package memory

import (
	"context"
	"errors"
	"testing"

	"threatlens/internal/domain"
)

func TestSaveResult_LinksRequest(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, _ := s.Create(ctx, domain.ScanRequest{SubjectType: domain.SubjectURL, Target: "https://example.com/"})

	if err := s.SaveResult(ctx, domain.ScanResult{ID: "r1", RequestID: id, Target: "https://example.com/"}); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	req, _ := s.Get(ctx, id)
	if req.ResultID == nil || *req.ResultID != "r1" {
		t.Errorf("ResultID = %v, want r1", req.ResultID)
	}
}

func TestSaveResult_UnknownRequestSavesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.SaveResult(ctx, domain.ScanResult{ID: "r1", RequestID: "missing", Target: "https://example.com/"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SaveResult() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetResult(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("orphaned result stored: err = %v", err)
	}
	if list, _ := s.ListResults(ctx, 10); len(list) != 0 {
		t.Errorf("ListResults() = %+v", list)
	}
}

func TestSaveResult_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	res := domain.ScanResult{ID: "r1", Target: "https://example.com/"}
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveResult(ctx, res); err == nil {
		t.Error("saving the same result twice should fail")
	}
}
