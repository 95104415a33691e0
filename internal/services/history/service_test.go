package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"threatlens/internal/adapters/memory"
	"threatlens/internal/domain"
)

func seed(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		target := "https://a.example/"
		if i%2 == 1 {
			target = "https://b.example/"
		}
		res := domain.ScanResult{ID: fmt.Sprintf("r%03d", i), Target: target, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := store.SaveResult(context.Background(), res); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRecent_Limits(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, 150)
	svc := New(store)

	tests := []struct {
		limit int
		want  int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{7, 7},
		{500, maxLimit},
	}
	for _, tt := range tests {
		got, err := svc.Recent(context.Background(), tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) error = %v", tt.limit, err)
		}
		if len(got) != tt.want {
			t.Errorf("Recent(%d) returned %d results, want %d", tt.limit, len(got), tt.want)
		}
		if got[0].ID != "r149" {
			t.Errorf("Recent(%d) first = %s, want newest", tt.limit, got[0].ID)
		}
	}
}

func TestLatest(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, 5)
	svc := New(store)

	res, err := svc.Latest(context.Background(), " https://a.example/ ")
	if err != nil || res.ID != "r004" {
		t.Fatalf("Latest(a) = %s, %v", res.ID, err)
	}
	res, err = svc.Latest(context.Background(), "https://b.example/")
	if err != nil || res.ID != "r003" {
		t.Fatalf("Latest(b) = %s, %v", res.ID, err)
	}
	if _, err := svc.Latest(context.Background(), "https://c.example/"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown target error = %v", err)
	}
	if _, err := svc.Latest(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank target error = %v", err)
	}
}
