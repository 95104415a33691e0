package scanner

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"threatlens/internal/adapters/memory"
	"threatlens/internal/domain"
)

func TestSubmitURL(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, store, nil, 0)

	id, err := svc.SubmitURL(ctx, "  https://example.com/login.php  ")
	if err != nil {
		t.Fatalf("SubmitURL() error = %v", err)
	}
	req, err := svc.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != domain.RequestQueued || req.Target != "https://example.com/login.php" || req.SubjectType != domain.SubjectURL {
		t.Errorf("request = %+v", req)
	}

	for _, bad := range []string{"", "example.com", "http://", "://broken"} {
		if _, err := svc.SubmitURL(ctx, bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SubmitURL(%q) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestSubmitFile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := New(store, store, []string{"apk", "ipa"}, 16)

	tests := []struct {
		name    string
		file    string
		content []byte
		wantErr bool
	}{
		{"android", "app.apk", []byte("PK\x03\x04"), false},
		{"ios upper case", "App.IPA", []byte("PK\x03\x04"), false},
		{"empty", "app.apk", nil, true},
		{"not allowed", "tool.exe", []byte("MZ"), true},
		{"over limit", "big.apk", bytes.Repeat([]byte{1}, 17), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.SubmitFile(ctx, tt.file, tt.content)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SubmitFile() error = %v", err)
			}
			req, _ := svc.Status(ctx, id)
			if !bytes.Equal(req.Payload, tt.content) || req.SubjectType != domain.SubjectFile {
				t.Errorf("request = %+v", req)
			}
		})
	}
}

func TestSubjectFor(t *testing.T) {
	s, err := SubjectFor(domain.ScanRequest{SubjectType: domain.SubjectFile, Target: "app.apk", Payload: []byte("PK")})
	if err != nil || s.File == nil || s.File.Platform != "android" {
		t.Fatalf("SubjectFor(file) = %+v, %v", s, err)
	}
	s, err = SubjectFor(domain.ScanRequest{SubjectType: domain.SubjectURL, Target: "http://example.com/a.exe"})
	if err != nil || s.URL == nil || !s.URL.SuspiciousPath {
		t.Fatalf("SubjectFor(url) = %+v, %v", s, err)
	}
	if _, err := SubjectFor(domain.ScanRequest{SubjectType: "email"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown type error = %v", err)
	}
}

func TestResult_NotFound(t *testing.T) {
	store := memory.NewStore()
	if _, err := New(store, store, nil, 0).Result(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Result() error = %v, want ErrNotFound", err)
	}
}
