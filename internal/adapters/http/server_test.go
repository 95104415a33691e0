package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"threatlens/internal/adapters/memory"
	"threatlens/internal/adapters/virustotal"
	"threatlens/internal/domain"
	"threatlens/internal/report"
	"threatlens/internal/services/history"
	"threatlens/internal/services/scanner"
	"threatlens/internal/signals"
	scanrunner "threatlens/internal/workers/scanrunner"
)

type stubProducer struct {
	factors domain.RiskFactors
	err     error
}

func (p stubProducer) Name() string { return "stub" }

func (p stubProducer) Produce(ctx context.Context, s signals.Subject) (signals.Signal, error) {
	if p.err != nil {
		return signals.Signal{}, p.err
	}
	return signals.Signal{
		Consulted: 10,
		Factors:   p.factors,
		Details:   []domain.DetectionDetail{{Source: "stub", Category: "malicious", Result: "hit", Method: "test"}},
	}, nil
}

func newTestServer(t *testing.T, prod signals.Producer) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	pipeline := scanner.NewPipeline(report.NewFormatter(), prod)
	processor := scanrunner.PipelineProcessor{
		Scans:    store,
		Results:  store,
		Repo:     store,
		Pipeline: pipeline,
		Subject:  scanner.SubjectFor,
	}
	srv := New(scanner.New(store, store, []string{"apk"}, 1024), history.New(store), store, processor, 1024)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, stubProducer{})
	resp := get(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPostScan_Validation(t *testing.T) {
	ts, _ := newTestServer(t, stubProducer{})
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing url", `{}`},
		{"malformed url", `{"url":"not a url"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/scans", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if body := decode[map[string]string](t, resp); body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestPostScan_Queued(t *testing.T) {
	ts, _ := newTestServer(t, stubProducer{})
	resp := postJSON(t, ts.URL+"/scans", `{"url":"https://example.com/"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	acc := decode[scanAccepted](t, resp)

	status := get(t, ts.URL+"/scans/"+acc.ScanID)
	if status.StatusCode != http.StatusOK {
		t.Fatalf("GET /scans status = %d", status.StatusCode)
	}
	req := decode[domain.ScanRequest](t, status)
	if req.Status != domain.RequestQueued || req.Target != "https://example.com/" {
		t.Errorf("request = %+v", req)
	}
}

func TestPostScan_Wait(t *testing.T) {
	prod := stubProducer{factors: domain.RiskFactors{Malicious: true, Suspicious: true, HasEncryption: true}}
	ts, _ := newTestServer(t, prod)

	resp := postJSON(t, ts.URL+"/scans?wait=true&timeout=5", `{"url":"https://example.com/"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	res := decode[domain.ScanResult](t, resp)
	if res.Verdict != domain.VerdictMalicious || res.RiskScore != 75 {
		t.Errorf("verdict = %s score = %d", res.Verdict, res.RiskScore)
	}
	if res.Stats.Malicious != 7 || res.Stats.Suspicious != 3 || res.Stats.Undetected != 9 {
		t.Errorf("stats = %+v", res.Stats)
	}

	hist := decode[[]domain.ScanResult](t, get(t, ts.URL+"/history"))
	if len(hist) != 1 || hist[0].ID != res.ID {
		t.Errorf("history = %+v", hist)
	}
	latest := get(t, ts.URL+"/history/latest?target=https://example.com/")
	if latest.StatusCode != http.StatusOK {
		t.Fatalf("latest status = %d", latest.StatusCode)
	}
	byID := get(t, ts.URL+"/results/"+res.ID)
	if got := decode[domain.ScanResult](t, byID); got.ID != res.ID {
		t.Errorf("result id = %q", got.ID)
	}
}

func TestPostScan_WaitUpstreamTimeout(t *testing.T) {
	ts, store := newTestServer(t, stubProducer{err: virustotal.ErrPollTimeout})
	resp := postJSON(t, ts.URL+"/scans?wait=true", `{"url":"https://example.com/"}`)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", resp.StatusCode)
	}
	recent, _ := store.ListResults(context.Background(), 10)
	if len(recent) != 0 {
		t.Errorf("failed scan stored a result: %+v", recent)
	}
}

func TestPostScanFile(t *testing.T) {
	ts, _ := newTestServer(t, stubProducer{})

	upload := func(t *testing.T, name string, content []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
		mw.Close()
		resp, err := http.Post(ts.URL+"/scans/file", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	tests := []struct {
		name    string
		file    string
		content []byte
		want    int
	}{
		{"allowed", "app.apk", []byte("PK\x03\x04"), http.StatusAccepted},
		{"disallowed type", "run.exe", []byte("MZ"), http.StatusBadRequest},
		{"empty", "app.apk", nil, http.StatusBadRequest},
		{"too large", "app.apk", bytes.Repeat([]byte("a"), 2048), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := upload(t, tt.file, tt.content); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	t.Run("body over limit is cut off before parsing", func(t *testing.T) {
		resp := upload(t, "app.apk", bytes.Repeat([]byte("a"), 1024+multipartOverhead+1))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if body := decode[map[string]string](t, resp); !strings.Contains(body["error"], "upload too large") {
			t.Errorf("error = %q", body["error"])
		}
	})
}

func TestNotFound(t *testing.T) {
	ts, _ := newTestServer(t, stubProducer{})
	for _, path := range []string{"/scans/missing", "/results/missing", "/history/latest?target=https://nowhere.example/"} {
		if resp := get(t, ts.URL+path); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
	if resp := get(t, ts.URL+"/history/latest"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("latest without target = %d, want 400", resp.StatusCode)
	}
	if resp := get(t, ts.URL+"/history?limit=abc"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("virustotal: %w", virustotal.ErrPollTimeout), http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("virustotal: %w", &virustotal.Error{Op: "submit url", StatusCode: 429}), http.StatusBadGateway},
		{virustotal.ErrMissingAPIKey, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
