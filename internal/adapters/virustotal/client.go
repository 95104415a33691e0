// Package virustotal submits subjects to the VirusTotal v3 API and polls the
// resulting analysis.
package virustotal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseURL      = "https://www.virustotal.com/api/v3"
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 10
)

var (
	ErrMissingAPIKey = errors.New("virustotal: api key not configured")
	// ErrPollTimeout means the analysis did not complete within the attempt budget.
	ErrPollTimeout = errors.New("virustotal: analysis not completed in time")

	errPending = errors.New("analysis pending")
)

// Error is a non-2xx answer from the API.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("virustotal %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Stats are the engine tallies of an analysis.
type Stats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
	Timeout    int `json:"timeout"`
}

func (s Stats) Total() int {
	return s.Harmless + s.Malicious + s.Suspicious + s.Undetected
}

// EngineResult is one engine's verdict.
type EngineResult struct {
	Category      string `json:"category"`
	EngineName    string `json:"engine_name"`
	EngineVersion string `json:"engine_version"`
	Result        string `json:"result"`
	Method        string `json:"method"`
	EngineUpdate  string `json:"engine_update"`
}

type Analysis struct {
	ID      string                  `json:"id"`
	Status  string                  `json:"status"`
	Stats   Stats                   `json:"stats"`
	Results map[string]EngineResult `json:"results"`
}

type analysisResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status  string                  `json:"status"`
			Stats   Stats                   `json:"stats"`
			Results map[string]EngineResult `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
}

type submitResponse struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type Client struct {
	BaseURL      string
	APIKey       string
	HTTP         *http.Client
	PollInterval time.Duration
	MaxAttempts  int
}

func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL:      DefaultBaseURL,
		APIKey:       apiKey,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// SubmitURL queues a URL analysis and returns its analysis id.
func (c *Client) SubmitURL(ctx context.Context, target string) (string, error) {
	form := url.Values{}
	form.Set("url", target)
	req, err := c.newRequest(ctx, http.MethodPost, "/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.submit(req, "submit url")
}

// SubmitFile uploads content for analysis and returns its analysis id.
func (c *Client) SubmitFile(ctx context.Context, name string, content []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.submit(req, "submit file")
}

func (c *Client) submit(req *http.Request, op string) (string, error) {
	var out submitResponse
	if err := c.do(req, op, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &Error{Op: op, StatusCode: http.StatusOK, Body: "response carried no analysis id"}
	}
	return out.Data.ID, nil
}

// Analysis fetches the current state of an analysis once.
func (c *Client) Analysis(ctx context.Context, id string) (Analysis, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/analyses/"+url.PathEscape(id), nil)
	if err != nil {
		return Analysis{}, err
	}
	var out analysisResponse
	if err := c.do(req, "get analysis", &out); err != nil {
		return Analysis{}, err
	}
	a := out.Data.Attributes
	return Analysis{ID: out.Data.ID, Status: a.Status, Stats: a.Stats, Results: a.Results}, nil
}

// Wait polls until the analysis is completed, waiting PollInterval between
// attempts and giving up after MaxAttempts with ErrPollTimeout. Cancelling
// ctx stops the loop.
func (c *Client) Wait(ctx context.Context, id string) (Analysis, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(interval))

	var done Analysis
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		a, err := c.Analysis(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != "completed" {
			return retry.RetryableError(errPending)
		}
		done = a
		return nil
	})
	if errors.Is(err, errPending) {
		return Analysis{}, fmt.Errorf("%w: %s after %d attempts", ErrPollTimeout, id, attempts)
	}
	if err != nil {
		return Analysis{}, err
	}
	return done, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-apikey", c.APIKey)
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("virustotal %s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("virustotal %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("virustotal %s: decode: %w", op, err)
	}
	return nil
}
