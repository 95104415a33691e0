package domain

import "time"

// Core domain models shared by the producers, the aggregator and the adapters.
// HTTP payloads reuse these directly; keep json tags stable.

type SubjectType string

const (
	SubjectURL  SubjectType = "url"
	SubjectFile SubjectType = "file"
)

type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// RiskFactors are the boolean signals the aggregator weighs. Recomputed per scan.
type RiskFactors struct {
	Malicious           bool `json:"malicious"`
	Suspicious          bool `json:"suspicious"`
	HasEncryption       bool `json:"has_encryption"`
	HasObfuscation      bool `json:"has_obfuscation"`
	HighRiskPermissions bool `json:"high_risk_permissions"`
}

// DetectionStats is the normalized engine tally shown next to a verdict.
type DetectionStats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
}

// DetectionDetail is one human-readable evidence entry for a triggered signal.
type DetectionDetail struct {
	Source       string `json:"source"`
	Category     string `json:"category"`
	Result       string `json:"result"`
	Method       string `json:"method"`
	EngineUpdate string `json:"engine_update"`
}

type MLAnalysis struct {
	Score   float64  `json:"score"`
	Status  string   `json:"status"` // safe|moderate|suspicious|dangerous
	Factors []string `json:"factors,omitempty"`
}

// ScanResult is the aggregate root handed to persistence and display.
type ScanResult struct {
	ID          string            `json:"id"`
	RequestID   string            `json:"request_id,omitempty"`
	SubjectType SubjectType       `json:"type"`
	Target      string            `json:"target"`
	Timestamp   time.Time         `json:"timestamp"`
	Verdict     Verdict           `json:"status"`
	RiskScore   int               `json:"risk_score"`
	Warning     bool              `json:"warning"`
	Stats       DetectionStats    `json:"stats"`
	Metadata    map[string]any    `json:"metadata"`
	Details     []DetectionDetail `json:"details"`
	ML          *MLAnalysis       `json:"ml_analysis,omitempty"`
}

type RequestStatus string

const (
	RequestQueued    RequestStatus = "queued"
	RequestRunning   RequestStatus = "running"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// ScanRequest tracks a submitted subject until its ScanResult exists.
type ScanRequest struct {
	ID          string        `json:"id"`
	SubjectType SubjectType   `json:"type"`
	Target      string        `json:"target"`
	Payload     []byte        `json:"-"`
	Status      RequestStatus `json:"status"`
	Progress    float64       `json:"progress"`
	Error       string        `json:"error,omitempty"`
	ResultID    *string       `json:"result_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}
