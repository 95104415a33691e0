package signals

import (
	"context"

	"threatlens/internal/domain"
)

var systemCallCatalog = []string{"execve", "ptrace", "fork", "socket", "connect", "mprotect"}

type NetworkActivity struct {
	SuspiciousConnections bool `json:"suspicious_connections"`
	UnusualPorts          bool `json:"unusual_ports"`
	KnownBadIPs           bool `json:"known_bad_ips"`
}

// HostFindings mirrors the record a host IDS would report for the subject.
type HostFindings struct {
	FileIntegrity   string          `json:"file_integrity"` // modified|unchanged
	SystemCalls     []string        `json:"system_calls"`
	Permissions     string          `json:"permissions"` // suspicious|normal
	NetworkActivity NetworkActivity `json:"network_activity"`
}

// Present reports whether anything in the record is worth flagging. Observed
// system calls alone are not.
func (h HostFindings) Present() bool {
	n := h.NetworkActivity
	return h.FileIntegrity == "modified" || h.Permissions == "suspicious" ||
		n.SuspiciousConnections || n.UnusualPorts || n.KnownBadIPs
}

// HostSimulator stands in for a host IDS such as OSSEC.
type HostSimulator struct {
	entropy EntropySource
}

func NewHostSimulator(src EntropySource) *HostSimulator {
	return &HostSimulator{entropy: src}
}

func (h *HostSimulator) Name() string { return "host_ids" }

// Findings draws in a fixed order so a given Entropy sequence always yields
// the same record.
func (h *HostSimulator) Findings(e Entropy) HostFindings {
	f := HostFindings{FileIntegrity: "unchanged", Permissions: "normal", SystemCalls: []string{}}
	if e.Float64() < 0.2 {
		f.FileIntegrity = "modified"
	}
	for _, call := range systemCallCatalog {
		if e.Float64() < 0.3 {
			f.SystemCalls = append(f.SystemCalls, call)
		}
	}
	if e.Float64() < 0.25 {
		f.Permissions = "suspicious"
	}
	f.NetworkActivity.SuspiciousConnections = e.Float64() < 0.15
	f.NetworkActivity.UnusualPorts = e.Float64() < 0.1
	f.NetworkActivity.KnownBadIPs = e.Float64() < 0.05
	return f
}

func (h *HostSimulator) Produce(ctx context.Context, s Subject) (Signal, error) {
	f := h.Findings(h.entropy())
	sig := Signal{
		Producer:  h.Name(),
		Consulted: 4,
		Factors:   domain.RiskFactors{Suspicious: f.Present()},
		Raw:       f,
	}
	add := func(result string) {
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       "OSSEC (simulated)",
			Category:     "host",
			Result:       result,
			Method:       "host-ids",
			EngineUpdate: simulatorVersion,
		})
	}
	if f.FileIntegrity == "modified" {
		add("File integrity check failed: content modified")
	}
	if f.Permissions == "suspicious" {
		add("Suspicious permission changes observed")
	}
	if f.NetworkActivity.SuspiciousConnections {
		add("Suspicious outbound connections")
	}
	if f.NetworkActivity.UnusualPorts {
		add("Traffic on unusual ports")
	}
	if f.NetworkActivity.KnownBadIPs {
		add("Contact with known-bad IP addresses")
	}
	return sig, nil
}
