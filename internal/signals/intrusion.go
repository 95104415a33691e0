package signals

import (
	"context"

	"threatlens/internal/domain"
)

const simulatorVersion = "sim-1.0"

// Alert is a network-intrusion alert in Suricata/ET style.
type Alert struct {
	SID      int    `json:"sid"`
	Message  string `json:"message"`
	Severity int    `json:"severity"`
}

var alertCatalog = []Alert{
	{SID: 2010001, Message: "ET TROJAN Possible C2 beacon over HTTP", Severity: 1},
	{SID: 2010002, Message: "ET SCAN Nmap SYN scan detected", Severity: 2},
	{SID: 2010003, Message: "ET POLICY Outbound connection to TOR exit node", Severity: 2},
	{SID: 2010004, Message: "ET MALWARE DNS query to DGA-like domain", Severity: 1},
	{SID: 2010005, Message: "ET EXPLOIT Possible shellcode in HTTP payload", Severity: 1},
	{SID: 2010006, Message: "ET INFO Executable download over cleartext HTTP", Severity: 3},
}

const alertProbability = 0.3

// AlertSimulator stands in for a network IDS. Replace with a real detector
// behind Producer.
type AlertSimulator struct {
	entropy EntropySource
}

func NewAlertSimulator(src EntropySource) *AlertSimulator {
	return &AlertSimulator{entropy: src}
}

func (a *AlertSimulator) Name() string { return "network_ids" }

// Alerts draws each catalog entry independently, in catalog order.
func (a *AlertSimulator) Alerts(e Entropy) []Alert {
	var out []Alert
	for _, alert := range alertCatalog {
		if e.Float64() < alertProbability {
			out = append(out, alert)
		}
	}
	return out
}

func (a *AlertSimulator) Produce(ctx context.Context, s Subject) (Signal, error) {
	alerts := a.Alerts(a.entropy())
	sig := Signal{
		Producer:  a.Name(),
		Consulted: len(alertCatalog),
		Factors:   domain.RiskFactors{Suspicious: len(alerts) > 0},
		Raw:       alerts,
	}
	for _, al := range alerts {
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       "Suricata (simulated)",
			Category:     "network",
			Result:       al.Message,
			Method:       "network-ids",
			EngineUpdate: simulatorVersion,
		})
	}
	return sig, nil
}
