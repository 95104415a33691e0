package signals

import (
	"context"
	"fmt"
	"strings"

	"threatlens/internal/domain"
)

const modelVersion = "heuristic-1"

var suspiciousPermissions = []string{
	"READ_SMS", "SEND_SMS", "RECEIVE_SMS", "READ_CONTACTS", "READ_CALL_LOG",
	"RECORD_AUDIO", "CAMERA", "ACCESS_FINE_LOCATION", "READ_PHONE_STATE",
	"SYSTEM_ALERT_WINDOW", "REQUEST_INSTALL_PACKAGES", "BIND_ACCESSIBILITY_SERVICE",
}

var highRiskPermissions = []string{
	"SEND_SMS", "READ_SMS", "SYSTEM_ALERT_WINDOW", "REQUEST_INSTALL_PACKAGES",
	"BIND_ACCESSIBILITY_SERVICE", "BIND_DEVICE_ADMIN",
}

var minerKeywords = []string{"crypto", "miner", "mining", "coinhive", "xmrig", "monero", "bitcoin"}

// Safety statuses, best first.
const (
	MLSafe       = "safe"
	MLModerate   = "moderate"
	MLSuspicious = "suspicious"
	MLDangerous  = "dangerous"
)

// MLScorer is a transparent heuristic presented as a confidence model. A real
// classifier can replace it behind Producer.
type MLScorer struct{}

func NewMLScorer() *MLScorer { return &MLScorer{} }

func (m *MLScorer) Name() string { return "ml_analysis" }

// Score computes the safety score. Arithmetic is done in hundredths so the
// breakpoints compare exactly.
func (m *MLScorer) Score(permissions, components []string) domain.MLAnalysis {
	pct := 100
	var factors []string
	for _, p := range suspiciousPermissions {
		if hasPermission(permissions, p) {
			pct -= 10
			factors = append(factors, "permission:"+p)
		}
	}
	if kw := minerComponent(components); kw != "" {
		pct -= 30
		factors = append(factors, "component:"+kw)
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return domain.MLAnalysis{Score: float64(pct) / 100, Status: statusFor(pct), Factors: factors}
}

func statusFor(pct int) string {
	switch {
	case pct >= 80:
		return MLSafe
	case pct >= 60:
		return MLModerate
	case pct >= 40:
		return MLSuspicious
	default:
		return MLDangerous
	}
}

// HasHighRiskPermission reports whether any permission is on the high-risk list.
func HasHighRiskPermission(permissions []string) bool {
	for _, p := range highRiskPermissions {
		if hasPermission(permissions, p) {
			return true
		}
	}
	return false
}

func (m *MLScorer) Produce(ctx context.Context, s Subject) (Signal, error) {
	var perms, comps []string
	if s.File != nil {
		perms, comps = s.File.Permissions, s.File.Components
	}
	res := m.Score(perms, comps)
	sig := Signal{
		Producer:  m.Name(),
		Consulted: 1,
		Factors:   domain.RiskFactors{HighRiskPermissions: HasHighRiskPermission(perms)},
		Raw:       res,
	}
	if res.Status != MLSafe {
		sig.Details = append(sig.Details, domain.DetectionDetail{
			Source:       "ML Analysis",
			Category:     "ml",
			Result:       fmt.Sprintf("%s (safety score %.2f)", res.Status, res.Score),
			Method:       "confidence-score",
			EngineUpdate: modelVersion,
		})
	}
	return sig, nil
}

// hasPermission matches bare names and fully qualified android.permission.X forms.
func hasPermission(perms []string, name string) bool {
	for _, p := range perms {
		p = strings.ToUpper(p)
		if p == name || strings.HasSuffix(p, "."+name) {
			return true
		}
	}
	return false
}

func minerComponent(components []string) string {
	for _, c := range components {
		lc := strings.ToLower(c)
		for _, kw := range minerKeywords {
			if strings.Contains(lc, kw) {
				return kw
			}
		}
	}
	return ""
}
